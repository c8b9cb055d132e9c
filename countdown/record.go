package countdown

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"

	"github.com/lixenwraith/quiz-timer/constant"
	"github.com/lixenwraith/quiz-timer/storage"
)

// Keys are the storage keys a timer owns
type Keys struct {
	StartTime string // epoch-milliseconds start, recompute strategy
	Snapshot  string // JSON Snapshot, snapshot strategy
}

// KeysFor derives the storage keys for a quiz, an empty id uses the default
func KeysFor(quizID string) Keys {
	if quizID == "" {
		quizID = constant.DefaultQuizID
	}
	return Keys{
		StartTime: fmt.Sprintf(constant.StartTimeKeyFormat, quizID),
		Snapshot:  fmt.Sprintf(constant.SnapshotKeyFormat, quizID),
	}
}

// Snapshot is the persisted record of the snapshot strategy
type Snapshot struct {
	RemainingSeconds int `json:"remainingSeconds"`
	TotalSeconds     int `json:"totalSeconds"`
}

func encodeSnapshot(s Snapshot) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeSnapshot(raw string) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Snapshot{}, errors.Wrap(err, "decode snapshot")
	}
	if s.RemainingSeconds < 0 || s.TotalSeconds < 0 {
		return Snapshot{}, errors.Errorf("negative snapshot values %+v", s)
	}
	return s, nil
}

func encodeStartTime(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func decodeStartTime(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "decode start time")
	}
	if ms <= 0 {
		return time.Time{}, errors.Errorf("non-positive start time %d", ms)
	}
	return time.UnixMilli(ms), nil
}

// remainingAt is max(0, total - floor((now - start)/1s)), a start in the future counts as zero elapsed
func remainingAt(total int, start, now time.Time) int {
	elapsed := int(now.Sub(start) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	if remaining := total - elapsed; remaining > 0 {
		return remaining
	}
	return 0
}

// ClearQuiz removes all persisted state for a quiz, as submission handling does
func ClearQuiz(store storage.Store, quizID string) error {
	keys := KeysFor(quizID)
	errStart := store.Remove(keys.StartTime)
	errSnap := store.Remove(keys.Snapshot)
	if errStart != nil {
		return errors.Wrap(errStart, "clear start time")
	}
	return errors.Wrap(errSnap, "clear snapshot")
}

// Inspect reports the remaining seconds a timer for quizID would resume with, without
// writing anything. The record of the given strategy is preferred, the other strategy's
// record is the fallback. Corrupt records count as absent; found is false and remaining
// is the full total when no valid record exists. err is set only when the store fails.
func Inspect(store storage.Store, quizID string, strategy Strategy, total time.Duration, now time.Time) (remaining int, found bool, err error) {
	keys := KeysFor(quizID)
	totalSec := seconds(total)

	readStart := func() (int, bool, error) {
		raw, ok, err := store.Get(keys.StartTime)
		if err != nil || !ok {
			return 0, false, errors.Wrap(err, "read start time")
		}
		start, err := decodeStartTime(raw)
		if err != nil {
			return 0, false, nil
		}
		return remainingAt(totalSec, start, now), true, nil
	}
	readSnapshot := func() (int, bool, error) {
		raw, ok, err := store.Get(keys.Snapshot)
		if err != nil || !ok {
			return 0, false, errors.Wrap(err, "read snapshot")
		}
		snap, err := decodeSnapshot(raw)
		if err != nil {
			return 0, false, nil
		}
		return clampRemaining(snap.RemainingSeconds, totalSec), true, nil
	}

	readers := []func() (int, bool, error){readStart, readSnapshot}
	if strategy == StrategySnapshot {
		readers[0], readers[1] = readSnapshot, readStart
	}
	for _, read := range readers {
		left, ok, readErr := read()
		if readErr != nil {
			return 0, false, readErr
		}
		if ok {
			return left, true, nil
		}
	}
	return totalSec, false, nil
}

func clampRemaining(remaining, total int) int {
	if remaining > total {
		return total
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

// seconds truncates d to whole seconds, negative durations become zero
func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}
