package countdown

import (
	"strconv"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/quiz-timer/clock"
	"github.com/lixenwraith/quiz-timer/constant"
	"github.com/lixenwraith/quiz-timer/status"
	"github.com/lixenwraith/quiz-timer/storage"
)

var epoch = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

type fakeDisplay struct {
	text    string
	texts   []string
	tiers   []Tier
	banners []string
	visible string
	hides   int
}

func (d *fakeDisplay) SetText(text string) {
	d.text = text
	d.texts = append(d.texts, text)
}

func (d *fakeDisplay) SetTier(tier Tier) { d.tiers = append(d.tiers, tier) }

func (d *fakeDisplay) ShowBanner(message string) {
	d.banners = append(d.banners, message)
	d.visible = message
}

func (d *fakeDisplay) HideBanner() {
	d.hides++
	d.visible = ""
}

type fakeAlerter struct {
	levels []AlertLevel
}

func (a *fakeAlerter) Alert(level AlertLevel) { a.levels = append(a.levels, level) }

// harness wires a timer to a mock clock, memory store and recording display
type harness struct {
	timer   *Timer
	clock   *clock.MockClock
	store   *storage.MemoryStore
	display *fakeDisplay
	alerter *fakeAlerter
	expired int
}

func newHarness(t *testing.T, total time.Duration, strategy Strategy, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		clock:   clock.NewMockClock(epoch),
		store:   storage.NewMemoryStore(),
		display: &fakeDisplay{},
		alerter: &fakeAlerter{},
	}
	h.timer = h.build(total, strategy, opts...)
	return h
}

// build constructs another timer over the same clock and store, as a restarted process would
func (h *harness) build(total time.Duration, strategy Strategy, opts ...Option) *Timer {
	base := []Option{
		WithClock(h.clock),
		WithStore(h.store),
		WithAlerter(h.alerter),
		WithDispatcher(InlineDispatcher{}),
	}
	return New(Config{
		Total:    total,
		QuizID:   "42",
		Strategy: strategy,
		Display:  h.display,
		OnExpire: func() { h.expired++ },
	}, append(base, opts...)...)
}

func (h *harness) seconds(n int) {
	for i := 0; i < n; i++ {
		h.clock.Advance(time.Second)
	}
}

func (h *harness) stored(t *testing.T, key string) (string, bool) {
	t.Helper()
	v, ok, err := h.store.Get(key)
	require.NoError(t, err)
	return v, ok
}

func maxZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func TestNewFreshSession(t *testing.T) {
	h := newHarness(t, Minutes(30), StrategyRecompute)

	assert.Equal(t, 1800, h.timer.Remaining())
	assert.Equal(t, 1800, h.timer.Total())
	assert.Equal(t, Stopped, h.timer.State())
	assert.Equal(t, "30:00", h.display.text)
	assert.Equal(t, []Tier{TierNeutral}, h.display.tiers)

	v, ok := h.stored(t, "quiz_42_start_time")
	require.True(t, ok)
	assert.Equal(t, strconv.FormatInt(epoch.UnixMilli(), 10), v)
}

func TestRecomputeRemainingFollowsElapsed(t *testing.T) {
	for _, total := range []int{0, 1, 59, 60, 61, 300, 301, 900} {
		t.Run(strconv.Itoa(total), func(t *testing.T) {
			h := newHarness(t, Seconds(total), StrategyRecompute)
			require.Equal(t, total, h.timer.Remaining())

			h.timer.Start()
			for k := 1; k <= total+3; k++ {
				h.seconds(1)
				require.Equal(t, maxZero(total-k), h.timer.Remaining(), "t=%d", k)
			}
			assert.True(t, h.timer.Expired())
		})
	}
}

func TestResumeFromStoredStart(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		elapsed time.Duration
		want    int
	}{
		{"fresh ago", 600, 0, 600},
		{"mid session", 600, 125 * time.Second, 475},
		{"partial second floors", 600, 125*time.Second + 900*time.Millisecond, 475},
		{"exactly over", 600, 600 * time.Second, 0},
		{"long over", 600, 2 * time.Hour, 0},
		{"start in future", 600, -30 * time.Second, 600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			require.NoError(t, store.Set("quiz_42_start_time", strconv.FormatInt(epoch.Add(-tt.elapsed).UnixMilli(), 10)))

			timer := New(Config{Total: Seconds(tt.total), QuizID: "42"},
				WithClock(clock.NewMockClock(epoch)), WithStore(store))

			assert.Equal(t, tt.want, timer.Remaining())
		})
	}
}

func TestRecomputeSelfCorrectsAfterSuspension(t *testing.T) {
	h := newHarness(t, Minutes(10), StrategyRecompute)
	h.timer.Start()
	h.seconds(3)
	require.Equal(t, 597, h.timer.Remaining())

	// Process suspended for 100s, no ticks delivered
	h.clock.SetTime(h.clock.Now().Add(100 * time.Second))
	h.seconds(1)

	assert.Equal(t, 496, h.timer.Remaining())
}

func TestWarningsFireOnceEach(t *testing.T) {
	h := newHarness(t, Seconds(302), StrategyRecompute)
	h.timer.Start()
	h.seconds(302)

	assert.Equal(t, []string{
		constant.MessageFiveMinutes,
		constant.MessageOneMinute,
		constant.MessageTimeUp,
	}, h.display.banners)
	assert.Equal(t, []AlertLevel{AlertWarning, AlertUrgent, AlertExpired}, h.alerter.levels)

	stats := h.timer.Status()
	assert.Equal(t, int64(302), stats.Counter(status.Ticks).Load())
	assert.Equal(t, int64(2), stats.Counter(status.Warnings).Load())
	assert.Equal(t, int64(1), stats.Counter(status.Expiries).Load())
}

func TestWarningOnFirstTickWhenStartingAtThreshold(t *testing.T) {
	h := newHarness(t, Minutes(1), StrategyRecompute)
	h.timer.Start()

	h.seconds(1)
	assert.Equal(t, []string{constant.MessageOneMinute}, h.display.banners)

	h.seconds(58)
	assert.Equal(t, 1, h.timer.Remaining())
	assert.Len(t, h.display.banners, 1, "no refire below threshold")

	h.seconds(1)
	assert.Equal(t, 0, h.timer.Remaining())
	assert.Equal(t, []string{constant.MessageOneMinute, constant.MessageTimeUp}, h.display.banners)
	assert.Equal(t, 0, h.expired, "callback is deferred")

	h.seconds(2)
	assert.Equal(t, 1, h.expired)
}

func TestWarningsNotRaisedForSessionAlreadyBelow(t *testing.T) {
	h := newHarness(t, Seconds(45), StrategyRecompute)
	h.timer.Start()
	h.seconds(44)

	assert.Empty(t, h.display.banners)
}

func TestSkippedThresholdsFireMostUrgentOnly(t *testing.T) {
	h := newHarness(t, Seconds(400), StrategyRecompute)
	h.timer.Start()
	h.seconds(1)

	// Jump from 399 straight to 50 remaining
	h.clock.SetTime(epoch.Add(349 * time.Second))
	h.seconds(1)

	assert.Equal(t, 50, h.timer.Remaining())
	assert.Equal(t, []string{constant.MessageOneMinute}, h.display.banners)
}

func TestZeroDurationExpiresOnFirstTick(t *testing.T) {
	for _, d := range []time.Duration{0, -5 * time.Minute} {
		h := newHarness(t, d, StrategyRecompute)
		assert.Equal(t, 0, h.timer.Remaining())
		assert.Equal(t, "00:00", h.display.text)

		h.timer.Start()
		assert.False(t, h.timer.Expired())

		h.seconds(1)
		assert.True(t, h.timer.Expired())
		assert.Equal(t, []string{constant.MessageTimeUp}, h.display.banners)
		assert.Equal(t, []AlertLevel{AlertExpired}, h.alerter.levels)

		h.seconds(2)
		assert.Equal(t, 1, h.expired)
	}
}

func TestExpiryStopsClearsAndDefersCallback(t *testing.T) {
	h := newHarness(t, Seconds(5), StrategyRecompute)
	h.timer.Start()
	h.seconds(5)

	assert.True(t, h.timer.Expired())
	assert.Equal(t, Stopped, h.timer.State())
	assert.Equal(t, 0, h.expired, "callback must not run synchronously")

	_, ok := h.stored(t, "quiz_42_start_time")
	assert.False(t, ok)
	_, ok = h.stored(t, "quiz_42_timer")
	assert.False(t, ok)

	h.clock.Advance(1999 * time.Millisecond)
	assert.Equal(t, 0, h.expired)
	h.clock.Advance(time.Millisecond)
	assert.Equal(t, 1, h.expired)

	textsAtExpiry := len(h.display.texts)
	h.seconds(60)
	assert.Equal(t, 1, h.expired)
	assert.Equal(t, 0, h.timer.Remaining())
	assert.Len(t, h.display.texts, textsAtExpiry, "no ticks after expiry")
}

func TestStartIsIdempotent(t *testing.T) {
	h := newHarness(t, Minutes(4), StrategySnapshot)
	h.timer.Start()
	h.timer.Start()
	h.seconds(1)
	h.timer.Start()
	h.seconds(2)

	assert.Equal(t, 237, h.timer.Remaining(), "one decrement per second")
	assert.Equal(t, 1, h.clock.Pending())
}

func TestStopHaltsTicks(t *testing.T) {
	for _, strategy := range []Strategy{StrategyRecompute, StrategySnapshot} {
		t.Run(strategy.String(), func(t *testing.T) {
			h := newHarness(t, Minutes(4), strategy)
			h.timer.Start()
			h.seconds(2)
			h.timer.Stop()

			assert.Equal(t, Stopped, h.timer.State())
			assert.Equal(t, 0, h.clock.Pending())

			renders := len(h.display.texts)
			h.seconds(10)
			assert.Equal(t, 238, h.timer.Remaining())
			assert.Len(t, h.display.texts, renders)

			h.timer.Stop()
			assert.Equal(t, Stopped, h.timer.State())
		})
	}
}

func TestStaleTickIgnored(t *testing.T) {
	h := newHarness(t, Minutes(5), StrategySnapshot)
	h.timer.Start()
	h.timer.Stop()

	// A tick dispatched before Stop arrives late
	h.timer.tick(0)
	assert.Equal(t, 300, h.timer.Remaining())

	h.timer.Start()
	h.timer.tick(0)
	assert.Equal(t, 300, h.timer.Remaining())
}

func TestSnapshotStopPersistsAndResumes(t *testing.T) {
	h := newHarness(t, Minutes(10), StrategySnapshot)
	h.timer.Start()
	h.seconds(10)
	h.timer.Stop()

	raw, ok := h.stored(t, "quiz_42_timer")
	require.True(t, ok)
	assert.JSONEq(t, `{"remainingSeconds":590,"totalSeconds":600}`, raw)

	// Reload after a long pause resumes from the saved second
	h.clock.SetTime(epoch.Add(time.Hour))
	resumed := h.build(Minutes(10), StrategySnapshot)
	assert.Equal(t, 590, resumed.Remaining())
	assert.Equal(t, "09:50", h.display.text)
}

func TestSnapshotPersistsEveryTick(t *testing.T) {
	h := newHarness(t, Seconds(90), StrategySnapshot)
	h.timer.Start()
	h.seconds(4)

	raw, ok := h.stored(t, "quiz_42_timer")
	require.True(t, ok)
	assert.JSONEq(t, `{"remainingSeconds":86,"totalSeconds":90}`, raw)
}

func TestSnapshotClampedToTotal(t *testing.T) {
	h := newHarness(t, Minutes(1), StrategySnapshot)
	require.NoError(t, h.store.Set("quiz_42_timer", `{"remainingSeconds":500,"totalSeconds":600}`))

	resumed := h.build(Minutes(1), StrategySnapshot)
	assert.Equal(t, 60, resumed.Remaining())
}

func TestReset(t *testing.T) {
	for _, strategy := range []Strategy{StrategyRecompute, StrategySnapshot} {
		t.Run(strategy.String(), func(t *testing.T) {
			h := newHarness(t, Minutes(5), strategy)
			h.timer.Start()
			h.seconds(10)

			h.timer.Reset()

			assert.Equal(t, 300, h.timer.Remaining())
			assert.Equal(t, Stopped, h.timer.State())
			assert.Equal(t, "05:00", h.display.text)
			_, ok := h.stored(t, "quiz_42_start_time")
			assert.False(t, ok)
			_, ok = h.stored(t, "quiz_42_timer")
			assert.False(t, ok)

			h.seconds(5)
			assert.Equal(t, 300, h.timer.Remaining())

			// Fresh session anchored at the restart
			h.timer.Start()
			h.seconds(3)
			assert.Equal(t, 297, h.timer.Remaining())
		})
	}
}

func TestResetAnchorsNewStartTime(t *testing.T) {
	h := newHarness(t, Minutes(5), StrategyRecompute)
	h.timer.Start()
	h.seconds(10)
	h.timer.Reset()
	h.seconds(20)
	h.timer.Start()

	v, ok := h.stored(t, "quiz_42_start_time")
	require.True(t, ok)
	assert.Equal(t, strconv.FormatInt(epoch.Add(30*time.Second).UnixMilli(), 10), v)
}

func TestResetAfterExpiryAllowsNewSession(t *testing.T) {
	h := newHarness(t, Seconds(3), StrategyRecompute)
	h.timer.Start()
	h.seconds(3)
	require.True(t, h.timer.Expired())

	h.timer.Start()
	assert.Equal(t, Stopped, h.timer.State(), "expiry is terminal")

	h.timer.Reset()
	assert.False(t, h.timer.Expired())
	h.timer.Start()
	assert.Equal(t, Running, h.timer.State())
	h.seconds(3)
	assert.True(t, h.timer.Expired())

	h.seconds(2)
	assert.Equal(t, 2, h.expired, "one callback per expiry")
}

func TestClearStateRemovesKeys(t *testing.T) {
	h := newHarness(t, Minutes(5), StrategySnapshot)
	require.NoError(t, h.store.Set("quiz_42_start_time", "1"))

	h.timer.ClearState()

	assert.Equal(t, 0, h.store.Len())
}

func TestClearStateWhileRunningReanchors(t *testing.T) {
	h := newHarness(t, Minutes(5), StrategyRecompute)
	h.timer.Start()
	h.seconds(5)
	h.timer.ClearState()

	h.seconds(1)
	assert.Equal(t, 294, h.timer.Remaining())
	v, ok := h.stored(t, "quiz_42_start_time")
	require.True(t, ok)
	assert.Equal(t, strconv.FormatInt(epoch.UnixMilli(), 10), v)
}

func TestCorruptRecordTreatedAsAbsent(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		key      string
		raw      string
	}{
		{"garbage start", StrategyRecompute, "quiz_42_start_time", "yesterday"},
		{"zero start", StrategyRecompute, "quiz_42_start_time", "0"},
		{"broken snapshot", StrategySnapshot, "quiz_42_timer", "{remaining"},
		{"negative snapshot", StrategySnapshot, "quiz_42_timer", `{"remainingSeconds":-4,"totalSeconds":60}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Minutes(2), tt.strategy)
			require.NoError(t, h.store.Set(tt.key, tt.raw))

			timer := h.build(Minutes(2), tt.strategy)
			assert.Equal(t, 120, timer.Remaining())

			v, ok := h.stored(t, tt.key)
			require.True(t, ok)
			assert.NotEqual(t, tt.raw, v, "fresh state replaces the corrupt record")
		})
	}
}

type failingStore struct{}

func (failingStore) Get(string) (string, bool, error) { return "", false, errors.New("disk gone") }
func (failingStore) Set(string, string) error         { return errors.New("disk gone") }
func (failingStore) Remove(string) error              { return errors.New("disk gone") }

func TestStoreFailuresDoNotStopTimer(t *testing.T) {
	c := clock.NewMockClock(epoch)
	expired := 0
	timer := New(Config{Total: Seconds(3), OnExpire: func() { expired++ }},
		WithClock(c), WithStore(failingStore{}), WithDispatcher(InlineDispatcher{}))

	timer.Start()
	for i := 0; i < 5; i++ {
		c.Advance(time.Second)
	}

	assert.True(t, timer.Expired())
	assert.Equal(t, 1, expired)
	assert.Positive(t, timer.Status().Counter(status.StoreErrors).Load())
}

func TestSharedStatusRegistry(t *testing.T) {
	reg := status.NewRegistry()
	h := newHarness(t, Minutes(2), StrategyRecompute, WithStatus(reg))
	h.timer.Start()
	h.seconds(3)
	h.timer.Reset()

	h.build(Minutes(2), StrategyRecompute, WithStatus(reg))

	assert.Same(t, reg, h.timer.Status())
	assert.Equal(t, map[string]any{
		status.Ticks:  int64(3),
		status.Resets: int64(1),
	}, reg.Snapshot())

	h.timer.Start()
	h.build(Minutes(2), StrategyRecompute, WithStatus(reg))
	assert.Equal(t, int64(1), reg.Counter(status.Resumed).Load())
}

func TestNilDisplayIsSkipped(t *testing.T) {
	c := clock.NewMockClock(epoch)
	expired := 0
	timer := New(Config{Total: Seconds(61), OnExpire: func() { expired++ }},
		WithClock(c), WithDispatcher(InlineDispatcher{}))

	timer.Start()
	for i := 0; i < 70; i++ {
		c.Advance(time.Second)
	}

	assert.Equal(t, 1, expired)
}

func TestTierAppliedOnlyOnChange(t *testing.T) {
	h := newHarness(t, Seconds(302), StrategyRecompute)
	h.timer.Start()
	h.seconds(302)

	assert.Equal(t, []Tier{TierNeutral, TierWarning, TierUrgent}, h.display.tiers)
}

func TestBannerAutoDismiss(t *testing.T) {
	h := newHarness(t, Seconds(301), StrategyRecompute)
	h.timer.Start()

	h.seconds(1)
	assert.Equal(t, constant.MessageFiveMinutes, h.display.visible)

	h.seconds(3)
	assert.Equal(t, constant.MessageFiveMinutes, h.display.visible)

	h.seconds(1)
	assert.Empty(t, h.display.visible)
	assert.Equal(t, 1, h.display.hides)
}

func TestBannerReplacedRestartsDismissal(t *testing.T) {
	h := newHarness(t, Seconds(11), StrategyRecompute,
		WithThresholds(
			Threshold{Seconds: 8, Message: "b", Level: AlertUrgent},
			Threshold{Seconds: 10, Message: "a", Level: AlertWarning},
		))
	h.timer.Start()

	h.seconds(1) // 10 left
	assert.Equal(t, "a", h.display.visible)

	h.seconds(2) // 8 left
	assert.Equal(t, "b", h.display.visible)

	h.seconds(3) // a's dismissal would have been due
	assert.Equal(t, "b", h.display.visible)
	assert.Equal(t, 0, h.display.hides)

	h.seconds(1)
	assert.Empty(t, h.display.visible)
	assert.Equal(t, 1, h.display.hides)
}

func TestResetHidesBanner(t *testing.T) {
	h := newHarness(t, Seconds(301), StrategyRecompute)
	h.timer.Start()
	h.seconds(1)
	require.NotEmpty(t, h.display.visible)

	h.timer.Reset()
	assert.Empty(t, h.display.visible)

	h.seconds(10)
	assert.Equal(t, 1, h.display.hides, "cancelled dismissal does not hide again")
}

func TestElapsedTime(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set("quiz_42_start_time", strconv.FormatInt(epoch.Add(-time.Minute).UnixMilli(), 10)))

	timer := New(Config{Total: Minutes(10), QuizID: "42"},
		WithClock(clock.NewMockClock(epoch)), WithStore(store))

	assert.Equal(t, 540, timer.Remaining())
	assert.Equal(t, 60, timer.ElapsedTime())
	assert.Equal(t, "1m 0s", timer.FormattedElapsedTime())
}

func TestDistinctQuizIDsDoNotCollide(t *testing.T) {
	c := clock.NewMockClock(epoch)
	store := storage.NewMemoryStore()

	a := New(Config{Total: Minutes(5), QuizID: "a"}, WithClock(c), WithStore(store))
	b := New(Config{Total: Minutes(5), QuizID: "b", Strategy: StrategySnapshot}, WithClock(c), WithStore(store))

	a.Start()
	c.Advance(10 * time.Second)
	b.Start()
	c.Advance(5 * time.Second)

	assert.Equal(t, 285, a.Remaining())
	assert.Equal(t, 295, b.Remaining())

	a.Reset()
	assert.Equal(t, 295, b.Remaining())
	_, ok, _ := store.Get("quiz_b_timer")
	assert.True(t, ok)
}

func TestStrategySwitchCarriesProgress(t *testing.T) {
	h := newHarness(t, Minutes(10), StrategyRecompute)
	h.clock.Advance(3 * time.Minute)

	snap := h.build(Minutes(10), StrategySnapshot)
	if got := snap.Remaining(); got != 420 {
		t.Fatalf("snapshot resumed with %d, want 420", got)
	}
	if _, ok := h.stored(t, "quiz_42_start_time"); ok {
		t.Fatal("start time left behind after switching to snapshot")
	}

	snap.Start()
	h.seconds(5)
	snap.Stop()

	remaining, found, err := Inspect(h.store, "42", StrategySnapshot, Minutes(10), h.clock.Now())
	if err != nil || !found || remaining != 415 {
		t.Fatalf("Inspect = (%d, %v, %v), want (415, true, nil)", remaining, found, err)
	}
	remaining, _, _ = Inspect(h.store, "42", StrategyRecompute, Minutes(10), h.clock.Now())
	if remaining != 415 {
		t.Errorf("Inspect under recompute = %d, want 415", remaining)
	}

	// Back to recompute: anchored at the snapshot's progress, not the first session
	back := h.build(Minutes(10), StrategyRecompute)
	if got := back.Remaining(); got != 415 {
		t.Fatalf("recompute resumed with %d, want 415", got)
	}
	if _, ok := h.stored(t, "quiz_42_timer"); ok {
		t.Fatal("snapshot left behind after switching to recompute")
	}

	back.Start()
	h.seconds(10)
	if got := back.Remaining(); got != 405 {
		t.Errorf("remaining after 10s = %d, want 405", got)
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("snapshot")
	require.NoError(t, err)
	assert.Equal(t, StrategySnapshot, s)

	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyRecompute, s)

	_, err = ParseStrategy("decrement")
	assert.Error(t, err)
}

func TestPoolDispatcherRunsCallback(t *testing.T) {
	d, err := NewPoolDispatcher(2)
	require.NoError(t, err)
	defer d.Close()

	c := clock.NewMockClock(epoch)
	done := make(chan struct{})
	timer := New(Config{Total: Seconds(1), OnExpire: func() { close(done) }},
		WithClock(c), WithDispatcher(d))

	timer.Start()
	c.Advance(3 * time.Second)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expiry callback not dispatched")
	}
}
