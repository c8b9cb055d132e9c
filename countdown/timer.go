// Package countdown implements the quiz countdown timer.
//
// A Timer counts down from a fixed duration, persists its progress in a storage.Store
// so a restarted process resumes where it left off, renders "MM:SS" with an urgency tier
// into a Display, raises one-time banners at five and one minute remaining, and calls the
// expiry callback once, after a short grace delay, when time runs out.
//
// Time and scheduling come from an injected clock.Clock, so every behavior is
// reproducible with clock.MockClock.
package countdown

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/lixenwraith/quiz-timer/clock"
	"github.com/lixenwraith/quiz-timer/constant"
	"github.com/lixenwraith/quiz-timer/logs"
	"github.com/lixenwraith/quiz-timer/status"
	"github.com/lixenwraith/quiz-timer/storage"
)

// RunState is the timer lifecycle state
type RunState uint8

const (
	Stopped RunState = iota
	Running
)

func (s RunState) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Strategy selects how remaining time is derived each tick
type Strategy uint8

const (
	// StrategyRecompute re-derives remaining time from the persisted start timestamp,
	// so delayed or skipped ticks self-correct
	StrategyRecompute Strategy = iota

	// StrategySnapshot decrements once per tick and persists {remaining,total}.
	// Ticks missed while the process is suspended are not counted.
	StrategySnapshot
)

func (s Strategy) String() string {
	if s == StrategySnapshot {
		return "snapshot"
	}
	return "recompute"
}

// ParseStrategy accepts "recompute" or "snapshot"
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "", "recompute":
		return StrategyRecompute, nil
	case "snapshot":
		return StrategySnapshot, nil
	default:
		return 0, errors.Errorf("unknown strategy %q", name)
	}
}

// Threshold is a remaining-seconds mark that raises a banner once when crossed
type Threshold struct {
	Seconds int
	Message string
	Level   AlertLevel
}

// DefaultThresholds are the five and one minute warnings
func DefaultThresholds() []Threshold {
	return []Threshold{
		{Seconds: constant.WarnThresholdSeconds, Message: constant.MessageFiveMinutes, Level: AlertWarning},
		{Seconds: constant.UrgentThresholdSeconds, Message: constant.MessageOneMinute, Level: AlertUrgent},
	}
}

// Minutes converts a whole-minute quiz length to a duration
func Minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

// Seconds converts a whole-second quiz length to a duration
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Config holds the construction parameters of a Timer
type Config struct {
	// Total is the allotted time, truncated to whole seconds, negative means zero
	Total time.Duration

	// QuizID derives the storage keys, timers running side by side need distinct ids
	QuizID string

	Strategy Strategy

	// Display may be nil, rendering is then skipped
	Display Display

	// OnExpire is called once per expiry, after the grace delay
	OnExpire func()
}

// Option customizes a Timer
type Option func(*Timer)

// WithClock sets the time source and scheduler
func WithClock(c clock.Clock) Option {
	return func(t *Timer) { t.clock = c }
}

// WithStore sets the persistence slot
func WithStore(s storage.Store) Option {
	return func(t *Timer) { t.store = s }
}

// WithLogger sets the logger, default discards
func WithLogger(l *logrus.Logger) Option {
	return func(t *Timer) { t.logger = l }
}

// WithAlerter sets the hook notified with each banner
func WithAlerter(a Alerter) Option {
	return func(t *Timer) { t.alerter = a }
}

// WithDispatcher sets how the expiry callback is run
func WithDispatcher(d Dispatcher) Option {
	return func(t *Timer) { t.dispatcher = d }
}

// WithThresholds replaces the warning thresholds
func WithThresholds(th ...Threshold) Option {
	return func(t *Timer) { t.thresholds = append([]Threshold(nil), th...) }
}

// WithGraceDelay sets the pause between expiry and the callback
func WithGraceDelay(d time.Duration) Option {
	return func(t *Timer) { t.graceDelay = d }
}

// WithBannerTTL sets how long banners stay visible
func WithBannerTTL(d time.Duration) Option {
	return func(t *Timer) { t.bannerTTL = d }
}

// WithStatus sets the registry that receives tick, warning and error counters
func WithStatus(r *status.Registry) Option {
	return func(t *Timer) { t.stats = r }
}

// WithKeys overrides the storage keys derived from the quiz id
func WithKeys(k Keys) Option {
	return func(t *Timer) { t.keys = k }
}

// Timer is a persistent countdown. All methods are safe for concurrent use.
type Timer struct {
	mu sync.Mutex

	clock      clock.Clock
	store      storage.Store
	display    Display
	alerter    Alerter
	dispatcher Dispatcher
	logger     *logrus.Logger
	log        *logrus.Entry
	stats      *status.Registry
	onExpire   func()

	keys       Keys
	strategy   Strategy
	thresholds []Threshold // most urgent last
	graceDelay time.Duration
	bannerTTL  time.Duration

	total     int
	remaining int
	startedAt time.Time // recompute anchor
	anchored  bool      // startedAt is persisted

	state      RunState
	expired    bool
	ticker     clock.Handle
	generation uint64 // bumped on stop, stale ticks compare against it

	lastObserved int // remaining seen by the previous tick
	tier         Tier
	tierSet      bool
	bannerSeq    uint64
	banner       clock.Handle
}

// New creates a timer and resumes any state persisted for its keys
func New(cfg Config, opts ...Option) *Timer {
	t := &Timer{
		clock:      clock.New(),
		store:      storage.NewMemoryStore(),
		display:    cfg.Display,
		dispatcher: sharedDispatcher{},
		onExpire:   cfg.OnExpire,
		keys:       KeysFor(cfg.QuizID),
		strategy:   cfg.Strategy,
		thresholds: DefaultThresholds(),
		graceDelay: constant.ExpiryGraceDelay,
		bannerTTL:  constant.BannerTTL,
		total:      seconds(cfg.Total),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = logs.Discard()
	}
	if t.stats == nil {
		t.stats = status.NewRegistry()
	}
	t.log = t.logger.WithFields(logrus.Fields{"key": t.keys.StartTime, "strategy": t.strategy})

	sort.SliceStable(t.thresholds, func(i, j int) bool {
		return t.thresholds[i].Seconds > t.thresholds[j].Seconds
	})

	t.mu.Lock()
	defer t.mu.Unlock()

	t.restoreLocked()
	t.lastObserved = t.remaining + 1
	t.renderLocked()
	return t
}

// restoreLocked resumes from the store or persists fresh state. A record left by the
// other strategy is carried over and removed, so only one key per quiz survives.
func (t *Timer) restoreLocked() {
	now := t.clock.Now()
	defer t.dropForeignLocked()

	switch t.strategy {
	case StrategySnapshot:
		if snap, ok := t.readSnapshotLocked(); ok {
			t.remaining = clampRemaining(snap.RemainingSeconds, t.total)
			t.log.Infof("resumed snapshot with %ds remaining", t.remaining)
			t.count(status.Resumed)
			return
		}
		if start, ok := t.readStartLocked(); ok {
			t.remaining = remainingAt(t.total, start, now)
			t.persistSnapshotLocked()
			t.log.Infof("carried start time %s into snapshot, %ds remaining", start.Format(time.RFC3339), t.remaining)
			t.count(status.Resumed)
			return
		}
		t.remaining = t.total
		t.persistSnapshotLocked()

	default:
		if start, ok := t.readStartLocked(); ok {
			t.startedAt = start
			t.anchored = true
			t.remaining = remainingAt(t.total, start, now)
			t.log.Infof("resumed session started %s, %ds remaining", start.Format(time.RFC3339), t.remaining)
			t.count(status.Resumed)
			return
		}
		if snap, ok := t.readSnapshotLocked(); ok {
			t.remaining = clampRemaining(snap.RemainingSeconds, t.total)
			t.startedAt = now.Add(-time.Duration(t.total-t.remaining) * time.Second)
			t.persistStartLocked()
			t.log.Infof("carried snapshot into start time, %ds remaining", t.remaining)
			t.count(status.Resumed)
			return
		}
		t.remaining = t.total
		t.startedAt = now
		t.persistStartLocked()
	}
	t.log.Infof("new session of %ds", t.total)
}

// dropForeignLocked removes the record the other strategy would read
func (t *Timer) dropForeignLocked() {
	key := t.keys.Snapshot
	if t.strategy == StrategySnapshot {
		key = t.keys.StartTime
	}
	if err := t.store.Remove(key); err != nil {
		t.log.WithError(err).Warnf("remove %s failed", key)
		t.count(status.StoreErrors)
	}
}

func (t *Timer) readStartLocked() (time.Time, bool) {
	raw, ok, err := t.store.Get(t.keys.StartTime)
	if err != nil {
		t.log.WithError(err).Warn("start time unreadable, starting fresh")
		t.count(status.StoreErrors)
		return time.Time{}, false
	}
	if !ok {
		return time.Time{}, false
	}
	start, err := decodeStartTime(raw)
	if err != nil {
		t.log.WithError(err).Warnf("corrupt start time %q, starting fresh", raw)
		return time.Time{}, false
	}
	return start, true
}

func (t *Timer) readSnapshotLocked() (Snapshot, bool) {
	raw, ok, err := t.store.Get(t.keys.Snapshot)
	if err != nil {
		t.log.WithError(err).Warn("snapshot unreadable, starting fresh")
		t.count(status.StoreErrors)
		return Snapshot{}, false
	}
	if !ok {
		return Snapshot{}, false
	}
	snap, err := decodeSnapshot(raw)
	if err != nil {
		t.log.WithError(err).Warnf("corrupt snapshot %q, starting fresh", raw)
		return Snapshot{}, false
	}
	return snap, true
}

func (t *Timer) persistStartLocked() {
	if err := t.store.Set(t.keys.StartTime, encodeStartTime(t.startedAt)); err != nil {
		t.log.WithError(err).Warn("persist start time failed")
		t.count(status.StoreErrors)
		return
	}
	t.anchored = true
}

func (t *Timer) persistSnapshotLocked() {
	raw, err := encodeSnapshot(Snapshot{RemainingSeconds: t.remaining, TotalSeconds: t.total})
	if err == nil {
		err = t.store.Set(t.keys.Snapshot, raw)
	}
	if err != nil {
		t.log.WithError(err).Warn("persist snapshot failed")
		t.count(status.StoreErrors)
	}
}

// Start begins ticking once per second. No-op while running or after expiry.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Running {
		return
	}
	if t.expired {
		t.log.Debug("start ignored, session expired")
		return
	}

	switch t.strategy {
	case StrategySnapshot:
		t.persistSnapshotLocked()
	default:
		if !t.anchored {
			// Re-anchor so the stored start reproduces the current remaining value
			t.startedAt = t.clock.Now().Add(-time.Duration(t.total-t.remaining) * time.Second)
			t.persistStartLocked()
		}
	}

	t.state = Running
	t.renderLocked()

	gen := t.generation
	t.ticker = t.clock.Every(constant.TickInterval, func() { t.tick(gen) })
	t.log.Debugf("started with %ds remaining", t.remaining)
}

// tick runs one recompute-render-warn-expire step for the generation that scheduled it
func (t *Timer) tick(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Running || gen != t.generation {
		return
	}
	t.count(status.Ticks)

	switch t.strategy {
	case StrategySnapshot:
		if t.remaining > 0 {
			t.remaining--
		}
		t.persistSnapshotLocked()
	default:
		if !t.anchored {
			t.persistStartLocked()
		}
		t.remaining = remainingAt(t.total, t.startedAt, t.clock.Now())
	}

	t.renderLocked()

	if t.remaining <= 0 {
		t.expireLocked()
		return
	}

	t.warnLocked()
	t.lastObserved = t.remaining
}

// warnLocked fires the most urgent threshold crossed since the previous tick
func (t *Timer) warnLocked() {
	var crossed *Threshold
	for i := range t.thresholds {
		th := &t.thresholds[i]
		if t.lastObserved > th.Seconds && t.remaining <= th.Seconds {
			crossed = th
		}
	}
	if crossed == nil {
		return
	}

	t.log.Infof("warning at %ds: %s", t.remaining, crossed.Message)
	t.count(status.Warnings)
	t.showBannerLocked(crossed.Message)
	t.alertLocked(crossed.Level)
}

func (t *Timer) expireLocked() {
	t.stopLocked(false)
	t.expired = true
	t.remaining = 0
	t.clearStateLocked()

	t.showBannerLocked(constant.MessageTimeUp)
	t.alertLocked(AlertExpired)
	t.log.Info("time expired")
	t.count(status.Expiries)

	if t.onExpire == nil {
		return
	}

	cb := t.onExpire
	t.clock.AfterFunc(t.graceDelay, func() {
		if err := t.dispatcher.Dispatch(cb); err != nil {
			t.log.WithError(err).Warn("dispatch failed, running expiry callback inline")
			cb()
		}
	})
}

// Stop cancels ticking. The snapshot strategy persists the current value so a pause
// survives a restart.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked(true)
}

func (t *Timer) stopLocked(persist bool) {
	if t.state != Running {
		return
	}

	t.generation++
	if t.ticker != nil {
		t.ticker.Cancel()
		t.ticker = nil
	}
	t.state = Stopped

	if persist && t.strategy == StrategySnapshot {
		t.persistSnapshotLocked()
	}
	t.log.Debugf("stopped with %ds remaining", t.remaining)
}

// Reset stops the timer, restores the full duration and clears persisted state.
// A following Start begins a fresh session.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked(false)
	t.remaining = t.total
	t.expired = false
	t.lastObserved = t.remaining + 1
	t.clearStateLocked()
	t.hideBannerLocked()
	t.renderLocked()
	t.log.Info("reset")
	t.count(status.Resets)
}

// ClearState removes every persisted key of this timer
func (t *Timer) ClearState() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearStateLocked()
}

func (t *Timer) clearStateLocked() {
	t.anchored = false
	for _, key := range []string{t.keys.StartTime, t.keys.Snapshot} {
		if err := t.store.Remove(key); err != nil {
			t.log.WithError(err).Warnf("remove %s failed", key)
			t.count(status.StoreErrors)
		}
	}
}

func (t *Timer) renderLocked() {
	if t.display == nil {
		return
	}

	t.display.SetText(FormatClock(t.remaining))

	tier := TierFor(t.remaining)
	if !t.tierSet || tier != t.tier {
		t.display.SetTier(tier)
		t.tier = tier
		t.tierSet = true
	}
}

// showBannerLocked replaces the visible banner and restarts the dismiss countdown
func (t *Timer) showBannerLocked(message string) {
	if t.display == nil {
		return
	}
	if t.banner != nil {
		t.banner.Cancel()
	}

	t.bannerSeq++
	seq := t.bannerSeq
	t.display.ShowBanner(message)
	t.banner = t.clock.AfterFunc(t.bannerTTL, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.bannerSeq == seq {
			t.hideBannerLocked()
		}
	})
}

func (t *Timer) hideBannerLocked() {
	if t.banner == nil {
		return
	}
	t.banner.Cancel()
	t.banner = nil
	t.bannerSeq++
	t.display.HideBanner()
}

func (t *Timer) count(name string) {
	t.stats.Counter(name).Add(1)
}

func (t *Timer) alertLocked(level AlertLevel) {
	if t.alerter != nil {
		t.alerter.Alert(level)
	}
}

// Remaining returns the seconds left
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Total returns the allotted seconds
func (t *Timer) Total() int {
	return t.total
}

// State returns the run state
func (t *Timer) State() RunState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Expired reports whether the session ran out, cleared by Reset
func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

// ElapsedTime returns total minus remaining, in seconds
func (t *Timer) ElapsedTime() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total - t.remaining
}

// FormattedElapsedTime returns the elapsed time as "Nm Ss"
func (t *Timer) FormattedElapsedTime() string {
	return FormatElapsed(t.ElapsedTime())
}

// Status returns the counter registry
func (t *Timer) Status() *status.Registry {
	return t.stats
}
