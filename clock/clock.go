// Package clock provides the time source and task scheduling used by the countdown.
// Production code uses RealClock, tests inject MockClock for deterministic ticks.
//
// MockClock runs due callbacks synchronously inside Advance and can jump time without
// firing anything (SetTime). The bclock and clockwork mocks both start AfterFunc
// callbacks on fresh goroutines and fire timers on every time change, so neither can
// serve the countdown tests.
package clock

import (
	"sync"
	"time"

	bclock "github.com/benbjohnson/clock"

	"github.com/lixenwraith/quiz-timer/core"
)

// TimeProvider supplies the current wall-clock time
type TimeProvider interface {
	Now() time.Time
}

// Handle cancels a scheduled task
type Handle interface {
	// Cancel prevents future runs. Returns false if the task already ran (one-shot) or was cancelled
	Cancel() bool
}

// Scheduler runs functions after a delay or on a fixed period
type Scheduler interface {
	// AfterFunc runs fn once after d
	AfterFunc(d time.Duration, fn func()) Handle

	// Every runs fn each period d until cancelled, d must be positive
	Every(d time.Duration, fn func()) Handle
}

// Clock combines time and scheduling
type Clock interface {
	TimeProvider
	Scheduler
}

// RealClock implements Clock on a benbjohnson/clock base
type RealClock struct {
	base bclock.Clock
}

// New creates a clock on the system time
func New() *RealClock {
	return &RealClock{base: bclock.New()}
}

// NewFrom wraps an existing base, e.g. a bclock.Mock driven from outside
func NewFrom(base bclock.Clock) *RealClock {
	return &RealClock{base: base}
}

// Now returns the current time
func (c *RealClock) Now() time.Time {
	return c.base.Now()
}

// AfterFunc runs fn in its own goroutine after d
func (c *RealClock) AfterFunc(d time.Duration, fn func()) Handle {
	return &realTimer{timer: c.base.AfterFunc(d, fn)}
}

// Every starts a ticker goroutine calling fn each period
func (c *RealClock) Every(d time.Duration, fn func()) Handle {
	if d <= 0 {
		panic("clock: non-positive interval for Every")
	}

	t := &realTicker{
		ticker: c.base.Ticker(d),
		stop:   make(chan struct{}),
	}

	core.Go(func() {
		for {
			select {
			case <-t.stop:
				return
			case <-t.ticker.C:
				// Stop may race with a ready tick, stop wins
				select {
				case <-t.stop:
					return
				default:
				}
				fn()
			}
		}
	})

	return t
}

type realTimer struct {
	timer *bclock.Timer
}

func (t *realTimer) Cancel() bool {
	return t.timer.Stop()
}

type realTicker struct {
	ticker *bclock.Ticker
	stop   chan struct{}
	once   sync.Once
}

func (t *realTicker) Cancel() bool {
	cancelled := false
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.stop)
		cancelled = true
	})
	return cancelled
}
