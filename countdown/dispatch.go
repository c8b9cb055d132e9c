package countdown

import (
	"github.com/panjf2000/ants/v2"

	"github.com/lixenwraith/quiz-timer/core"
)

// Dispatcher runs the expiry callback without the timer waiting on it
type Dispatcher interface {
	Dispatch(fn func()) error
}

// InlineDispatcher runs callbacks on the calling goroutine
type InlineDispatcher struct{}

func (InlineDispatcher) Dispatch(fn func()) error {
	fn()
	return nil
}

// sharedDispatcher submits to the ants default pool
type sharedDispatcher struct{}

func (sharedDispatcher) Dispatch(fn func()) error {
	return ants.Submit(fn)
}

// PoolDispatcher runs callbacks on a dedicated goroutine pool.
// A panicking callback is routed to core.HandleCrash so the terminal is restored.
type PoolDispatcher struct {
	pool *ants.Pool
}

// NewPoolDispatcher creates a pool of up to size workers
func NewPoolDispatcher(size int) (*PoolDispatcher, error) {
	pool, err := ants.NewPool(size, ants.WithPanicHandler(core.HandleCrash))
	if err != nil {
		return nil, err
	}
	return &PoolDispatcher{pool: pool}, nil
}

func (d *PoolDispatcher) Dispatch(fn func()) error {
	return d.pool.Submit(fn)
}

// Close releases the pool workers
func (d *PoolDispatcher) Close() {
	d.pool.Release()
}
