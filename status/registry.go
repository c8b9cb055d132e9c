// Package status holds live counters reported by a running countdown.
package status

import "sync/atomic"

// Counter names recorded by countdown.Timer
const (
	Ticks       = "ticks"
	Warnings    = "warnings"
	Expiries    = "expiries"
	Resets      = "resets"
	StoreErrors = "store_errors"
	Resumed     = "resumed"
)

// Registry is the counters facade.
// Writers cache the pointer from Counters.Get and update it directly.
type Registry struct {
	Counters *MetricMap[atomic.Int64]
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{Counters: NewMetricMap[atomic.Int64]()}
}

// Counter returns the named counter, creating it at zero
func (r *Registry) Counter(name string) *atomic.Int64 {
	return r.Counters.Get(name)
}

// Snapshot copies every counter, suitable as log fields
func (r *Registry) Snapshot() map[string]any {
	out := make(map[string]any, r.Counters.Count())
	r.Counters.Range(func(key string, c *atomic.Int64) {
		out[key] = c.Load()
	})
	return out
}
