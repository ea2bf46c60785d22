// Package stats holds the operation counters the node kinds report.
package stats

import "sync/atomic"

// Counter is a monotonically increasing event counter. The zero value is
// ready to use.
type Counter struct {
	n atomic.Uint64
}

// Inc adds one to the counter.
func (c *Counter) Inc() { c.n.Add(1) }

// Add adds delta to the counter.
func (c *Counter) Add(delta uint64) { c.n.Add(delta) }

// Value returns the current count.
func (c *Counter) Value() uint64 { return c.n.Load() }
