package nav

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the default coalescing interval, roughly one frame
// at 60 Hz.
const DefaultInterval = 16 * time.Millisecond

// Coalescer rate-limits recomputes to at most one per interval. The first
// Trigger in an interval schedules the callback; further triggers while
// one is pending are dropped, not queued, so a burst of wheel events costs
// one recompute. The callback runs on a timer goroutine.
type Coalescer struct {
	interval time.Duration
	fn       func()

	pending atomic.Bool

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

// NewCoalescer creates a coalescer invoking fn at most once per interval.
// interval <= 0 selects DefaultInterval.
func NewCoalescer(interval time.Duration, fn func()) *Coalescer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Coalescer{interval: interval, fn: fn}
}

// Trigger requests a recompute. Reports whether this trigger scheduled one;
// false means a recompute was already pending and the trigger was dropped.
func (c *Coalescer) Trigger() bool {
	if !c.pending.CompareAndSwap(false, true) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.pending.Store(false)
		return false
	}
	c.timer = time.AfterFunc(c.interval, func() {
		c.pending.Store(false)
		c.fn()
	})
	return true
}

// Pending reports whether a recompute is scheduled but has not fired yet.
func (c *Coalescer) Pending() bool { return c.pending.Load() }

// Stop cancels any pending recompute and rejects further triggers.
// A callback already running is not interrupted.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		if c.timer.Stop() {
			c.pending.Store(false)
		}
		c.timer = nil
	}
}
