package scheduler

import (
	"sync"
	"time"
)

// Clock reports monotonic time relative to an arbitrary origin.
type Clock interface {
	Now() time.Duration
}

// RealClock measures time since it was created.
type RealClock struct {
	start time.Time
}

// NewRealClock creates a RealClock starting at zero.
func NewRealClock() *RealClock {
	return &RealClock{start: time.Now()}
}

// Now implements Clock.
func (c *RealClock) Now() time.Duration {
	return time.Since(c.start)
}

// ManualClock only moves when told to. It is safe for concurrent use.
type ManualClock struct {
	mu  sync.Mutex
	now time.Duration
}

// NewManualClock creates a ManualClock at zero.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// Now implements Clock.
func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

// Set moves the clock to an absolute value. Moving backwards is ignored.
func (c *ManualClock) Set(now time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now > c.now {
		c.now = now
	}
}
