package chain

import (
	"sync"
	"time"
)

// Clock supplies block time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads wall time, truncated to whole seconds like block
// timestamps.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// ManualClock only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
