package sequence

import (
	"sync"
	"time"
)

// Clock is the engine time source. Readings are offsets on a monotonic timeline so wall-clock
// adjustments on the host never reach action timing.
type Clock interface {
	Now() time.Duration
}

// MonotonicClock measures time since its construction using the runtime's monotonic reading.
type MonotonicClock struct {
	start time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

func (c *MonotonicClock) Now() time.Duration {
	return time.Since(c.start)
}

// ManualClock only moves when told to. Replays and tests drive it explicitly.
type ManualClock struct {
	mu  sync.RWMutex
	now time.Duration
}

func NewManualClock(start time.Duration) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Set moves the clock to t, backwards included.
func (c *ManualClock) Set(t time.Duration) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *ManualClock) Advance(d time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
	return c.now
}
