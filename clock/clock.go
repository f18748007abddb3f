// Package clock provides the time source used to stamp published events.
package clock

import (
	"sync"
	"time"
)

// Clock reports elapsed time since it was started. Values are monotonic and
// unaffected by wall-clock adjustments.
type Clock interface {
	// Now returns the time elapsed since Start. It is zero before Start.
	Now() time.Duration
	// StartedAt returns the wall time at which the clock was started.
	StartedAt() time.Time
	// Started reports whether Start has been called.
	Started() bool
	Start()
}

// Realtime is a Clock backed by the process monotonic clock.
type Realtime struct {
	mu    sync.RWMutex
	start time.Time
}

// NewRealtime returns a stopped Realtime clock.
func NewRealtime() *Realtime {
	return &Realtime{}
}

// Start records the epoch. Calling it again has no effect.
func (c *Realtime) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.start.IsZero() {
		c.start = time.Now()
	}
}

func (c *Realtime) Started() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.start.IsZero()
}

func (c *Realtime) StartedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.start
}

func (c *Realtime) Now() time.Duration {
	c.mu.RLock()
	start := c.start
	c.mu.RUnlock()
	if start.IsZero() {
		return 0
	}
	return time.Since(start)
}

// Manual is a Clock whose time only moves when Advance is called.
type Manual struct {
	mu      sync.Mutex
	started bool
	at      time.Time
	now     time.Duration
}

func NewManual() *Manual {
	return &Manual{}
}

func (c *Manual) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		c.started = true
		c.at = time.Now()
	}
}

func (c *Manual) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func (c *Manual) StartedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *Manual) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Manual) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

var (
	_ Clock = (*Realtime)(nil)
	_ Clock = (*Manual)(nil)
)
