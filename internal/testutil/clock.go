package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is the first instant a DeterministicClock reports.
var DefaultEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock is a thread-safe fake wall clock for tests.
//
// Every call to Now advances by one second from the epoch, so timestamps in
// alerts and journal records are reproducible across runs and golden files
// stay byte-identical.
//
// Implements engine.Clock.
type DeterministicClock struct {
	mu    sync.Mutex
	epoch time.Time
	ticks int64
}

// NewDeterministicClock creates a clock starting at DefaultEpoch.
//
// The first call to Now() returns DefaultEpoch + 1s.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(DefaultEpoch)
}

// NewDeterministicClockAt creates a clock starting at epoch.
func NewDeterministicClockAt(epoch time.Time) *DeterministicClock {
	return &DeterministicClock{epoch: epoch.UTC()}
}

// Now advances the clock one tick and returns the new instant.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	return c.epoch.Add(time.Duration(c.ticks) * time.Second)
}

// Ticks returns how many times Now has been called.
func (c *DeterministicClock) Ticks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Reset rewinds the clock to its epoch.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
