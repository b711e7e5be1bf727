package testutil

import (
	"sync"
	"time"
)

// Epoch is the first time a StepClock returns.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// StepClock is a deterministic clock for tests. Each call to Now advances
// it by one second, so rows stamped in insertion order get strictly
// increasing timestamps.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu  sync.Mutex
	seq int64
}

// NewStepClock creates a clock whose first Now returns Epoch.
func NewStepClock() *StepClock {
	return &StepClock{}
}

// Now returns Epoch plus one second per previous call.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := Epoch.Add(time.Duration(c.seq) * time.Second)
	c.seq++
	return t
}

// Calls returns how many times Now has been called.
func (c *StepClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock so the next Now returns Epoch again.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
