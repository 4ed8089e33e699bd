// Package retrytest provides a timer that fires immediately and records requested delays.
package retrytest

import (
	"sync"
	"time"
)

// Timer implements backoff.Timer without sleeping
type Timer struct {
	mu     sync.Mutex
	c      chan time.Time
	starts []time.Duration
}

// NewTimer creates a Timer
func NewTimer() *Timer {
	return &Timer{c: make(chan time.Time, 1)}
}

// Start records d and fires the channel at once
func (t *Timer) Start(d time.Duration) {
	t.mu.Lock()
	t.starts = append(t.starts, d)
	t.mu.Unlock()
	t.c <- time.Now()
}

// Stop does nothing
func (t *Timer) Stop() {}

// C returns the firing channel
func (t *Timer) C() <-chan time.Time {
	return t.c
}

// Starts returns every delay passed to Start
func (t *Timer) Starts() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.starts...)
}
