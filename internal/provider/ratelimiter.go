package provider

import (
	"sync"
	"time"
)

// RateLimiter counts upstream calls in a sliding window. It is advisory:
// callers decide whether to proceed, wait or serve cache when it says no.
type RateLimiter struct {
	mu     sync.Mutex
	calls  []time.Time
	limit  int
	window time.Duration
	now    func() time.Time
}

const (
	DefaultCallLimit  = 1000
	DefaultCallWindow = time.Minute
)

// NewRateLimiter creates a limiter that allows limit calls per window.
// Non-positive arguments fall back to 1000 calls per minute.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultCallLimit
	}
	if window <= 0 {
		window = DefaultCallWindow
	}
	return &RateLimiter{
		calls:  make([]time.Time, 0, limit),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// CanMakeCall reports whether fewer than limit calls were recorded in the window.
func (r *RateLimiter) CanMakeCall() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prune()
	return len(r.calls) < r.limit
}

// RecordCall counts one call at the current time.
func (r *RateLimiter) RecordCall() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prune()
	r.calls = append(r.calls, r.now())
}

// Count returns the number of calls in the current window.
func (r *RateLimiter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prune()
	return len(r.calls)
}

// prune drops calls older than the window. Must be called with mu held.
func (r *RateLimiter) prune() {
	cutoff := r.now().Add(-r.window)
	i := 0
	for i < len(r.calls) && !r.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		r.calls = append(r.calls[:0], r.calls[i:]...)
	}
}
