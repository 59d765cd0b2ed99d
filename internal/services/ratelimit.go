package services

import (
	"sync"
	"time"
)

// Limiter is a fixed-window request counter: up to limit calls per window,
// counter reset when a new window starts.
type Limiter struct {
	limit  int
	window time.Duration

	mu          sync.Mutex
	count       int
	windowStart time.Time
	now         func() time.Time
}

// NewLimiter allows at most limit requests per window.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{limit: limit, window: window, now: time.Now}
}

// Allow consumes one slot in the current window if any remain.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 0
	}
	if l.count >= l.limit {
		return false
	}
	l.count++
	return true
}

// Remaining reports how many slots are left in the current window.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.now().Sub(l.windowStart) >= l.window {
		return l.limit
	}
	return l.limit - l.count
}
