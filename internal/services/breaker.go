package services

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is a circuit breaker's position.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Breaker trips after a run of consecutive failures and stays open for a
// cooldown. The first call after the cooldown runs as a half-open probe;
// its outcome decides whether the breaker closes again or re-opens.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	log       *zap.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	now      func() time.Time
}

// NewBreaker creates a closed breaker that opens after threshold
// consecutive failures and probes again after cooldown.
func NewBreaker(threshold int, cooldown time.Duration, log *zap.Logger) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		log:       log,
		state:     StateClosed,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed. An open breaker past its
// cooldown transitions to half-open and admits a single probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.state = StateHalfOpen
			b.log.Info("circuit breaker half-open, probing")
			return true
		}
		return false
	}
	return false
}

// Record feeds a call outcome back into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state != StateClosed {
			b.log.Info("circuit breaker closed")
		}
		b.state = StateClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		b.state = StateOpen
		b.openedAt = b.now()
		b.log.Warn("circuit breaker open",
			zap.Int("consecutive_failures", b.failures),
			zap.Duration("cooldown", b.cooldown))
	}
}

// State returns the breaker's current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}
