// Package debounce coalesces bursts of writes to the same key: only the
// last operation scheduled within the delay window runs. Deferred failures
// are logged, never returned to the caller.
package debounce

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Debouncer holds one pending timer per key. A single instance is shared
// process-wide; the mutex makes scheduling safe from any goroutine.
type Debouncer struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	log    *zap.Logger
}

// New creates an empty debouncer.
func New(log *zap.Logger) *Debouncer {
	return &Debouncer{
		timers: make(map[string]*time.Timer),
		log:    log,
	}
}

// Debounce cancels any pending operation registered under key and schedules
// op to run after delay. The operation is fire-and-forget: its error is
// logged and not propagated.
func (d *Debouncer) Debounce(key string, delay time.Duration, op func(context.Context) error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[key]; ok {
		t.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		// Only clear the slot if it still belongs to this timer; a later
		// Debounce call may have replaced it.
		if d.timers[key] == timer {
			delete(d.timers, key)
		}
		d.mu.Unlock()

		if err := op(context.Background()); err != nil {
			d.log.Warn("debounced operation failed",
				zap.String("key", key),
				zap.Error(err))
		}
	})
	d.timers[key] = timer
}

// Cancel drops the pending operation for key, if any. Returns whether an
// operation was pending.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.timers[key]
	if !ok {
		return false
	}
	t.Stop()
	delete(d.timers, key)
	return true
}

// CancelAll drops every pending operation and returns how many were pending.
func (d *Debouncer) CancelAll() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.timers)
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
	return n
}

// Pending returns the number of keys with a scheduled operation.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}
