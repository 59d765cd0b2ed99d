// Package perf wall-clocks named operations and keeps running aggregates
// in memory. Aggregates reset with the process; nothing is persisted.
package perf

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SlowThreshold is the duration past which an operation is logged as slow.
const SlowThreshold = time.Second

// Metric is the running aggregate for one operation name.
type Metric struct {
	Count     int64         `json:"count"`
	Errors    int64         `json:"errors"`
	TotalTime time.Duration `json:"total_time_ns"`
	AvgTime   time.Duration `json:"avg_time_ns"`
	MaxTime   time.Duration `json:"max_time_ns"`
}

// Monitor measures operations by name. One instance is shared by the whole
// process and is safe for concurrent use.
type Monitor struct {
	mu      sync.Mutex
	metrics map[string]*Metric
	log     *zap.Logger
}

// New creates an empty monitor.
func New(log *zap.Logger) *Monitor {
	return &Monitor{
		metrics: make(map[string]*Metric),
		log:     log,
	}
}

// Measure runs fn, recording its wall-clock duration under name. The sample
// is recorded whether or not fn fails; fn's error is returned unchanged.
func (m *Monitor) Measure(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	m.record(name, time.Since(start), err)
	return err
}

func (m *Monitor) record(name string, elapsed time.Duration, err error) {
	m.mu.Lock()
	metric, ok := m.metrics[name]
	if !ok {
		metric = &Metric{}
		m.metrics[name] = metric
	}
	metric.Count++
	metric.TotalTime += elapsed
	metric.AvgTime = metric.TotalTime / time.Duration(metric.Count)
	if elapsed > metric.MaxTime {
		metric.MaxTime = elapsed
	}
	if err != nil {
		metric.Errors++
	}
	m.mu.Unlock()

	if elapsed > SlowThreshold {
		m.log.Warn("slow operation",
			zap.String("op", name),
			zap.Duration("elapsed", elapsed))
	}
	if err != nil {
		m.log.Error("operation failed",
			zap.String("op", name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
	}
}

// Metrics returns a snapshot of all aggregates.
func (m *Monitor) Metrics() map[string]Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Metric, len(m.metrics))
	for name, metric := range m.metrics {
		out[name] = *metric
	}
	return out
}

// Reset clears all aggregates.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = make(map[string]*Metric)
}

// MeasureValue is Measure for operations that return a value.
func MeasureValue[T any](m *Monitor, ctx context.Context, name string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	v, err := fn(ctx)
	m.record(name, time.Since(start), err)
	return v, err
}
