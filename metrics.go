package virtualizer

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    pageOutCounter   prometheus.Counter
//	    pageInHistogram  prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordPageOut(duration time.Duration, err error) {
//	    p.pageOutCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordPageOut is called after each page-out.
	// duration is the total time taken, err is nil if successful.
	RecordPageOut(duration time.Duration, err error)

	// RecordPageIn is called after each page-in.
	RecordPageIn(duration time.Duration, err error)

	// RecordEviction is called after each eviction round with the number of
	// victims selected and the number whose page-out failed.
	RecordEviction(victims, failed int)

	// RecordDispose is called after each context disposal.
	RecordDispose(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordPageOut(time.Duration, error) {}
func (NoopMetricsCollector) RecordPageIn(time.Duration, error)  {}
func (NoopMetricsCollector) RecordEviction(int, int)            {}
func (NoopMetricsCollector) RecordDispose(time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	PageOutCount      atomic.Int64
	PageOutErrors     atomic.Int64
	PageOutTotalNanos atomic.Int64
	PageInCount       atomic.Int64
	PageInErrors      atomic.Int64
	PageInTotalNanos  atomic.Int64
	EvictionRounds    atomic.Int64
	EvictionVictims   atomic.Int64
	EvictionFailed    atomic.Int64
	DisposeCount      atomic.Int64
	DisposeErrors     atomic.Int64
}

// RecordPageOut implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPageOut(duration time.Duration, err error) {
	b.PageOutCount.Add(1)
	b.PageOutTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.PageOutErrors.Add(1)
	}
}

// RecordPageIn implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPageIn(duration time.Duration, err error) {
	b.PageInCount.Add(1)
	b.PageInTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.PageInErrors.Add(1)
	}
}

// RecordEviction implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEviction(victims, failed int) {
	b.EvictionRounds.Add(1)
	b.EvictionVictims.Add(int64(victims))
	b.EvictionFailed.Add(int64(failed))
}

// RecordDispose implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDispose(duration time.Duration, err error) {
	b.DisposeCount.Add(1)
	if err != nil {
		b.DisposeErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		PageOutCount:    b.PageOutCount.Load(),
		PageOutErrors:   b.PageOutErrors.Load(),
		PageOutAvgNanos: avg(b.PageOutTotalNanos.Load(), b.PageOutCount.Load()),
		PageInCount:     b.PageInCount.Load(),
		PageInErrors:    b.PageInErrors.Load(),
		PageInAvgNanos:  avg(b.PageInTotalNanos.Load(), b.PageInCount.Load()),
		EvictionRounds:  b.EvictionRounds.Load(),
		EvictionVictims: b.EvictionVictims.Load(),
		EvictionFailed:  b.EvictionFailed.Load(),
		DisposeCount:    b.DisposeCount.Load(),
		DisposeErrors:   b.DisposeErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	PageOutCount    int64
	PageOutErrors   int64
	PageOutAvgNanos int64
	PageInCount     int64
	PageInErrors    int64
	PageInAvgNanos  int64
	EvictionRounds  int64
	EvictionVictims int64
	EvictionFailed  int64
	DisposeCount    int64
	DisposeErrors   int64
}
