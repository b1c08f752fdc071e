package tracekit

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
// A collector may be shared by parsers running on different goroutines.
type MetricsCollector interface {
	// RecordOpen is called after a trace was opened, err is nil if successful.
	RecordOpen(duration time.Duration, err error)

	// RecordScan is called after each Scan with the lines and words it read.
	RecordScan(lines int, words int64, duration time.Duration, err error)

	// RecordIntern is called after each Scan with the number of interned
	// tokens that created a record (allocs) or found one (reuses).
	RecordIntern(allocs, reuses int64)

	// RecordReset is called after each parser reset.
	RecordReset()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordOpen(time.Duration, error)             {}
func (NoopMetricsCollector) RecordScan(int, int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordIntern(int64, int64)                   {}
func (NoopMetricsCollector) RecordReset()                                {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	OpenCount      atomic.Int64
	OpenErrors     atomic.Int64
	OpenTotalNanos atomic.Int64
	ScanCount      atomic.Int64
	ScanErrors     atomic.Int64
	ScanTotalNanos atomic.Int64
	Lines          atomic.Int64
	Words          atomic.Int64
	InternAllocs   atomic.Int64
	InternReuses   atomic.Int64
	ResetCount     atomic.Int64
}

// RecordOpen implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOpen(duration time.Duration, err error) {
	b.OpenCount.Add(1)
	b.OpenTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.OpenErrors.Add(1)
	}
}

// RecordScan implements MetricsCollector.
func (b *BasicMetricsCollector) RecordScan(lines int, words int64, duration time.Duration, err error) {
	b.ScanCount.Add(1)
	b.ScanTotalNanos.Add(duration.Nanoseconds())
	b.Lines.Add(int64(lines))
	b.Words.Add(words)
	if err != nil {
		b.ScanErrors.Add(1)
	}
}

// RecordIntern implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIntern(allocs, reuses int64) {
	b.InternAllocs.Add(allocs)
	b.InternReuses.Add(reuses)
}

// RecordReset implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReset() {
	b.ResetCount.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		OpenCount:    b.OpenCount.Load(),
		OpenErrors:   b.OpenErrors.Load(),
		OpenAvgNanos: avg(b.OpenTotalNanos.Load(), b.OpenCount.Load()),
		ScanCount:    b.ScanCount.Load(),
		ScanErrors:   b.ScanErrors.Load(),
		ScanAvgNanos: avg(b.ScanTotalNanos.Load(), b.ScanCount.Load()),
		Lines:        b.Lines.Load(),
		Words:        b.Words.Load(),
		InternAllocs: b.InternAllocs.Load(),
		InternReuses: b.InternReuses.Load(),
		ResetCount:   b.ResetCount.Load(),
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
	OpenCount    int64
	OpenErrors   int64
	OpenAvgNanos int64
	ScanCount    int64
	ScanErrors   int64
	ScanAvgNanos int64
	Lines        int64
	Words        int64
	InternAllocs int64
	InternReuses int64
	ResetCount   int64
}

// HitRate returns the share of interned tokens that reused a record.
func (s BasicMetricsStats) HitRate() float64 {
	total := s.InternAllocs + s.InternReuses
	if total == 0 {
		return 0
	}
	return float64(s.InternReuses) / float64(total)
}
