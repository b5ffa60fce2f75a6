package dpmm

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting sampler metrics.
// Implement this interface to integrate with monitoring systems; the
// metrics package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordSweep is called after each Gibbs sweep with the number of
	// clusters at its end. err is nil if successful.
	RecordSweep(duration time.Duration, nClusters int, err error)

	// RecordSplits is called with the number of accepted split proposals.
	RecordSplits(accepted int)

	// RecordMerges is called with the number of accepted merge proposals.
	RecordMerges(accepted int)

	// RecordCheckpoint is called after each checkpoint save.
	RecordCheckpoint(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordSweep(time.Duration, int, error) {}
func (NoopMetricsCollector) RecordSplits(int)                      {}
func (NoopMetricsCollector) RecordMerges(int)                      {}
func (NoopMetricsCollector) RecordCheckpoint(time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	SweepCount       atomic.Int64
	SweepErrors      atomic.Int64
	SweepTotalNanos  atomic.Int64
	Clusters         atomic.Int64
	Splits           atomic.Int64
	Merges           atomic.Int64
	CheckpointCount  atomic.Int64
	CheckpointErrors atomic.Int64
}

// RecordSweep implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSweep(duration time.Duration, nClusters int, err error) {
	b.SweepCount.Add(1)
	b.SweepTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SweepErrors.Add(1)
		return
	}
	b.Clusters.Store(int64(nClusters))
}

// RecordSplits implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSplits(accepted int) {
	b.Splits.Add(int64(accepted))
}

// RecordMerges implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMerges(accepted int) {
	b.Merges.Add(int64(accepted))
}

// RecordCheckpoint implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCheckpoint(duration time.Duration, err error) {
	b.CheckpointCount.Add(1)
	if err != nil {
		b.CheckpointErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		SweepCount:       b.SweepCount.Load(),
		SweepErrors:      b.SweepErrors.Load(),
		SweepAvgNanos:    b.getAvgSweepNanos(),
		Clusters:         b.Clusters.Load(),
		Splits:           b.Splits.Load(),
		Merges:           b.Merges.Load(),
		CheckpointCount:  b.CheckpointCount.Load(),
		CheckpointErrors: b.CheckpointErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgSweepNanos() int64 {
	count := b.SweepCount.Load()
	if count == 0 {
		return 0
	}
	return b.SweepTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	SweepCount       int64
	SweepErrors      int64
	SweepAvgNanos    int64
	Clusters         int64
	Splits           int64
	Merges           int64
	CheckpointCount  int64
	CheckpointErrors int64
}
