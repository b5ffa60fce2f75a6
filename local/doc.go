// Package local implements the per-shard state of the split/merge sampler.
//
// A State owns an immutable n×d data matrix together with two label
// vectors: the primary cluster label of every point and a binary
// sub-cluster (aux) label that is only meaningful within the point's
// primary cluster. Each sweep a State
//
//  1. resamples primary labels against a read-only global.State
//     (SampleLabels),
//  2. resamples aux labels within each cluster (SampleLabelsAux),
//  3. summarizes its points per cluster and sub-cluster (CollectStats).
//
// Split and merge decisions taken on the aggregated statistics are applied
// back with ApplySplits, ApplyMerges, ResetClusters and RemoveClusters.
//
// A State has no internal synchronization. Each shard must be owned by a
// single goroutine at a time; shards never share mutable data, so
// independent shards can be processed in parallel against the same
// global.State.
package local
