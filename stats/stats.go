// Package stats defines the prior-family capability consumed by the
// sampler and the per-cluster sufficient-statistics containers exchanged
// between local shards and the global state.
//
// The sampler never inspects a family's parameters. It only evaluates
// densities, builds sufficient statistics from raw rows, draws posterior
// densities and, for split/merge proposals, asks for log marginal
// likelihoods.
package stats

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrStatsMismatch is returned when shard statistics cannot be aligned.
var ErrStatsMismatch = errors.New("local stats mismatch")

// Density is a distribution over points that can evaluate log densities.
// *distmv.Normal from gonum satisfies it.
type Density interface {
	LogProb(x []float64) float64
}

// SuffStats is an additive summary of a set of rows.
type SuffStats[S any] interface {
	// Add returns the statistics of the union of both row sets.
	Add(other S) S
	// Count returns the number of rows summarized.
	Count() int
}

// Family is a conjugate prior family over cluster parameters.
type Family[S SuffStats[S]] interface {
	// Dim returns the point dimensionality.
	Dim() int

	// FromData summarizes rows. It must accept an empty slice.
	FromData(rows [][]float64) S

	// SampleDensity draws cluster parameters from the posterior given s.
	SampleDensity(s S, src rand.Source) (Density, error)

	// LogMarginal returns the log marginal likelihood of the rows
	// summarized by s.
	LogMarginal(s S) float64
}

// ClusterStats holds the statistics of one cluster together with those of
// its two sub-clusters.
type ClusterStats[S SuffStats[S]] struct {
	Prim S
	Aux  [2]S
}

// Add merges the statistics of the same cluster from another shard.
func (c ClusterStats[S]) Add(other ClusterStats[S]) ClusterStats[S] {
	return ClusterStats[S]{
		Prim: c.Prim.Add(other.Prim),
		Aux: [2]S{
			c.Aux[0].Add(other.Aux[0]),
			c.Aux[1].Add(other.Aux[1]),
		},
	}
}

// LocalStats is the ordered per-cluster statistics of a shard.
// The slice index is the cluster index.
type LocalStats[S SuffStats[S]] []ClusterStats[S]

// Counts returns the number of points per cluster.
func (ls LocalStats[S]) Counts() []int {
	counts := make([]int, len(ls))
	for k, c := range ls {
		counts[k] = c.Prim.Count()
	}
	return counts
}

// Total returns the number of points across all clusters.
func (ls LocalStats[S]) Total() int {
	var n int
	for _, c := range ls {
		n += c.Prim.Count()
	}
	return n
}

// Without returns a copy of ls with the given cluster indices dropped.
func (ls LocalStats[S]) Without(idx []int) LocalStats[S] {
	drop := make(map[int]struct{}, len(idx))
	for _, k := range idx {
		drop[k] = struct{}{}
	}
	out := make(LocalStats[S], 0, len(ls))
	for k, c := range ls {
		if _, ok := drop[k]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// MergeLocalStats sums the statistics of several shards index-wise.
// All parts must cover the same cluster indices.
func MergeLocalStats[S SuffStats[S]](parts ...LocalStats[S]) (LocalStats[S], error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: no shards", ErrStatsMismatch)
	}

	n := len(parts[0])
	merged := make(LocalStats[S], n)
	copy(merged, parts[0])

	for p, part := range parts[1:] {
		if len(part) != n {
			return nil, fmt.Errorf("%w: shard %d has %d clusters, want %d", ErrStatsMismatch, p+1, len(part), n)
		}
		for k := range merged {
			merged[k] = merged[k].Add(part[k])
		}
	}
	return merged, nil
}
