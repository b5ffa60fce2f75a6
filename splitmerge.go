package dpmm

import (
	"context"
	"math"
	"slices"

	"github.com/hupe1980/dpmm/local"
	"github.com/hupe1980/dpmm/stats"
)

// splitMerge proposes splitting every mature cluster along its
// sub-clusters, then merging disjoint pairs of the remaining mature
// clusters. Accepted moves are applied to every shard and the statistics
// are collected again.
func (c *chain[S]) splitMerge(ctx context.Context, iter int) error {
	splits := c.proposeSplits()

	touched := make(map[int]struct{}, 2*len(splits))
	for _, s := range splits {
		touched[s.Cluster] = struct{}{}
		touched[s.Into] = struct{}{}
	}
	merges := c.proposeMerges(touched)

	if len(splits) == 0 && len(merges) == 0 {
		return nil
	}

	reset := make([]int, 0, len(touched))
	for k := range touched {
		reset = append(reset, k)
	}
	slices.Sort(reset)

	from := make([]int, len(merges))
	for i, mg := range merges {
		from[i] = mg.From
	}
	slices.Sort(from)

	k := len(c.ls) + len(splits) - len(merges)
	fam := c.m.model.DataDist
	parts := make([]stats.LocalStats[S], len(c.shards))
	err := c.forEachShard(func(s int, sh *shard) error {
		sh.state.ApplySplits(splits)
		sh.state.ResetClusters(reset, sh.rng)
		if err := sh.state.ApplyMerges(merges); err != nil {
			return err
		}
		if err := sh.state.RemoveClusters(from); err != nil {
			return err
		}
		ls, err := local.CollectStats(sh.state, fam, k)
		parts[s] = ls
		return err
	})
	if err != nil {
		return err
	}

	ls, err := stats.MergeLocalStats(parts...)
	if err != nil {
		return err
	}
	c.ls = ls

	for _, s := range splits {
		c.ages[s.Cluster] = 0
		c.ages = append(c.ages, 0)
	}
	for _, mg := range merges {
		c.ages[mg.Into] = 0
	}
	c.ages = dropIndices(c.ages, from)

	c.record(ctx, iter, splits, merges)
	return nil
}

func (c *chain[S]) record(ctx context.Context, iter int, splits []local.Split, merges []local.Merge) {
	split := make([]int, len(splits))
	for i, s := range splits {
		split[i] = s.Cluster
	}
	pairs := make([][2]int, len(merges))
	for i, mg := range merges {
		pairs[i] = [2]int{mg.Into, mg.From}
	}

	logger := c.m.opts.logger
	logger.LogSplits(ctx, iter, split)
	logger.LogMerges(ctx, iter, pairs)

	mc := c.m.opts.metricsCollector
	mc.RecordSplits(len(splits))
	mc.RecordMerges(len(merges))
}

// mature reports whether cluster k has outlived the burnout period. The
// outlier component never is.
func (c *chain[S]) mature(k int) bool {
	return k >= c.offset && c.ages[k] > c.m.model.BurnoutPeriod
}

// proposeSplits returns the accepted splits. New clusters are appended
// after the current ones, so existing indices stay valid.
func (c *chain[S]) proposeSplits() []local.Split {
	n := len(c.ls)
	nData := n - c.offset

	var splits []local.Split
	for k := c.offset; k < n; k++ {
		if nData+len(splits) >= c.m.opts.fit.MaxClusters {
			break
		}
		cs := c.ls[k]
		if !c.mature(k) || cs.Aux[0].Count() == 0 || cs.Aux[1].Count() == 0 {
			continue
		}
		if math.Log(c.rng.Float64()) < c.splitLogRatio(cs) {
			splits = append(splits, local.Split{Cluster: k, Into: n + len(splits)})
		}
	}
	return splits
}

// proposeMerges visits mature clusters in random order and pairs each
// with the first later cluster whose merge is accepted. Clusters in skip
// and clusters already merged are left alone.
func (c *chain[S]) proposeMerges(skip map[int]struct{}) []local.Merge {
	var cand []int
	for k := c.offset; k < len(c.ls); k++ {
		if _, ok := skip[k]; !ok && c.mature(k) {
			cand = append(cand, k)
		}
	}
	if len(cand) < 2 {
		return nil
	}

	perm := c.rng.Perm(len(cand))
	used := make(map[int]struct{}, len(cand))

	var merges []local.Merge
	for a, pa := range perm {
		i := cand[pa]
		if _, ok := used[i]; ok {
			continue
		}
		for _, pb := range perm[a+1:] {
			j := cand[pb]
			if _, ok := used[j]; ok {
				continue
			}
			if math.Log(c.rng.Float64()) < c.mergeLogRatio(c.ls[i], c.ls[j]) {
				used[i] = struct{}{}
				used[j] = struct{}{}
				merges = append(merges, local.Merge{Into: min(i, j), From: max(i, j)})
				break
			}
		}
	}
	return merges
}

// splitLogRatio is the log Hastings ratio of splitting a cluster into its
// two sub-clusters:
//
//	log α + lnΓ(N_L) + ℓ(L) + lnΓ(N_R) + ℓ(R) − lnΓ(N) − ℓ(C)
func (c *chain[S]) splitLogRatio(cs stats.ClusterStats[S]) float64 {
	fam := c.m.model.DataDist
	nl := float64(cs.Aux[0].Count())
	nr := float64(cs.Aux[1].Count())

	return math.Log(c.m.model.Alpha) +
		lgamma(nl) + fam.LogMarginal(cs.Aux[0]) +
		lgamma(nr) + fam.LogMarginal(cs.Aux[1]) -
		lgamma(nl+nr) - fam.LogMarginal(cs.Prim)
}

// mergeLogRatio is the log Hastings ratio of merging two clusters. Besides
// the inverse of the split ratio it carries the Dirichlet terms of the
// merged cluster's sub-cluster weights.
func (c *chain[S]) mergeLogRatio(a, b stats.ClusterStats[S]) float64 {
	fam := c.m.model.DataDist
	alpha := c.m.model.Alpha
	ni := float64(a.Prim.Count())
	nj := float64(b.Prim.Count())
	merged := a.Prim.Add(b.Prim)

	return -math.Log(alpha) +
		lgamma(ni+nj) + fam.LogMarginal(merged) -
		lgamma(ni) - fam.LogMarginal(a.Prim) -
		lgamma(nj) - fam.LogMarginal(b.Prim) +
		lgamma(alpha) - 2*lgamma(alpha/2) +
		lgamma(ni+alpha/2) + lgamma(nj+alpha/2) -
		lgamma(ni+nj+alpha)
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}
