package dpmm

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/hupe1980/dpmm/global"
	"github.com/hupe1980/dpmm/local"
	"github.com/hupe1980/dpmm/stats"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// shard is a local state together with its own random stream.
type shard struct {
	state *local.State
	src   *rand.PCG
	rng   *rand.Rand
}

func newShard(state *local.State, src *rand.PCG) *shard {
	return &shard{state: state, src: src, rng: rand.New(src)}
}

// chain is the state of one sampler run. Cluster bookkeeping (stats, ages)
// lives on the coordinator; shards only hold labels.
type chain[S stats.SuffStats[S]] struct {
	m      *Model[S]
	shards []*shard
	src    *rand.PCG
	rng    *rand.Rand
	offset int

	ls   stats.LocalStats[S]
	ages []int
	g    *global.State
}

// newChain spreads every shard uniformly over the outlier component (if
// any) and InitClusters data clusters. The coordinator draws from stream
// (seed, 0), shard s from stream (seed, s+1).
func (m *Model[S]) newChain(parts []*mat.Dense) *chain[S] {
	seed := m.opts.fit.Seed
	c := m.emptyChain(rand.NewPCG(seed, 0))

	k := c.offset + m.opts.fit.InitClusters
	c.shards = make([]*shard, len(parts))
	for s, part := range parts {
		src := rand.NewPCG(seed, uint64(s+1))
		sh := newShard(nil, src)
		sh.state = local.FromInit(part, k, sh.rng)
		c.shards[s] = sh
	}
	c.ages = make([]int, k)
	return c
}

func (m *Model[S]) emptyChain(src *rand.PCG) *chain[S] {
	c := &chain[S]{m: m, src: src, rng: rand.New(src)}
	if m.model.Outlier != nil {
		c.offset = 1
	}
	return c
}

// prepare summarizes the current labels, drops empty clusters and draws
// the first global state.
func (c *chain[S]) prepare() error {
	ls, err := c.collect(len(c.ages))
	if err != nil {
		return err
	}
	c.ls = ls
	if err := c.pruneEmpty(); err != nil {
		return err
	}
	return c.rebuild()
}

// sweep resamples all labels against the current global state, collects
// the new statistics and, when allowed, proposes splits and merges. The
// global state is not rebuilt; callers follow up with rebuild.
func (c *chain[S]) sweep(ctx context.Context, iter int, final, splitMerge bool) error {
	k := c.g.NClusters()
	fam := c.m.model.DataDist

	parts := make([]stats.LocalStats[S], len(c.shards))
	err := c.forEachShard(func(s int, sh *shard) error {
		if err := sh.state.SampleLabels(c.g, final, sh.rng); err != nil {
			return err
		}
		if err := sh.state.SampleLabelsAux(c.g, sh.rng); err != nil {
			return err
		}
		ls, err := local.CollectStats(sh.state, fam, k)
		parts[s] = ls
		return err
	})
	if err != nil {
		return err
	}

	if c.ls, err = stats.MergeLocalStats(parts...); err != nil {
		return err
	}
	if err := c.pruneEmpty(); err != nil {
		return err
	}

	if splitMerge {
		if err := c.splitMerge(ctx, iter); err != nil {
			return err
		}
	}

	for i := range c.ages {
		c.ages[i]++
	}
	return nil
}

// rebuild draws a new global state from the current statistics.
func (c *chain[S]) rebuild() error {
	var outlier *global.Outlier[S]
	if o := c.m.model.Outlier; o != nil {
		outlier = &global.Outlier[S]{Weight: o.Weight, Family: o.DataDist}
	}
	g, err := global.FromStats(c.m.model.DataDist, outlier, c.m.model.Alpha, c.ls, c.rng)
	if err != nil {
		return err
	}
	c.g = g
	return nil
}

// pruneEmpty removes data clusters without points from the shards and
// from the coordinator's bookkeeping. The outlier component is kept even
// when empty.
func (c *chain[S]) pruneEmpty() error {
	var empty []int
	for k := c.offset; k < len(c.ls); k++ {
		if c.ls[k].Prim.Count() == 0 {
			empty = append(empty, k)
		}
	}
	if len(empty) == 0 {
		return nil
	}
	if len(empty) == len(c.ls)-c.offset {
		return ErrNoClusters
	}

	err := c.forEachShard(func(_ int, sh *shard) error {
		return sh.state.RemoveClusters(empty)
	})
	if err != nil {
		return err
	}
	c.ls = c.ls.Without(empty)
	c.ages = dropIndices(c.ages, empty)
	return nil
}

// collect summarizes every shard for k clusters and merges the results.
func (c *chain[S]) collect(k int) (stats.LocalStats[S], error) {
	fam := c.m.model.DataDist
	parts := make([]stats.LocalStats[S], len(c.shards))
	err := c.forEachShard(func(s int, sh *shard) error {
		ls, err := local.CollectStats(sh.state, fam, k)
		parts[s] = ls
		return err
	})
	if err != nil {
		return nil, err
	}
	return stats.MergeLocalStats(parts...)
}

// forEachShard runs fn on every shard concurrently and waits for all of
// them. Each shard is touched by exactly one goroutine.
func (c *chain[S]) forEachShard(fn func(s int, sh *shard) error) error {
	var g errgroup.Group
	for s, sh := range c.shards {
		g.Go(func() error {
			if err := fn(s, sh); err != nil {
				return fmt.Errorf("shard %d: %w", s, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// result gathers the labels of all shards in row order.
func (c *chain[S]) result(iterations int) *Result {
	r := &Result{
		NClusters:  len(c.ls),
		Counts:     c.ls.Counts(),
		Weights:    append([]float64(nil), c.g.Weights...),
		Iterations: iterations,
		Outlier:    c.offset == 1,
		Global:     c.g,
	}
	for _, sh := range c.shards {
		r.Labels = append(r.Labels, sh.state.Labels()...)
		r.LabelsAux = append(r.LabelsAux, sh.state.LabelsAux()...)
	}
	return r
}

// dropIndices removes the entries at the ascending indices idx.
func dropIndices[T any](s []T, idx []int) []T {
	out := make([]T, 0, len(s))
	j := 0
	for i, v := range s {
		if j < len(idx) && idx[j] == i {
			j++
			continue
		}
		out = append(out, v)
	}
	return out
}
