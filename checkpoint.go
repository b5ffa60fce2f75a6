package dpmm

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/hupe1980/dpmm/checkpoint"
	"github.com/hupe1980/dpmm/local"
	"gonum.org/v1/gonum/mat"
)

// Checkpointer persists chain snapshots. *checkpoint.Store implements it.
type Checkpointer interface {
	Save(ctx context.Context, c *checkpoint.Checkpoint) error
	// Latest returns checkpoint.ErrNoCheckpoint when nothing was saved yet.
	Latest(ctx context.Context) (*checkpoint.Checkpoint, error)
}

var _ Checkpointer = (*checkpoint.Store)(nil)

// saveCheckpoint stores the chain after completed sweeps. It runs before
// the global state is redrawn, so a restored chain redraws it from the
// same generator state.
func (m *Model[S]) saveCheckpoint(ctx context.Context, c *chain[S], completed int) error {
	begin := time.Now()
	cp, err := c.snapshot(completed)
	if err == nil {
		err = m.opts.checkpointer.Save(ctx, cp)
	}
	m.opts.metricsCollector.RecordCheckpoint(time.Since(begin), err)
	m.opts.logger.LogCheckpoint(ctx, completed, err)
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

func (c *chain[S]) snapshot(completed int) (*checkpoint.Checkpoint, error) {
	rng, err := c.src.MarshalBinary()
	if err != nil {
		return nil, err
	}
	cp := &checkpoint.Checkpoint{
		Version:   checkpoint.Version,
		Iteration: completed,
		Seed:      c.m.opts.fit.Seed,
		NClusters: len(c.ls),
		Ages:      append([]int(nil), c.ages...),
		RNG:       rng,
		Shards:    make([]checkpoint.ShardState, len(c.shards)),
	}
	for s, sh := range c.shards {
		state, err := sh.src.MarshalBinary()
		if err != nil {
			return nil, err
		}
		cp.Shards[s] = checkpoint.ShardState{
			Labels:    sh.state.Labels(),
			LabelsAux: sh.state.LabelsAux(),
			RNG:       state,
		}
	}
	return cp, nil
}

// restoreChain rebuilds a chain from a checkpoint taken with the same
// seed and shard layout.
func (m *Model[S]) restoreChain(cp *checkpoint.Checkpoint, parts []*mat.Dense) (*chain[S], error) {
	switch {
	case cp.Seed != m.opts.fit.Seed:
		return nil, fmt.Errorf("%w: seed %d, want %d", ErrCheckpointMismatch, cp.Seed, m.opts.fit.Seed)
	case len(cp.Shards) != len(parts):
		return nil, fmt.Errorf("%w: %d shards, want %d", ErrCheckpointMismatch, len(cp.Shards), len(parts))
	case len(cp.Ages) != cp.NClusters:
		return nil, fmt.Errorf("%w: %d ages for %d clusters", ErrCheckpointMismatch, len(cp.Ages), cp.NClusters)
	}

	src := new(rand.PCG)
	if err := src.UnmarshalBinary(cp.RNG); err != nil {
		return nil, fmt.Errorf("%w: coordinator generator: %w", ErrCheckpointMismatch, err)
	}
	c := m.emptyChain(src)
	if cp.NClusters <= c.offset {
		return nil, fmt.Errorf("%w: %d clusters", ErrCheckpointMismatch, cp.NClusters)
	}

	c.shards = make([]*shard, len(parts))
	for s, part := range parts {
		st := cp.Shards[s]
		state, err := local.New(part, st.Labels, st.LabelsAux)
		if err != nil {
			return nil, fmt.Errorf("%w: shard %d: %w", ErrCheckpointMismatch, s, err)
		}
		shardSrc := new(rand.PCG)
		if err := shardSrc.UnmarshalBinary(st.RNG); err != nil {
			return nil, fmt.Errorf("%w: shard %d generator: %w", ErrCheckpointMismatch, s, err)
		}
		sh := newShard(state, shardSrc)
		c.shards[s] = sh
	}
	c.ages = append([]int(nil), cp.Ages...)
	return c, nil
}
