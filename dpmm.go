package dpmm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/dpmm/checkpoint"
	"github.com/hupe1980/dpmm/prior/niw"
	"github.com/hupe1980/dpmm/stats"
	"gonum.org/v1/gonum/mat"
)

// Model is a configured Dirichlet process mixture sampler.
// A Model holds no chain state; every Fit starts (or resumes) a new chain,
// so a Model may be reused and shared between goroutines.
type Model[S stats.SuffStats[S]] struct {
	model ModelOptions[S]
	opts  options
}

// New creates a Model for the given mixture model.
func New[S stats.SuffStats[S]](model ModelOptions[S], optFns ...Option) (*Model[S], error) {
	if err := model.Validate(); err != nil {
		return nil, err
	}
	o := applyOptions(optFns)
	if err := o.fit.Validate(); err != nil {
		return nil, err
	}
	if o.checkpointEvery < 1 {
		return nil, fmt.Errorf("%w: checkpoint interval %d", ErrInvalidOptions, o.checkpointEvery)
	}
	if o.resume && o.checkpointer == nil {
		return nil, fmt.Errorf("%w: resume requires a checkpointer", ErrInvalidOptions)
	}
	return &Model[S]{model: model, opts: o}, nil
}

// NewGaussian creates a Gaussian mixture sampler with a weakly informative
// Normal-Inverse-Wishart prior and DefaultModelOptions.
func NewGaussian(dim int, optFns ...Option) (*Model[niw.Stats], error) {
	if dim < 1 {
		return nil, fmt.Errorf("%w: dimension %d", ErrInvalidOptions, dim)
	}
	fam, err := niw.New(niw.DefaultHyperParams(dim))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return New(DefaultModelOptions[niw.Stats](fam), optFns...)
}

// ModelOptions returns the model the sampler was created with.
func (m *Model[S]) ModelOptions() ModelOptions[S] { return m.model }

// FitOptions returns the effective fit options.
func (m *Model[S]) FitOptions() FitOptions { return m.opts.fit }

// Fit runs the split/merge sampler on data, one point per row.
//
// The context is checked between sweeps only; a sweep that has started
// always completes.
func (m *Model[S]) Fit(ctx context.Context, data *mat.Dense) (*Result, error) {
	if data == nil || data.IsEmpty() {
		return nil, ErrEmptyData
	}
	if _, d := data.Dims(); d != m.model.Dim {
		return nil, &ErrDimensionMismatch{Expected: m.model.Dim, Actual: d}
	}

	c, start, err := m.startChain(ctx, data)
	if err != nil {
		return nil, err
	}

	fit := m.opts.fit
	for iter := start; iter < fit.Iters; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		begin := time.Now()
		final := m.finalSweep(iter)
		err := c.sweep(ctx, iter, final, m.splitSweep(iter))
		if err == nil && m.checkpointDue(iter) {
			err = m.saveCheckpoint(ctx, c, iter+1)
		}
		if err == nil {
			err = c.rebuild()
		}

		elapsed := time.Since(begin)
		m.opts.metricsCollector.RecordSweep(elapsed, len(c.ls), err)
		m.opts.logger.LogSweep(ctx, iter, len(c.ls), final, elapsed, err)
		if err != nil {
			return nil, fmt.Errorf("sweep %d: %w", iter, err)
		}
	}

	return c.result(max(start, fit.Iters)), nil
}

func (m *Model[S]) finalSweep(iter int) bool {
	return m.model.HardAssignment || iter >= m.opts.fit.Iters-m.opts.fit.ArgmaxSampleStop
}

func (m *Model[S]) splitSweep(iter int) bool {
	return iter < m.opts.fit.Iters-m.opts.fit.IterSplitStop
}

func (m *Model[S]) checkpointDue(iter int) bool {
	return m.opts.checkpointer != nil && (iter+1)%m.opts.checkpointEvery == 0
}

// startChain shards the data and initializes labels, either at random or
// from the latest checkpoint. It returns the first sweep to run.
func (m *Model[S]) startChain(ctx context.Context, data *mat.Dense) (*chain[S], int, error) {
	parts := shardRows(data, m.opts.numShards)

	if m.opts.resume {
		cp, err := m.opts.checkpointer.Latest(ctx)
		switch {
		case err == nil:
			c, err := m.restoreChain(cp, parts)
			if err != nil {
				return nil, 0, err
			}
			if err := c.prepare(); err != nil {
				return nil, 0, err
			}
			m.opts.logger.LogResume(ctx, cp.Iteration, len(c.ls))
			return c, cp.Iteration, nil
		case !errors.Is(err, checkpoint.ErrNoCheckpoint):
			return nil, 0, fmt.Errorf("load checkpoint: %w", err)
		}
	}

	c := m.newChain(parts)
	if err := c.prepare(); err != nil {
		return nil, 0, err
	}
	return c, 0, nil
}

// shardRows splits data into at most n contiguous row blocks of nearly
// equal size. The blocks are views of data.
func shardRows(data *mat.Dense, n int) []*mat.Dense {
	rows, cols := data.Dims()
	n = max(min(n, rows), 1)

	parts := make([]*mat.Dense, n)
	size, extra := rows/n, rows%n
	lo := 0
	for s := range parts {
		hi := lo + size
		if s < extra {
			hi++
		}
		parts[s] = data.Slice(lo, hi, 0, cols).(*mat.Dense)
		lo = hi
	}
	return parts
}
