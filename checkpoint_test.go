package dpmm

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/dpmm/blobstore"
	"github.com/hupe1980/dpmm/checkpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// pinnedStore resumes from a fixed checkpoint instead of the latest one.
type pinnedStore struct {
	*checkpoint.Store
	iteration int
}

func (p *pinnedStore) Latest(ctx context.Context) (*checkpoint.Checkpoint, error) {
	return p.Load(ctx, p.BlobName(p.iteration))
}

type failingCheckpointer struct {
	saveErr   error
	latestErr error
}

func (f failingCheckpointer) Save(context.Context, *checkpoint.Checkpoint) error { return f.saveErr }

func (f failingCheckpointer) Latest(context.Context) (*checkpoint.Checkpoint, error) {
	return nil, f.latestErr
}

func TestFit_CheckpointsAreSaved(t *testing.T) {
	ctx := context.Background()
	data, _ := blobData(20)
	store := checkpoint.NewStore(blobstore.NewMemoryStore(), checkpoint.WithCompression(checkpoint.CompressionLZ4))
	mc := &BasicMetricsCollector{}

	m, err := NewGaussian(2, WithIters(25), WithNumShards(2), WithCheckpointer(store), WithCheckpointEvery(10), WithMetricsCollector(mc))
	require.NoError(t, err)
	_, err = m.Fit(ctx, data)
	require.NoError(t, err)

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ckpt-000000010", "ckpt-000000020"}, names)
	assert.Equal(t, int64(2), mc.GetStats().CheckpointCount)

	cp, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, checkpoint.Version, cp.Version)
	assert.Equal(t, 20, cp.Iteration)
	assert.Equal(t, uint64(42), cp.Seed)
	assert.Len(t, cp.Shards, 2)
	assert.Len(t, cp.Ages, cp.NClusters)
	assert.Equal(t, 180, cp.NPoints())
}

func TestFit_ResumeIsExact(t *testing.T) {
	ctx := context.Background()
	data, _ := blobData(21)
	store := checkpoint.NewStore(blobstore.NewMemoryStore())

	opts := []Option{WithSeed(5), WithIters(30), WithNumShards(3), WithCheckpointer(store), WithCheckpointEvery(10)}
	full, err := NewGaussian(2, opts...)
	require.NoError(t, err)
	want, err := full.Fit(ctx, data)
	require.NoError(t, err)

	for _, at := range []int{10, 20, 30} {
		pinned := &pinnedStore{Store: store, iteration: at}
		resumed, err := NewGaussian(2, append(opts, WithCheckpointer(pinned), WithResume())...)
		require.NoError(t, err)

		got, err := resumed.Fit(ctx, data)
		require.NoError(t, err)
		assert.Equal(t, want.Labels, got.Labels, "resumed at %d", at)
		assert.Equal(t, want.LabelsAux, got.LabelsAux, "resumed at %d", at)
		assert.Equal(t, want.Weights, got.Weights, "resumed at %d", at)
		assert.Equal(t, 30, got.Iterations)
	}
}

func TestFit_ResumeWithoutCheckpoint(t *testing.T) {
	ctx := context.Background()
	data, _ := blobData(22)

	plain, err := NewGaussian(2, WithIters(8))
	require.NoError(t, err)
	want, err := plain.Fit(ctx, data)
	require.NoError(t, err)

	store := checkpoint.NewStore(blobstore.NewMemoryStore())
	resumed, err := NewGaussian(2, WithIters(8), WithCheckpointer(store), WithCheckpointEvery(100), WithResume())
	require.NoError(t, err)
	got, err := resumed.Fit(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, want.Labels, got.Labels)
}

func TestFit_ResumeMismatch(t *testing.T) {
	ctx := context.Background()
	data, _ := blobData(23)
	store := checkpoint.NewStore(blobstore.NewMemoryStore())

	m, err := NewGaussian(2, WithSeed(1), WithIters(5), WithNumShards(2), WithCheckpointer(store), WithCheckpointEvery(5))
	require.NoError(t, err)
	_, err = m.Fit(ctx, data)
	require.NoError(t, err)

	tests := map[string][]Option{
		"seed":   {WithSeed(2), WithNumShards(2)},
		"shards": {WithSeed(1), WithNumShards(3)},
	}
	for name, opts := range tests {
		t.Run(name, func(t *testing.T) {
			r, err := NewGaussian(2, append(opts, WithIters(10), WithCheckpointer(store), WithResume())...)
			require.NoError(t, err)
			_, err = r.Fit(ctx, data)
			assert.ErrorIs(t, err, ErrCheckpointMismatch)
		})
	}

	t.Run("rows", func(t *testing.T) {
		r, err := NewGaussian(2, WithSeed(1), WithNumShards(2), WithIters(10), WithCheckpointer(store), WithResume())
		require.NoError(t, err)
		_, err = r.Fit(ctx, data.Slice(0, 100, 0, 2).(*mat.Dense))
		assert.ErrorIs(t, err, ErrCheckpointMismatch)
	})
}

func TestFit_CheckpointErrors(t *testing.T) {
	ctx := context.Background()
	data, _ := blobData(24)
	boom := errors.New("boom")

	mc := &BasicMetricsCollector{}
	m, err := NewGaussian(2, WithIters(5), WithCheckpointer(failingCheckpointer{saveErr: boom}), WithCheckpointEvery(2), WithMetricsCollector(mc))
	require.NoError(t, err)
	_, err = m.Fit(ctx, data)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), mc.GetStats().CheckpointErrors)
	assert.Equal(t, int64(1), mc.GetStats().SweepErrors)

	m, err = NewGaussian(2, WithIters(5), WithCheckpointer(failingCheckpointer{latestErr: boom}), WithResume())
	require.NoError(t, err)
	_, err = m.Fit(ctx, data)
	assert.ErrorIs(t, err, boom)
}
