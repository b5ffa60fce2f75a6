package dpmm

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/dpmm/prior/niw"
	"github.com/hupe1980/dpmm/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var blobCenters = [][]float64{{-10, -10}, {0, 12}, {10, -10}}

func blobData(seed uint64) (*mat.Dense, []int) {
	return testutil.NewRNG(seed).GaussianBlobs(blobCenters, 60, 0.5)
}

// gaussianModel is a NIW mixture without outlier component and a short
// burnout, so splits start early.
func gaussianModel(t *testing.T) ModelOptions[niw.Stats] {
	t.Helper()
	fam, err := niw.New(niw.DefaultHyperParams(2))
	require.NoError(t, err)
	m := DefaultModelOptions[niw.Stats](fam)
	m.BurnoutPeriod = 2
	m.Outlier = nil
	return m
}

func requireConsistent(t *testing.T, r *Result, n int) {
	t.Helper()
	require.Len(t, r.Labels, n)
	require.Len(t, r.LabelsAux, n)
	require.Len(t, r.Counts, r.NClusters)
	require.Len(t, r.Weights, r.NClusters)
	require.Equal(t, r.NClusters, r.Global.NClusters())

	counts := make([]int, r.NClusters)
	for i, l := range r.Labels {
		require.GreaterOrEqual(t, l, 0)
		require.Less(t, l, r.NClusters)
		require.Contains(t, []int{0, 1}, r.LabelsAux[i])
		counts[l]++
	}
	assert.Equal(t, counts, r.Counts)
	assert.InDelta(t, 1.0, floats.Sum(r.Weights), 1e-9)

	// Data clusters are never empty.
	for k := range r.Counts {
		if r.Outlier && k == 0 {
			continue
		}
		assert.Positive(t, r.Counts[k], "cluster %d", k)
	}
}

func TestFit_Blobs(t *testing.T) {
	data, _ := blobData(1)
	n, _ := data.Dims()

	m, err := New(gaussianModel(t), WithSeed(3), WithIters(40), WithNumShards(3))
	require.NoError(t, err)

	r, err := m.Fit(context.Background(), data)
	require.NoError(t, err)

	requireConsistent(t, r, n)
	assert.False(t, r.Outlier)
	assert.Equal(t, 40, r.Iterations)
	assert.GreaterOrEqual(t, r.DataClusters(), 2)
}

func TestFit_Reproducible(t *testing.T) {
	data, _ := blobData(2)

	fit := func(seed uint64, shards int) *Result {
		m, err := NewGaussian(2, WithSeed(seed), WithIters(15), WithNumShards(shards))
		require.NoError(t, err)
		r, err := m.Fit(context.Background(), data)
		require.NoError(t, err)
		return r
	}

	a := fit(11, 2)
	b := fit(11, 2)
	assert.Equal(t, a.Labels, b.Labels)
	assert.Equal(t, a.LabelsAux, b.LabelsAux)
	assert.Equal(t, a.Weights, b.Weights)

	c := fit(12, 2)
	assert.NotEqual(t, a.LabelsAux, c.LabelsAux)
}

func TestFit_ModelIsReusable(t *testing.T) {
	data, _ := blobData(3)
	m, err := NewGaussian(2, WithIters(5), WithNumShards(2))
	require.NoError(t, err)

	a, err := m.Fit(context.Background(), data)
	require.NoError(t, err)
	b, err := m.Fit(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, a.Labels, b.Labels)
}

func TestFit_OutlierComponent(t *testing.T) {
	data, _ := blobData(4)
	n, _ := data.Dims()

	m, err := NewGaussian(2, WithIters(10))
	require.NoError(t, err)

	r, err := m.Fit(context.Background(), data)
	require.NoError(t, err)

	requireConsistent(t, r, n)
	assert.True(t, r.Outlier)
	assert.Equal(t, r.NClusters-1, r.DataClusters())
	assert.GreaterOrEqual(t, r.DataClusters(), 1)
	assert.InDelta(t, 0.05, r.Weights[0], 1e-12)
}

func TestFit_MaxClustersOne(t *testing.T) {
	data, _ := blobData(5)
	n, _ := data.Dims()

	model := gaussianModel(t)
	model.HardAssignment = true
	fit := DefaultFitOptions()
	fit.Iters = 20
	fit.MaxClusters = 1

	m, err := New(model, WithFitOptions(fit), WithNumShards(4))
	require.NoError(t, err)

	r, err := m.Fit(context.Background(), data)
	require.NoError(t, err)

	requireConsistent(t, r, n)
	assert.Equal(t, 1, r.NClusters)
	assert.Equal(t, []int{n}, r.Counts)
	assert.InDelta(t, 1.0, r.Weights[0], 1e-12)
}

func TestFit_MoreShardsThanPoints(t *testing.T) {
	data := mat.NewDense(3, 2, []float64{0, 0, 0.1, 0.2, -0.1, 0.1})
	m, err := New(gaussianModel(t), WithIters(3), WithNumShards(8))
	require.NoError(t, err)

	r, err := m.Fit(context.Background(), data)
	require.NoError(t, err)
	requireConsistent(t, r, 3)
}

func TestFit_InitClusters(t *testing.T) {
	data, _ := blobData(6)
	n, _ := data.Dims()

	fit := DefaultFitOptions()
	fit.InitClusters = 5
	fit.Iters = 1
	fit.IterSplitStop = 1

	m, err := New(gaussianModel(t), WithFitOptions(fit))
	require.NoError(t, err)

	r, err := m.Fit(context.Background(), data)
	require.NoError(t, err)
	requireConsistent(t, r, n)
	assert.LessOrEqual(t, r.NClusters, 5)
}

func TestFit_EmptyData(t *testing.T) {
	m, err := NewGaussian(2)
	require.NoError(t, err)

	_, err = m.Fit(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyData)

	_, err = m.Fit(context.Background(), &mat.Dense{})
	assert.ErrorIs(t, err, ErrEmptyData)
}

func TestFit_DimensionMismatch(t *testing.T) {
	m, err := NewGaussian(3)
	require.NoError(t, err)

	_, err = m.Fit(context.Background(), mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
	var dimErr *ErrDimensionMismatch
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 3, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Actual)
}

func TestFit_ContextCanceled(t *testing.T) {
	data, _ := blobData(7)
	m, err := NewGaussian(2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = m.Fit(ctx, data)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFit_Metrics(t *testing.T) {
	data, _ := blobData(8)
	mc := &BasicMetricsCollector{}

	m, err := New(gaussianModel(t), WithIters(12), WithMetricsCollector(mc))
	require.NoError(t, err)

	r, err := m.Fit(context.Background(), data)
	require.NoError(t, err)

	s := mc.GetStats()
	assert.Equal(t, int64(12), s.SweepCount)
	assert.Zero(t, s.SweepErrors)
	assert.Equal(t, int64(r.NClusters), s.Clusters)
	assert.Zero(t, s.CheckpointCount)
	// Every data cluster beyond the first came from an accepted split.
	assert.GreaterOrEqual(t, s.Splits, int64(r.NClusters-1))
}

func TestShardRows(t *testing.T) {
	data := mat.NewDense(7, 1, []float64{0, 1, 2, 3, 4, 5, 6})

	parts := shardRows(data, 3)
	require.Len(t, parts, 3)

	var sizes []int
	var got []float64
	for _, p := range parts {
		r, _ := p.Dims()
		sizes = append(sizes, r)
		got = append(got, mat.Col(nil, 0, p)...)
	}
	assert.Equal(t, []int{3, 2, 2}, sizes)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6}, got)

	assert.Len(t, shardRows(data, 10), 7)
	assert.Len(t, shardRows(data, 0), 1)
}

func TestDropIndices(t *testing.T) {
	assert.Equal(t, []int{10, 13}, dropIndices([]int{10, 11, 12, 13}, []int{1, 2}))
	assert.Equal(t, []string{"a"}, dropIndices([]string{"a"}, nil))
	assert.Empty(t, dropIndices([]int{1, 2}, []int{0, 1}))
}
