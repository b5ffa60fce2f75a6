package local

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/hupe1980/dpmm/global"
	"github.com/hupe1980/dpmm/internal/numeric"
	"github.com/hupe1980/dpmm/stats"
	"github.com/hupe1980/dpmm/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0))
}

func column(vals ...float64) *mat.Dense {
	return mat.NewDense(len(vals), 1, vals)
}

func gauss(mean float64) testutil.UnitGaussian {
	return testutil.UnitGaussian{Mean: []float64{mean}}
}

// twoClusterState has clusters centered at 0 and 10, each with sub-clusters
// one unit to either side.
func twoClusterState() *global.State {
	cluster := func(m float64) global.Cluster {
		return global.Cluster{
			Prim:    gauss(m),
			Weights: [2]float64{0.5, 0.5},
			Aux:     [2]stats.Density{gauss(m - 5), gauss(m + 5)},
		}
	}
	return &global.State{
		Weights:  []float64{0.5, 0.5},
		Clusters: []global.Cluster{cluster(0), cluster(20)},
	}
}

func assertLabelDomain(t *testing.T, l *State, nClusters int) {
	t.Helper()
	for i, label := range l.Labels() {
		assert.GreaterOrEqual(t, label, 0, "point %d", i)
		assert.Less(t, label, nClusters, "point %d", i)
	}
	for i, a := range l.LabelsAux() {
		assert.Contains(t, []int{0, 1}, a, "point %d", i)
	}
}

func TestFromInit(t *testing.T) {
	data := testutil.NewRNG(1).GaussianMatrix(500, 3)
	l := FromInit(data, 4, newRNG(1))

	assert.Equal(t, 500, l.NPoints())
	assert.Same(t, data, l.Data())
	assertLabelDomain(t, l, 4)

	counts := numeric.Bincount(l.Labels())
	assert.Len(t, counts, 4)
	assert.Len(t, numeric.Bincount(l.LabelsAux()), 2)
}

func TestNew(t *testing.T) {
	data := column(1, 2, 3)

	l, err := New(data, []int{0, 1, 0}, []int{1, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 0}, l.Labels())

	_, err = New(data, []int{0, 1}, []int{1, 0, 1})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = New(data, []int{0, -1, 0}, []int{1, 0, 1})
	assert.ErrorIs(t, err, ErrLabelOutOfRange)

	_, err = New(data, []int{0, 1, 0}, []int{1, 2, 1})
	assert.ErrorIs(t, err, ErrInvalidAuxLabel)
	var le *LabelError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 1, le.Point)
}

func TestLabelsAreCopies(t *testing.T) {
	l, err := New(column(1, 2), []int{0, 0}, []int{0, 1})
	require.NoError(t, err)

	labels := l.Labels()
	labels[0] = 7
	assert.Equal(t, []int{0, 0}, l.Labels())
}

func TestSampleLabels_Final(t *testing.T) {
	data := column(-0.5, 19, 0.3, 21, 10.1)
	l := FromInit(data, 2, newRNG(3))
	g := twoClusterState()

	require.NoError(t, l.SampleLabels(g, true, newRNG(4)))
	first := l.Labels()
	assert.Equal(t, []int{0, 1, 0, 1, 1}, first)

	require.NoError(t, l.SampleLabels(g, true, newRNG(5)))
	assert.Equal(t, first, l.Labels(), "argmax assignment must be deterministic")
}

func TestSampleLabels_Final_WeightsShiftTies(t *testing.T) {
	// 10 is equidistant from both centers: ties go to the first cluster
	// unless the weights say otherwise.
	l := FromInit(column(10), 2, newRNG(1))
	g := twoClusterState()

	require.NoError(t, l.SampleLabels(g, true, nil))
	assert.Equal(t, []int{0}, l.Labels())

	g.Weights = []float64{0.4, 0.6}
	require.NoError(t, l.SampleLabels(g, true, nil))
	assert.Equal(t, []int{1}, l.Labels())
}

func TestSampleLabels_Stochastic(t *testing.T) {
	rng := testutil.NewRNG(7)
	data, truth := rng.GaussianBlobs([][]float64{{0}, {20}}, 100, 1)
	l := FromInit(data, 2, newRNG(7))

	require.NoError(t, l.SampleLabels(twoClusterState(), false, newRNG(8)))
	assertLabelDomain(t, l, 2)
	assert.Equal(t, truth, l.Labels())
}

func TestSampleLabels_InvalidGlobal(t *testing.T) {
	l := FromInit(column(1, 2), 2, newRNG(1))
	before := l.Labels()

	g := twoClusterState()
	g.Weights = []float64{0, 0}
	err := l.SampleLabels(g, false, newRNG(1))
	assert.ErrorIs(t, err, global.ErrInvalidState)
	assert.Equal(t, before, l.Labels())
}

type zeroDensity struct{}

func (zeroDensity) LogProb([]float64) float64 { return math.Inf(-1) }

func TestSampleLabels_ZeroLikelihood(t *testing.T) {
	l := FromInit(column(1, 2), 2, newRNG(1))
	before := l.Labels()

	g := twoClusterState()
	for k := range g.Clusters {
		g.Clusters[k].Prim = zeroDensity{}
	}
	err := l.SampleLabels(g, false, newRNG(1))
	assert.ErrorIs(t, err, numeric.ErrInvalidWeights)
	assert.Equal(t, before, l.Labels())
}

func TestSampleLabelsAux(t *testing.T) {
	data := column(-5, 5, 15, 25, -4.5, 24)
	l, err := New(data, []int{0, 0, 1, 1, 0, 1}, []int{0, 0, 0, 0, 0, 0})
	require.NoError(t, err)

	require.NoError(t, l.SampleLabelsAux(twoClusterState(), newRNG(2)))
	assert.Equal(t, []int{0, 1, 0, 1, 0, 1}, l.LabelsAux())
	assert.Equal(t, []int{0, 0, 1, 1, 0, 1}, l.Labels(), "primary labels are untouched")
}

func TestSampleLabelsAux_LabelOutOfRange(t *testing.T) {
	l, err := New(column(1, 2), []int{0, 2}, []int{0, 0})
	require.NoError(t, err)

	err = l.SampleLabelsAux(twoClusterState(), newRNG(2))
	assert.ErrorIs(t, err, ErrLabelOutOfRange)
}

func TestSampleLabels_DomainAcrossSweeps(t *testing.T) {
	data := testutil.NewRNG(9).GaussianMatrix(300, 1)
	l := FromInit(data, 2, newRNG(9))
	g := twoClusterState()
	rng := newRNG(10)

	for sweep := 0; sweep < 5; sweep++ {
		require.NoError(t, l.SampleLabels(g, false, rng))
		require.NoError(t, l.SampleLabelsAux(g, rng))
		assertLabelDomain(t, l, 2)
	}
}

func TestCollectStats_Partition(t *testing.T) {
	data := testutil.NewRNG(11).GaussianMatrix(400, 2)
	l := FromInit(data, 5, newRNG(11))
	fam := testutil.NewUnitFamily(2)

	ls, err := CollectStats[testutil.SumStats](l, fam, 5)
	require.NoError(t, err)
	require.Len(t, ls, 5)

	counts := numeric.Bincount(l.Labels())
	for k, cs := range ls {
		assert.Equal(t, counts[k], cs.Prim.Count(), "cluster %d", k)
		assert.Equal(t, cs.Prim.Count(), cs.Aux[0].Count()+cs.Aux[1].Count(), "cluster %d", k)
		assert.Equal(t, cs, CollectClusterStats[testutil.SumStats](l, fam, k))
	}
	assert.Equal(t, 400, ls.Total())
}

func TestCollectStats_SubClusterSums(t *testing.T) {
	l, err := New(column(1, 2, 4, 8, 16), []int{0, 0, 1, 0, 1}, []int{1, 0, 0, 0, 1})
	require.NoError(t, err)

	ls, err := CollectStats[testutil.SumStats](l, testutil.NewUnitFamily(1), 3)
	require.NoError(t, err)

	assert.Equal(t, []float64{11}, ls[0].Prim.Sum)
	assert.Equal(t, []float64{10}, ls[0].Aux[0].Sum)
	assert.Equal(t, []float64{1}, ls[0].Aux[1].Sum)
	assert.Equal(t, []float64{4}, ls[1].Aux[0].Sum)
	assert.Equal(t, []float64{16}, ls[1].Aux[1].Sum)

	// Empty clusters yield prior-only statistics.
	assert.Equal(t, 0, ls[2].Prim.Count())
	assert.Equal(t, 0, ls[2].Aux[0].Count())
}

func TestCollectStats_LabelOutOfRange(t *testing.T) {
	l, err := New(column(1, 2), []int{0, 3}, []int{0, 0})
	require.NoError(t, err)

	_, err = CollectStats[testutil.SumStats](l, testutil.NewUnitFamily(1), 2)
	assert.ErrorIs(t, err, ErrLabelOutOfRange)
}

func TestResetClusters(t *testing.T) {
	n := 200
	labels := make([]int, n)
	aux := make([]int, n)
	for i := range labels {
		labels[i] = i % 3
	}
	l, err := New(testutil.NewRNG(1).GaussianMatrix(n, 1), labels, aux)
	require.NoError(t, err)

	l.ResetClusters([]int{1}, newRNG(12))

	var ones int
	for i, a := range l.LabelsAux() {
		if labels[i] != 1 {
			assert.Equal(t, 0, a, "point %d is not in a reset cluster", i)
			continue
		}
		ones += a
	}
	assert.Greater(t, ones, 0)
	assertLabelDomain(t, l, 3)
}

func TestRemoveClusters_Compaction(t *testing.T) {
	l, err := New(column(0, 1, 2, 3, 4), []int{0, 1, 2, 3, 4}, []int{0, 0, 0, 0, 0})
	require.NoError(t, err)

	// Points of the removed clusters must be reassigned first.
	l.labels[2] = 0
	l.labels[3] = 1

	require.NoError(t, l.RemoveClusters([]int{2, 3}))
	assert.Equal(t, []int{0, 1, 0, 1, 2}, l.Labels())
}

func TestRemoveClusters_Sequential(t *testing.T) {
	l, err := New(column(0, 1, 2, 3, 4, 5), []int{0, 2, 4, 5, 4, 0}, make([]int, 6))
	require.NoError(t, err)

	require.NoError(t, l.RemoveClusters([]int{1, 3}))
	assert.Equal(t, []int{0, 1, 2, 3, 2, 0}, l.Labels())
}

func TestRemoveClusters_Preconditions(t *testing.T) {
	l, err := New(column(0, 1, 2), []int{0, 1, 2}, make([]int, 3))
	require.NoError(t, err)

	err = l.RemoveClusters([]int{1})
	assert.ErrorIs(t, err, ErrClusterOccupied)

	err = l.RemoveClusters([]int{3, 3})
	assert.ErrorIs(t, err, ErrUnsortedIndices)

	err = l.RemoveClusters([]int{4, 3})
	assert.ErrorIs(t, err, ErrUnsortedIndices)

	assert.Equal(t, []int{0, 1, 2}, l.Labels(), "labels untouched on error")
	assert.NoError(t, l.RemoveClusters(nil))
}

func TestApplySplits(t *testing.T) {
	l, err := New(column(0, 1, 2, 3, 4), []int{0, 0, 1, 1, 0}, []int{0, 1, 1, 0, 1})
	require.NoError(t, err)

	l.ApplySplits([]Split{{Cluster: 0, Into: 2}})
	assert.Equal(t, []int{0, 2, 1, 1, 2}, l.Labels())
}

func TestApplyMerges(t *testing.T) {
	l, err := New(column(0, 1, 2, 3, 4), []int{0, 1, 2, 1, 0}, []int{1, 0, 1, 1, 0})
	require.NoError(t, err)

	require.NoError(t, l.ApplyMerges([]Merge{{Into: 0, From: 2}}))
	assert.Equal(t, []int{0, 1, 0, 1, 0}, l.Labels())
	assert.Equal(t, []int{0, 0, 1, 1, 0}, l.LabelsAux())

	require.NoError(t, l.RemoveClusters([]int{2}))
	assert.Equal(t, []int{0, 1, 0, 1, 0}, l.Labels())
}

func TestApplyMerges_Invalid(t *testing.T) {
	l, err := New(column(0, 1), []int{0, 1}, []int{0, 0})
	require.NoError(t, err)

	assert.Error(t, l.ApplyMerges([]Merge{{Into: 1, From: 1}}))
	assert.Error(t, l.ApplyMerges([]Merge{{Into: 0, From: 1}, {Into: 1, From: 2}}))
	assert.Equal(t, []int{0, 1}, l.Labels())
}
