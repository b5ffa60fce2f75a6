package numeric

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func logDense(r, c int, vals []float64) *mat.Dense {
	logs := make([]float64, len(vals))
	for i, v := range vals {
		logs[i] = math.Log(v)
	}
	return mat.NewDense(r, c, logs)
}

func TestRowNormalizeLogWeights(t *testing.T) {
	m := logDense(3, 3, []float64{
		1, 2, 4,
		1, 2, 4,
		1, 2, 4,
	})
	RowNormalizeLogWeights(m)

	want := mat.NewDense(3, 3, []float64{
		0.25, 0.5, 1,
		0.25, 0.5, 1,
		0.25, 0.5, 1,
	})
	assert.True(t, mat.EqualApprox(m, want, 1e-9))
}

func TestColNormalizeLogWeights(t *testing.T) {
	m := logDense(3, 3, []float64{
		1, 2, 4,
		1, 2, 4,
		1, 2, 4,
	})
	ColNormalizeLogWeights(m)

	ones := mat.NewDense(3, 3, []float64{1, 1, 1, 1, 1, 1, 1, 1, 1})
	assert.True(t, mat.EqualApprox(m, ones, 1e-9))
}

func TestRowNormalizeLogWeights_ExtremeValues(t *testing.T) {
	m := mat.NewDense(4, 3, []float64{
		-1e300, 700, 0,
		700, 699, -1e300,
		-1e300, -1e300 + 1, -1e299,
		-745, -746, -800,
	})
	RowNormalizeLogWeights(m)

	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		maxVal := floats.Max(row)
		require.Greater(t, maxVal, 0.0)
		for _, v := range row {
			scaled := v / maxVal
			assert.False(t, math.IsNaN(scaled) || math.IsInf(scaled, 0), "row %d: %v", i, row)
			assert.GreaterOrEqual(t, scaled, 0.0)
			assert.LessOrEqual(t, scaled, 1.0)
		}
	}
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, 2, Argmax([]float64{1, 3, 5, 2}))
	assert.Equal(t, 1, Argmax([]float64{1, 5, 5, 2}), "ties resolve to the first maximum")
	assert.Equal(t, 0, Argmax([]float64{math.Inf(-1), math.Inf(-1)}))
	assert.Equal(t, 1, Argmax([]float64{math.NaN(), 0}))
}

func TestSampleWeighted(t *testing.T) {
	src := rand.NewPCG(1, 2)
	w := mat.NewDense(1, 3, []float64{0, 1, 0})
	labels := make([]int, 1)

	for i := 0; i < 1000; i++ {
		require.NoError(t, SampleWeighted(w, labels, src))
		assert.Equal(t, 1, labels[0])
	}
}

func TestSampleWeighted_Frequencies(t *testing.T) {
	src := rand.NewPCG(7, 11)
	w := mat.NewDense(1, 2, []float64{1, 3})
	labels := make([]int, 1)

	var ones int
	const n = 20000
	for i := 0; i < n; i++ {
		require.NoError(t, SampleWeighted(w, labels, src))
		ones += labels[0]
	}
	assert.InDelta(t, 0.75, float64(ones)/n, 0.02)
}

func TestSampleWeighted_InvalidRows(t *testing.T) {
	src := rand.NewPCG(1, 2)

	tests := []struct {
		name string
		row  []float64
	}{
		{"zero", []float64{0, 0, 0}},
		{"negative", []float64{1, -1, 0}},
		{"nan", []float64{math.NaN(), 1, 0}},
		{"inf", []float64{math.Inf(1), 1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := mat.NewDense(2, 3, append([]float64{1, 1, 1}, tt.row...))
			labels := []int{9, 9}

			err := SampleWeighted(w, labels, src)
			require.ErrorIs(t, err, ErrInvalidWeights)

			var rowErr *WeightRowError
			require.ErrorAs(t, err, &rowErr)
			assert.Equal(t, 1, rowErr.Row)
			assert.Equal(t, []int{9, 9}, labels, "labels must not be written on failure")
		})
	}
}

func TestSampleWeighted_LengthMismatch(t *testing.T) {
	w := mat.NewDense(2, 2, []float64{1, 1, 1, 1})
	err := SampleWeighted(w, make([]int, 3), rand.NewPCG(1, 1))
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestSampleIndex(t *testing.T) {
	idx, err := SampleIndex([]float64{0, 0, 2}, rand.NewPCG(3, 3))
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	_, err = SampleIndex([]float64{0, 0}, rand.NewPCG(3, 3))
	assert.ErrorIs(t, err, ErrInvalidWeights)
}

func TestUniqueWithIndices(t *testing.T) {
	data := []int{1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 1}
	unique, idx := UniqueWithIndices(data, false)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, unique)
	assert.Equal(t, []int{0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 0}, idx)
}

func TestUniqueWithIndices_Sorted(t *testing.T) {
	data := []int{7, 3, 7, 1}
	unique, idx := UniqueWithIndices(data, true)
	assert.Equal(t, []int{1, 3, 7}, unique)
	assert.Equal(t, []int{2, 1, 2, 0}, idx)

	unique, idx = UniqueWithIndices([]int{}, true)
	assert.Empty(t, unique)
	assert.Empty(t, idx)
}

func TestBincount(t *testing.T) {
	counts := Bincount([]int{1, 1, 2, 2, 3, 3, 4, 4, 5, 5})
	assert.Equal(t, map[int]int{1: 2, 2: 2, 3: 2, 4: 2, 5: 2}, counts)
}
