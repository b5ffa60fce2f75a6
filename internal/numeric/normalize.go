package numeric

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// RowNormalizeLogWeights subtracts the maximum of every row and
// exponentiates in place. Each row ends up proportional to its softmax with
// a maximum entry of 1.
func RowNormalizeLogWeights(m *mat.Dense) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		maxVal := floats.Max(row)
		for j, v := range row {
			row[j] = math.Exp(v - maxVal)
		}
	}
}

// ColNormalizeLogWeights is the column-wise counterpart of
// RowNormalizeLogWeights.
func ColNormalizeLogWeights(m *mat.Dense) {
	r, c := m.Dims()
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, m)
		maxVal := floats.Max(col)
		for i, v := range col {
			m.Set(i, j, math.Exp(v-maxVal))
		}
	}
}

// Argmax returns the index of the first maximum of v.
// NaN entries never win; a row of only -Inf or NaN yields 0.
func Argmax(v []float64) int {
	maxVal := -math.MaxFloat64
	maxIdx := 0
	for i, x := range v {
		if x > maxVal {
			maxVal = x
			maxIdx = i
		}
	}
	return maxIdx
}
