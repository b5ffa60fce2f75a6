package numeric

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrInvalidWeights is returned when a weight row cannot define a
	// categorical distribution.
	ErrInvalidWeights = errors.New("invalid weight row")

	// ErrLengthMismatch is returned when the destination does not match the
	// number of weight rows.
	ErrLengthMismatch = errors.New("destination length mismatch")
)

// WeightRowError reports the first offending row of a weight matrix.
type WeightRowError struct {
	Row    int
	Reason string
}

func (e *WeightRowError) Error() string {
	return fmt.Sprintf("weight row %d: %s", e.Row, e.Reason)
}

func (e *WeightRowError) Unwrap() error { return ErrInvalidWeights }

// ValidateWeightRow checks that w is non-negative, finite and has a
// positive sum.
func ValidateWeightRow(w []float64) error {
	var sum float64
	for _, x := range w {
		switch {
		case math.IsNaN(x) || math.IsInf(x, 0):
			return errors.New("non-finite weight")
		case x < 0:
			return errors.New("negative weight")
		}
		sum += x
	}
	if sum <= 0 || math.IsInf(sum, 0) {
		return errors.New("weights sum to zero")
	}
	return nil
}

// SampleWeighted draws one categorical sample per row of w and stores it in
// dst. Rows need not be normalized. dst is left untouched if any row is
// invalid.
func SampleWeighted(w mat.Matrix, dst []int, src rand.Source) error {
	r, c := w.Dims()
	if len(dst) != r {
		return fmt.Errorf("%w: %d rows, %d labels", ErrLengthMismatch, r, len(dst))
	}

	rows := make([][]float64, r)
	for i := 0; i < r; i++ {
		rows[i] = mat.Row(nil, i, w)
		if err := ValidateWeightRow(rows[i]); err != nil {
			return &WeightRowError{Row: i, Reason: err.Error()}
		}
	}

	out := make([]int, r)
	for i, row := range rows {
		out[i] = sampleRow(row, c, src)
	}
	copy(dst, out)
	return nil
}

// SampleIndex draws a single index from an unnormalized weight vector.
func SampleIndex(w []float64, src rand.Source) (int, error) {
	if err := ValidateWeightRow(w); err != nil {
		return 0, &WeightRowError{Row: 0, Reason: err.Error()}
	}
	return sampleRow(w, len(w), src), nil
}

func sampleRow(row []float64, n int, src rand.Source) int {
	cat := distuv.NewCategorical(row, src)
	idx := int(cat.Rand())
	if idx >= n {
		// Guard against float rounding at the upper edge.
		idx = n - 1
	}
	return idx
}
