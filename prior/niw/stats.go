package niw

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Stats are the Gaussian sufficient statistics of a set of rows: the row
// count, the sum of rows and the sum of outer products x·xᵀ.
type Stats struct {
	N     int
	Sum   []float64
	Outer *mat.SymDense
}

// newStats returns empty statistics of the given dimension.
func newStats(dim int) Stats {
	return Stats{
		Sum:   make([]float64, dim),
		Outer: mat.NewSymDense(dim, nil),
	}
}

// Add implements stats.SuffStats.
func (s Stats) Add(other Stats) Stats {
	dim := len(s.Sum)
	out := Stats{
		N:     s.N + other.N,
		Sum:   make([]float64, dim),
		Outer: mat.NewSymDense(dim, nil),
	}
	floats.AddTo(out.Sum, s.Sum, other.Sum)
	out.Outer.AddSym(s.Outer, other.Outer)
	return out
}

// Count implements stats.SuffStats.
func (s Stats) Count() int { return s.N }

// Mean returns the sample mean, or nil for empty statistics.
func (s Stats) Mean() []float64 {
	if s.N == 0 {
		return nil
	}
	mean := make([]float64, len(s.Sum))
	copy(mean, s.Sum)
	floats.Scale(1/float64(s.N), mean)
	return mean
}
