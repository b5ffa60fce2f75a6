package testutil

import (
	"math"
	"math/rand/v2"

	"github.com/hupe1980/dpmm/stats"
)

// SumStats counts rows and sums them.
type SumStats struct {
	N   int
	Sum []float64
}

// Add implements stats.SuffStats.
func (s SumStats) Add(other SumStats) SumStats {
	out := SumStats{N: s.N + other.N, Sum: make([]float64, len(s.Sum))}
	for i := range out.Sum {
		out.Sum[i] = s.Sum[i] + other.Sum[i]
	}
	return out
}

// Count implements stats.SuffStats.
func (s SumStats) Count() int { return s.N }

// UnitFamily is a deterministic stand-in for a prior family: densities are
// unit-variance isotropic Gaussians centered at the sample mean (or the
// origin for empty statistics).
type UnitFamily struct {
	dim int
}

var _ stats.Family[SumStats] = UnitFamily{}

// NewUnitFamily returns a UnitFamily of the given dimension.
func NewUnitFamily(dim int) UnitFamily { return UnitFamily{dim: dim} }

// Dim implements stats.Family.
func (f UnitFamily) Dim() int { return f.dim }

// FromData implements stats.Family.
func (f UnitFamily) FromData(rows [][]float64) SumStats {
	s := SumStats{N: len(rows), Sum: make([]float64, f.dim)}
	for _, row := range rows {
		for j, v := range row {
			s.Sum[j] += v
		}
	}
	return s
}

// SampleDensity implements stats.Family. It ignores src.
func (f UnitFamily) SampleDensity(s SumStats, _ rand.Source) (stats.Density, error) {
	mean := make([]float64, f.dim)
	if s.N > 0 {
		for j := range mean {
			mean[j] = s.Sum[j] / float64(s.N)
		}
	}
	return UnitGaussian{Mean: mean}, nil
}

// LogMarginal implements stats.Family with a crude penalty per point.
func (f UnitFamily) LogMarginal(s SumStats) float64 {
	return -float64(s.N)
}

// UnitGaussian is an isotropic Gaussian with unit variance.
type UnitGaussian struct {
	Mean []float64
}

// LogProb implements stats.Density.
func (g UnitGaussian) LogProb(x []float64) float64 {
	var d2 float64
	for j, v := range x {
		diff := v - g.Mean[j]
		d2 += diff * diff
	}
	return -0.5*d2 - float64(len(x))/2*math.Log(2*math.Pi)
}
