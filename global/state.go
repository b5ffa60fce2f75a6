// Package global holds the per-sweep cluster parameters shared by all data
// shards.
//
// A State is rebuilt from aggregated stats.LocalStats once per sweep and is
// read-only while shards sample labels against it. It is therefore safe
// for concurrent reads.
package global

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/hupe1980/dpmm/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distmv"
)

var (
	// ErrInvalidState is returned when a State violates its shape invariants.
	ErrInvalidState = errors.New("invalid global state")

	// ErrEmptyCluster is returned when a data cluster without points is
	// passed to FromStats.
	ErrEmptyCluster = errors.New("empty cluster")
)

// Cluster holds the parameters of one mixture component.
type Cluster struct {
	// Prim is the density of the cluster itself.
	Prim stats.Density
	// Weights are the mixture weights of the two sub-clusters.
	Weights [2]float64
	// Aux are the densities of the two sub-clusters.
	Aux [2]stats.Density
}

// State is the mixture over all clusters.
type State struct {
	Weights  []float64
	Clusters []Cluster
}

// NClusters returns the number of clusters.
func (s *State) NClusters() int { return len(s.Clusters) }

// Validate checks the invariants the label samplers rely on.
func (s *State) Validate() error {
	if len(s.Clusters) == 0 {
		return fmt.Errorf("%w: no clusters", ErrInvalidState)
	}
	if len(s.Clusters) != len(s.Weights) {
		return fmt.Errorf("%w: %d clusters, %d weights", ErrInvalidState, len(s.Clusters), len(s.Weights))
	}
	if !validWeights(s.Weights) {
		return fmt.Errorf("%w: mixture weights %v", ErrInvalidState, s.Weights)
	}
	for k, c := range s.Clusters {
		if c.Prim == nil || c.Aux[0] == nil || c.Aux[1] == nil {
			return fmt.Errorf("%w: cluster %d has a nil density", ErrInvalidState, k)
		}
		if !validWeights(c.Weights[:]) {
			return fmt.Errorf("%w: cluster %d aux weights %v", ErrInvalidState, k, c.Weights)
		}
	}
	return nil
}

func validWeights(w []float64) bool {
	var sum float64
	for _, x := range w {
		if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
		sum += x
	}
	return sum > 0
}

// Outlier configures a fixed-weight outlier component at cluster index 0.
type Outlier[S stats.SuffStats[S]] struct {
	Weight float64
	Family stats.Family[S]
}

// FromStats draws a new State from the aggregated statistics.
//
// Mixture weights follow (π₁..π_K, π̃) ~ Dir(N₁..N_K, α); π̃ is discarded
// and the rest are rescaled to the mass not taken by the outlier. Aux
// weights follow Dir(N_L+α/2, N_R+α/2). With an outlier, ls[0] belongs to
// the outlier component and may be empty; every other cluster must hold at
// least one point.
func FromStats[S stats.SuffStats[S]](
	fam stats.Family[S],
	outlier *Outlier[S],
	alpha float64,
	ls stats.LocalStats[S],
	src rand.Source,
) (*State, error) {
	offset := 0
	if outlier != nil {
		offset = 1
	}
	if len(ls) <= offset {
		return nil, fmt.Errorf("%w: no data clusters", ErrInvalidState)
	}

	dirParams := make([]float64, 0, len(ls)-offset+1)
	for k := offset; k < len(ls); k++ {
		n := ls[k].Prim.Count()
		if n == 0 {
			return nil, fmt.Errorf("%w: cluster %d", ErrEmptyCluster, k)
		}
		dirParams = append(dirParams, float64(n))
	}
	dirParams = append(dirParams, alpha)

	draw := distmv.NewDirichlet(dirParams, src).Rand(nil)
	draw = draw[:len(draw)-1]

	mass := 1.0
	if outlier != nil {
		mass -= outlier.Weight
	}
	if sum := floats.Sum(draw); sum > 0 {
		floats.Scale(mass/sum, draw)
	} else {
		// Every draw underflowed; fall back to the expected proportions.
		copy(draw, dirParams[:len(draw)])
		floats.Scale(mass/floats.Sum(draw), draw)
	}

	s := &State{
		Weights:  make([]float64, len(ls)),
		Clusters: make([]Cluster, len(ls)),
	}
	if outlier != nil {
		s.Weights[0] = outlier.Weight
	}
	copy(s.Weights[offset:], draw)

	for k, cs := range ls {
		f := fam
		if k < offset {
			f = outlier.Family
		}
		c, err := clusterFromStats(f, alpha, cs, src)
		if err != nil {
			return nil, fmt.Errorf("cluster %d: %w", k, err)
		}
		s.Clusters[k] = c
	}
	return s, nil
}

func clusterFromStats[S stats.SuffStats[S]](fam stats.Family[S], alpha float64, cs stats.ClusterStats[S], src rand.Source) (Cluster, error) {
	var c Cluster

	prim, err := fam.SampleDensity(cs.Prim, src)
	if err != nil {
		return c, err
	}
	c.Prim = prim

	for a := 0; a < 2; a++ {
		aux, err := fam.SampleDensity(cs.Aux[a], src)
		if err != nil {
			return c, err
		}
		c.Aux[a] = aux
	}

	w := distmv.NewDirichlet([]float64{
		float64(cs.Aux[0].Count()) + alpha/2,
		float64(cs.Aux[1].Count()) + alpha/2,
	}, src).Rand(nil)
	c.Weights = [2]float64{w[0], w[1]}
	if !validWeights(c.Weights[:]) {
		c.Weights = [2]float64{0.5, 0.5}
	}
	return c, nil
}
