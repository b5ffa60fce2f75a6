package testutil

import (
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed uint64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed uint64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewPCG(seed, 0)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = rand.New(rand.NewPCG(r.seed, 0))
}

// Seed returns the initial seed.
func (r *RNG) Seed() uint64 {
	return r.seed
}

// IntN returns a non-negative pseudo-random number in [0,n).
func (r *RNG) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.IntN(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// GaussianMatrix returns an n×dim matrix of standard normal entries.
func (r *RNG) GaussianMatrix(n, dim int) *mat.Dense {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float64, n*dim)
	for i := range data {
		data[i] = r.rand.NormFloat64()
	}
	return mat.NewDense(n, dim, data)
}

// GaussianBlobs generates perCenter points around every center with
// isotropic noise of the given spread. Points are interleaved across
// centers so contiguous shards see every blob. It returns the data and the
// index of the generating center for every row.
func (r *RNG) GaussianBlobs(centers [][]float64, perCenter int, spread float64) (*mat.Dense, []int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dim := len(centers[0])
	n := perCenter * len(centers)
	data := make([]float64, n*dim)
	truth := make([]int, n)

	for i := range n {
		c := i % len(centers)
		truth[i] = c
		row := data[i*dim : (i+1)*dim]
		for j := range row {
			row[j] = centers[c][j] + r.rand.NormFloat64()*spread
		}
	}
	return mat.NewDense(n, dim, data), truth
}
