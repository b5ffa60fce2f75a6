// Package niw implements the Normal-Inverse-Wishart prior family for
// Gaussian mixture components.
//
// Cluster parameters (μ, Σ) follow
//
//	Σ ~ IW(Ψ, ν),  μ | Σ ~ N(m, Σ/κ)
//
// and the family satisfies stats.Family[Stats]: it summarizes rows into
// Stats, draws Gaussian densities from the conjugate posterior and
// evaluates the closed-form marginal likelihood used by split/merge moves.
package niw

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/hupe1980/dpmm/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrInvalidHyperParams is returned for inconsistent hyperparameters.
	ErrInvalidHyperParams = errors.New("invalid NIW hyperparameters")

	// ErrNotPositiveDefinite is returned when a scale matrix cannot be
	// factorized.
	ErrNotPositiveDefinite = errors.New("matrix is not positive definite")
)

// HyperParams are the NIW hyperparameters.
type HyperParams struct {
	Kappa float64
	Nu    float64
	Mu    []float64
	Psi   *mat.SymDense
}

// DefaultHyperParams returns a weakly informative prior: zero mean,
// identity scale, κ=1 and ν=dim+3.
func DefaultHyperParams(dim int) HyperParams {
	psi := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		psi.SetSym(i, i, 1)
	}
	return HyperParams{
		Kappa: 1,
		Nu:    float64(dim + 3),
		Mu:    make([]float64, dim),
		Psi:   psi,
	}
}

// Dim returns the dimensionality of the hyperparameters.
func (hp HyperParams) Dim() int { return len(hp.Mu) }

// Validate checks shapes and positivity constraints.
func (hp HyperParams) Validate() error {
	dim := hp.Dim()
	if dim == 0 {
		return fmt.Errorf("%w: zero dimension", ErrInvalidHyperParams)
	}
	if hp.Psi == nil {
		return fmt.Errorf("%w: missing scale matrix", ErrInvalidHyperParams)
	}
	if r, _ := hp.Psi.Dims(); r != dim {
		return fmt.Errorf("%w: scale matrix is %dx%d, mean has %d entries", ErrInvalidHyperParams, r, r, dim)
	}
	if hp.Kappa <= 0 {
		return fmt.Errorf("%w: kappa must be positive", ErrInvalidHyperParams)
	}
	if hp.Nu <= float64(dim-1) {
		return fmt.Errorf("%w: nu must exceed dim-1", ErrInvalidHyperParams)
	}
	return nil
}

// Family is a Normal-Inverse-Wishart prior. It is immutable and safe for
// concurrent use.
type Family struct {
	prior     HyperParams
	logDetPsi float64
}

var _ stats.Family[Stats] = (*Family)(nil)

// New creates a Family from validated hyperparameters.
func New(hp HyperParams) (*Family, error) {
	if err := hp.Validate(); err != nil {
		return nil, err
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(hp.Psi); !ok {
		return nil, fmt.Errorf("%w: prior scale", ErrNotPositiveDefinite)
	}
	return &Family{prior: hp, logDetPsi: chol.LogDet()}, nil
}

// Prior returns the prior hyperparameters.
func (f *Family) Prior() HyperParams { return f.prior }

// Dim implements stats.Family.
func (f *Family) Dim() int { return f.prior.Dim() }

// FromData implements stats.Family.
func (f *Family) FromData(rows [][]float64) Stats {
	dim := f.Dim()
	s := newStats(dim)
	for _, row := range rows {
		floats.Add(s.Sum, row)
		s.Outer.SymRankOne(s.Outer, 1, mat.NewVecDense(dim, row))
	}
	s.N = len(rows)
	return s
}

// Posterior returns the conjugate update of the prior with s.
func (f *Family) Posterior(s Stats) HyperParams {
	p := f.prior
	dim := p.Dim()
	n := float64(s.N)

	kappa := p.Kappa + n
	nu := p.Nu + n

	mu := make([]float64, dim)
	floats.AddScaled(mu, p.Kappa, p.Mu)
	floats.Add(mu, s.Sum)
	floats.Scale(1/kappa, mu)

	psi := mat.NewSymDense(dim, nil)
	psi.AddSym(p.Psi, s.Outer)
	psi.SymRankOne(psi, p.Kappa, mat.NewVecDense(dim, p.Mu))
	psi.SymRankOne(psi, -kappa, mat.NewVecDense(dim, mu))

	return HyperParams{Kappa: kappa, Nu: nu, Mu: mu, Psi: psi}
}

// LogMarginal implements stats.Family. It returns -Inf when the posterior
// scale degenerates.
func (f *Family) LogMarginal(s Stats) float64 {
	post := f.Posterior(s)
	var chol mat.Cholesky
	if ok := chol.Factorize(post.Psi); !ok {
		return math.Inf(-1)
	}

	p := f.prior
	dim := float64(p.Dim())
	n := float64(s.N)

	return -n*dim/2*math.Log(math.Pi) +
		logMvGamma(p.Dim(), post.Nu/2) - logMvGamma(p.Dim(), p.Nu/2) +
		p.Nu/2*f.logDetPsi - post.Nu/2*chol.LogDet() +
		dim/2*(math.Log(p.Kappa)-math.Log(post.Kappa))
}

// SampleDensity implements stats.Family. It draws (μ, Σ) from the posterior
// and returns the corresponding multivariate normal.
func (f *Family) SampleDensity(s Stats, src rand.Source) (stats.Density, error) {
	post := f.Posterior(s)

	sigma, err := sampleInvWishart(post.Psi, post.Nu, src)
	if err != nil {
		return nil, err
	}

	cov := mat.NewSymDense(post.Dim(), nil)
	cov.ScaleSym(1/post.Kappa, sigma)
	meanDist, ok := distmv.NewNormal(post.Mu, cov, src)
	if !ok {
		return nil, fmt.Errorf("%w: mean covariance", ErrNotPositiveDefinite)
	}
	mu := meanDist.Rand(nil)

	normal, ok := distmv.NewNormal(mu, sigma, src)
	if !ok {
		return nil, fmt.Errorf("%w: sampled covariance", ErrNotPositiveDefinite)
	}
	return normal, nil
}

// sampleInvWishart draws Σ ~ IW(psi, nu) as the inverse of a
// Wishart(psi⁻¹, nu) draw built with the Bartlett decomposition.
func sampleInvWishart(psi *mat.SymDense, nu float64, src rand.Source) (*mat.SymDense, error) {
	dim, _ := psi.Dims()

	var psiChol mat.Cholesky
	if ok := psiChol.Factorize(psi); !ok {
		return nil, fmt.Errorf("%w: posterior scale", ErrNotPositiveDefinite)
	}
	psiInv := mat.NewSymDense(dim, nil)
	if err := psiChol.InverseTo(psiInv); err != nil {
		return nil, err
	}

	var invChol mat.Cholesky
	if ok := invChol.Factorize(psiInv); !ok {
		return nil, fmt.Errorf("%w: inverse scale", ErrNotPositiveDefinite)
	}
	var l mat.TriDense
	invChol.LTo(&l)

	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	a := mat.NewDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		chi := distuv.ChiSquared{K: nu - float64(i), Src: src}
		a.Set(i, i, math.Sqrt(chi.Rand()))
		for j := 0; j < i; j++ {
			a.Set(i, j, normal.Rand())
		}
	}

	var la mat.Dense
	la.Mul(&l, a)

	w := mat.NewSymDense(dim, nil)
	w.SymOuterK(1, &la)

	var wChol mat.Cholesky
	if ok := wChol.Factorize(w); !ok {
		return nil, fmt.Errorf("%w: wishart draw", ErrNotPositiveDefinite)
	}
	sigma := mat.NewSymDense(dim, nil)
	if err := wChol.InverseTo(sigma); err != nil {
		return nil, err
	}
	return sigma, nil
}

// logMvGamma is the log of the multivariate gamma function Γ_d(a).
func logMvGamma(d int, a float64) float64 {
	res := float64(d*(d-1)) / 4 * math.Log(math.Pi)
	for j := 1; j <= d; j++ {
		lg, _ := math.Lgamma(a + float64(1-j)/2)
		res += lg
	}
	return res
}
