package dpmm

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/hupe1980/dpmm/stats"
)

var validate = validator.New()

// OutlierRemoval configures a fixed-weight outlier component.
type OutlierRemoval[S stats.SuffStats[S]] struct {
	// Weight is the fixed mixture weight of the outlier component.
	Weight float64 `validate:"gt=0,lt=1"`
	// DataDist is the prior family of the outlier component.
	DataDist stats.Family[S] `validate:"required"`
}

// ModelOptions describes the mixture model.
type ModelOptions[S stats.SuffStats[S]] struct {
	// DataDist is the prior family of the data clusters.
	DataDist stats.Family[S] `validate:"required"`
	// Alpha is the Dirichlet process concentration.
	Alpha float64 `validate:"gt=0"`
	// Dim is the data dimension.
	Dim int `validate:"gt=0"`
	// BurnoutPeriod is the number of sweeps a cluster must live before it
	// takes part in split or merge proposals.
	BurnoutPeriod int `validate:"gte=0"`
	// Outlier enables the outlier component at cluster index 0.
	Outlier *OutlierRemoval[S] `validate:"-"`
	// HardAssignment makes every sweep use arg-max label assignment.
	HardAssignment bool
}

// DefaultModelOptions returns the default model for a prior family:
// alpha 10, burnout 20 and an outlier component of weight 0.05 that shares
// the data family.
func DefaultModelOptions[S stats.SuffStats[S]](fam stats.Family[S]) ModelOptions[S] {
	return ModelOptions[S]{
		DataDist:      fam,
		Alpha:         10,
		Dim:           fam.Dim(),
		BurnoutPeriod: 20,
		Outlier: &OutlierRemoval[S]{
			Weight:   0.05,
			DataDist: fam,
		},
	}
}

// Validate checks the model options.
func (m ModelOptions[S]) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if d := m.DataDist.Dim(); d != m.Dim {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, &ErrDimensionMismatch{Expected: m.Dim, Actual: d})
	}
	if m.Outlier != nil {
		if err := validate.Struct(m.Outlier); err != nil {
			return fmt.Errorf("%w: outlier: %w", ErrInvalidOptions, err)
		}
		if d := m.Outlier.DataDist.Dim(); d != m.Dim {
			return fmt.Errorf("%w: outlier: %w", ErrInvalidOptions, &ErrDimensionMismatch{Expected: m.Dim, Actual: d})
		}
	}
	return nil
}

// FitOptions controls the sampler run.
type FitOptions struct {
	// Seed seeds every random stream of the run.
	Seed uint64
	// InitClusters is the number of data clusters points are spread over
	// initially.
	InitClusters int `validate:"gte=1"`
	// MaxClusters bounds the number of data clusters splits may create.
	MaxClusters int `validate:"gtefield=InitClusters"`
	// Iters is the number of Gibbs sweeps.
	Iters int `validate:"gte=1"`
	// ArgmaxSampleStop is the number of trailing sweeps that use arg-max
	// label assignment.
	ArgmaxSampleStop int `validate:"gte=0"`
	// IterSplitStop is the number of trailing sweeps without split or merge
	// proposals.
	IterSplitStop int `validate:"gte=0"`
}

// DefaultFitOptions returns seed 42, one initial cluster, no cluster limit,
// 100 sweeps and 5 trailing sweeps each for arg-max assignment and
// split/merge freeze.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		Seed:             42,
		InitClusters:     1,
		MaxClusters:      math.MaxInt,
		Iters:            100,
		ArgmaxSampleStop: 5,
		IterSplitStop:    5,
	}
}

// Validate checks the fit options.
func (f FitOptions) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return nil
}

type options struct {
	fit              FitOptions
	numShards        int
	metricsCollector MetricsCollector
	logger           *Logger
	checkpointer     Checkpointer
	checkpointEvery  int
	resume           bool
}

// Option configures a Model.
type Option func(*options)

// WithFitOptions replaces the fit options. Options applied afterwards,
// such as WithSeed, still take effect.
func WithFitOptions(f FitOptions) Option {
	return func(o *options) {
		o.fit = f
	}
}

// WithSeed sets the seed of the run.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.fit.Seed = seed
	}
}

// WithIters sets the number of Gibbs sweeps.
func WithIters(iters int) Option {
	return func(o *options) {
		o.fit.Iters = iters
	}
}

// WithNumShards configures the number of data shards sampled in parallel.
//
// Rows are split into contiguous shards, each with its own random stream.
// Results depend on the shard count, so a run is reproducible for a given
// seed and shard count. Shards beyond the number of points are dropped.
//
// If numShards <= 1, sharding is disabled.
func WithNumShards(numShards int) Option {
	return func(o *options) {
		o.numShards = max(numShards, 1)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring sweeps.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &dpmm.BasicMetricsCollector{}
//	m, _ := dpmm.NewGaussian(2, dpmm.WithMetricsCollector(metrics))
//	// ... fit ...
//	stats := metrics.GetStats()
//	fmt.Printf("Sweeps: %d, Avg latency: %dns\n", stats.SweepCount, stats.SweepAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for the run.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := dpmm.NewJSONLogger(slog.LevelInfo)
//	m, _ := dpmm.NewGaussian(2, dpmm.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithCheckpointer saves the chain every WithCheckpointEvery sweeps
// (default 10) to c.
func WithCheckpointer(c Checkpointer) Option {
	return func(o *options) {
		o.checkpointer = c
	}
}

// WithCheckpointEvery sets the checkpoint interval in sweeps.
func WithCheckpointEvery(sweeps int) Option {
	return func(o *options) {
		o.checkpointEvery = sweeps
	}
}

// WithResume continues the chain from the checkpointer's latest
// checkpoint if there is one.
func WithResume() Option {
	return func(o *options) {
		o.resume = true
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		fit:              DefaultFitOptions(),
		numShards:        1,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		checkpointEvery:  10,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
