// Package config loads sampler runs from files and the environment.
//
// Files may be TOML, YAML or JSON (chosen by extension). Every key can be
// overridden with an environment variable prefixed DPMM_, with dots
// replaced by underscores, e.g. DPMM_FIT_ITERS=200.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hupe1980/dpmm"
	"github.com/hupe1980/dpmm/checkpoint"
	"github.com/hupe1980/dpmm/codec"
	"github.com/hupe1980/dpmm/prior/niw"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "DPMM"

// Config is the top-level run configuration.
type Config struct {
	Model      ModelConfig      `mapstructure:"model"`
	Fit        FitConfig        `mapstructure:"fit"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
}

// ModelConfig describes the Gaussian mixture model.
type ModelConfig struct {
	Alpha         float64 `mapstructure:"alpha"          validate:"gt=0"`
	BurnoutPeriod int     `mapstructure:"burnout_period" validate:"gte=0"`
	// OutlierWeight is the fixed weight of the outlier component; 0 disables it.
	OutlierWeight  float64 `mapstructure:"outlier_weight"  validate:"gte=0,lt=1"`
	HardAssignment bool    `mapstructure:"hard_assignment"`
}

// FitConfig controls the sampler run.
type FitConfig struct {
	Seed         uint64 `mapstructure:"seed"`
	InitClusters int    `mapstructure:"init_clusters" validate:"gte=1"`
	// MaxClusters bounds the number of data clusters; 0 means unbounded.
	MaxClusters      int `mapstructure:"max_clusters"       validate:"gte=0"`
	Iters            int `mapstructure:"iters"              validate:"gte=1"`
	ArgmaxSampleStop int `mapstructure:"argmax_sample_stop" validate:"gte=0"`
	IterSplitStop    int `mapstructure:"iter_split_stop"    validate:"gte=0"`
	Shards           int `mapstructure:"shards"             validate:"gte=1"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// MetricsConfig enables the Prometheus endpoint of the CLI.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"    validate:"required_if=Enabled true"`
}

// CheckpointConfig configures chain checkpoints. An empty Backend disables
// checkpointing.
type CheckpointConfig struct {
	Backend     string `mapstructure:"backend"     validate:"omitempty,oneof=local s3 minio"`
	Every       int    `mapstructure:"every"       validate:"gte=1"`
	Resume      bool   `mapstructure:"resume"`
	Keep        int    `mapstructure:"keep"        validate:"gte=0"`
	Prefix      string `mapstructure:"prefix"`
	Codec       string `mapstructure:"codec"       validate:"oneof=json go-json"`
	Compression string `mapstructure:"compression" validate:"oneof=none lz4 zstd"`
	// RateLimit caps checkpoint IO in bytes per second; 0 means unlimited.
	RateLimit int64 `mapstructure:"rate_limit" validate:"gte=0"`

	Local LocalConfig `mapstructure:"local"`
	S3    S3Config    `mapstructure:"s3"`
	Minio MinioConfig `mapstructure:"minio"`
}

// LocalConfig is the local filesystem backend.
type LocalConfig struct {
	Dir string `mapstructure:"dir"`
}

// S3Config is the AWS S3 backend. With DynamoDBTable set, the CURRENT
// pointer is committed through DynamoDB.
type S3Config struct {
	Bucket        string `mapstructure:"bucket"`
	Prefix        string `mapstructure:"prefix"`
	Region        string `mapstructure:"region"`
	DynamoDBTable string `mapstructure:"dynamodb_table"`
}

// MinioConfig is the MinIO (or other S3-compatible) backend.
type MinioConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Default returns the default configuration. It matches
// dpmm.DefaultModelOptions and dpmm.DefaultFitOptions.
func Default() Config {
	fit := dpmm.DefaultFitOptions()
	return Config{
		Model: ModelConfig{
			Alpha:         10,
			BurnoutPeriod: 20,
			OutlierWeight: 0.05,
		},
		Fit: FitConfig{
			Seed:             fit.Seed,
			InitClusters:     fit.InitClusters,
			Iters:            fit.Iters,
			ArgmaxSampleStop: fit.ArgmaxSampleStop,
			IterSplitStop:    fit.IterSplitStop,
			Shards:           1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Checkpoint: CheckpointConfig{
			Every:       10,
			Codec:       codec.Default.Name(),
			Compression: "zstd",
		},
	}
}

func setDefaults(v *viper.Viper, d Config) {
	defaults := map[string]any{
		"model.alpha":                        d.Model.Alpha,
		"model.burnout_period":               d.Model.BurnoutPeriod,
		"model.outlier_weight":               d.Model.OutlierWeight,
		"model.hard_assignment":              d.Model.HardAssignment,
		"fit.seed":                           d.Fit.Seed,
		"fit.init_clusters":                  d.Fit.InitClusters,
		"fit.max_clusters":                   d.Fit.MaxClusters,
		"fit.iters":                          d.Fit.Iters,
		"fit.argmax_sample_stop":             d.Fit.ArgmaxSampleStop,
		"fit.iter_split_stop":                d.Fit.IterSplitStop,
		"fit.shards":                         d.Fit.Shards,
		"log.level":                          d.Log.Level,
		"log.format":                         d.Log.Format,
		"metrics.enabled":                    d.Metrics.Enabled,
		"metrics.addr":                       d.Metrics.Addr,
		"checkpoint.backend":                 d.Checkpoint.Backend,
		"checkpoint.every":                   d.Checkpoint.Every,
		"checkpoint.resume":                  d.Checkpoint.Resume,
		"checkpoint.keep":                    d.Checkpoint.Keep,
		"checkpoint.prefix":                  d.Checkpoint.Prefix,
		"checkpoint.codec":                   d.Checkpoint.Codec,
		"checkpoint.compression":             d.Checkpoint.Compression,
		"checkpoint.rate_limit":              d.Checkpoint.RateLimit,
		"checkpoint.local.dir":               d.Checkpoint.Local.Dir,
		"checkpoint.s3.bucket":               d.Checkpoint.S3.Bucket,
		"checkpoint.s3.prefix":               d.Checkpoint.S3.Prefix,
		"checkpoint.s3.region":               d.Checkpoint.S3.Region,
		"checkpoint.s3.dynamodb_table":       d.Checkpoint.S3.DynamoDBTable,
		"checkpoint.minio.endpoint":          d.Checkpoint.Minio.Endpoint,
		"checkpoint.minio.access_key_id":     d.Checkpoint.Minio.AccessKeyID,
		"checkpoint.minio.secret_access_key": d.Checkpoint.Minio.SecretAccessKey,
		"checkpoint.minio.bucket":            d.Checkpoint.Minio.Bucket,
		"checkpoint.minio.prefix":            d.Checkpoint.Minio.Prefix,
		"checkpoint.minio.use_ssl":           d.Checkpoint.Minio.UseSSL,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// Load reads the configuration file at path (if path is not empty),
// applies DPMM_ environment overrides and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

var validate = validator.New()

// Validate checks field constraints and that the selected checkpoint
// backend is fully configured.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Fit.MaxClusters != 0 && c.Fit.MaxClusters < c.Fit.InitClusters {
		return fmt.Errorf("config: fit.max_clusters %d below fit.init_clusters %d", c.Fit.MaxClusters, c.Fit.InitClusters)
	}

	cp := c.Checkpoint
	var missing []string
	switch cp.Backend {
	case "local":
		if cp.Local.Dir == "" {
			missing = append(missing, "checkpoint.local.dir")
		}
	case "s3":
		if cp.S3.Bucket == "" {
			missing = append(missing, "checkpoint.s3.bucket")
		}
	case "minio":
		if cp.Minio.Endpoint == "" {
			missing = append(missing, "checkpoint.minio.endpoint")
		}
		if cp.Minio.Bucket == "" {
			missing = append(missing, "checkpoint.minio.bucket")
		}
	case "":
		if cp.Resume {
			return errors.New("config: checkpoint.resume requires checkpoint.backend")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: %s backend requires %s", cp.Backend, strings.Join(missing, ", "))
	}
	return nil
}

// FitOptions converts the fit section.
func (c *Config) FitOptions() dpmm.FitOptions {
	maxClusters := c.Fit.MaxClusters
	if maxClusters == 0 {
		maxClusters = math.MaxInt
	}
	return dpmm.FitOptions{
		Seed:             c.Fit.Seed,
		InitClusters:     c.Fit.InitClusters,
		MaxClusters:      maxClusters,
		Iters:            c.Fit.Iters,
		ArgmaxSampleStop: c.Fit.ArgmaxSampleStop,
		IterSplitStop:    c.Fit.IterSplitStop,
	}
}

// GaussianModel builds a Gaussian mixture with the default NIW prior.
func (c *Config) GaussianModel(dim int) (dpmm.ModelOptions[niw.Stats], error) {
	if dim < 1 {
		return dpmm.ModelOptions[niw.Stats]{}, fmt.Errorf("config: dimension %d", dim)
	}
	fam, err := niw.New(niw.DefaultHyperParams(dim))
	if err != nil {
		return dpmm.ModelOptions[niw.Stats]{}, err
	}
	m := dpmm.DefaultModelOptions[niw.Stats](fam)
	m.Alpha = c.Model.Alpha
	m.BurnoutPeriod = c.Model.BurnoutPeriod
	m.HardAssignment = c.Model.HardAssignment
	if c.Model.OutlierWeight == 0 {
		m.Outlier = nil
	} else {
		m.Outlier.Weight = c.Model.OutlierWeight
	}
	return m, nil
}

// Logger builds the configured logger.
func (c *Config) Logger() (*dpmm.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return nil, fmt.Errorf("config: log.level: %w", err)
	}
	if c.Log.Format == "json" {
		return dpmm.NewJSONLogger(level), nil
	}
	return dpmm.NewTextLogger(level), nil
}

// Options converts the configuration into sampler options. cp is the
// checkpointer of the configured backend; pass nil to run without
// checkpoints.
func (c *Config) Options(cp dpmm.Checkpointer) ([]dpmm.Option, error) {
	logger, err := c.Logger()
	if err != nil {
		return nil, err
	}
	opts := []dpmm.Option{
		dpmm.WithFitOptions(c.FitOptions()),
		dpmm.WithNumShards(c.Fit.Shards),
		dpmm.WithLogger(logger),
	}
	if cp != nil {
		opts = append(opts, dpmm.WithCheckpointer(cp), dpmm.WithCheckpointEvery(c.Checkpoint.Every))
		if c.Checkpoint.Resume {
			opts = append(opts, dpmm.WithResume())
		}
	}
	return opts, nil
}

// StoreOptions converts the checkpoint section into checkpoint.Store options.
func (cp CheckpointConfig) StoreOptions() ([]checkpoint.Option, error) {
	cd, ok := codec.ByName(cp.Codec)
	if !ok {
		return nil, fmt.Errorf("config: unknown codec %q", cp.Codec)
	}
	comp, err := checkpoint.ParseCompression(cp.Compression)
	if err != nil {
		return nil, err
	}
	return []checkpoint.Option{
		checkpoint.WithCodec(cd),
		checkpoint.WithCompression(comp),
		checkpoint.WithRateLimit(cp.RateLimit),
		checkpoint.WithPrefix(cp.Prefix),
	}, nil
}
