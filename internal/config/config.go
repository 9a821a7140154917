// Package config loads and validates the objprof YAML configuration.
package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/objprof/objprof/internal/storage/s3"
	"github.com/objprof/objprof/pkg/errors"
)

// Storage backend URI schemes.
const (
	SchemeMemory = "mem"
	SchemeS3     = "s3"
)

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	// URI selects the backend: "mem://" or "s3://<bucket>".
	URI string    `yaml:"uri"`
	S3  s3.Config `yaml:"s3"`
}

// ProfilingConfig controls sample recording and profile export.
type ProfilingConfig struct {
	Enabled         bool   `yaml:"enabled"`
	LatencySampling bool   `yaml:"latency_sampling"`
	MaxStackDepth   int    `yaml:"max_stack_depth"`
	OutputDir       string `yaml:"output_dir"`
	// GetProfile and PutProfile override the exported file names, relative
	// to OutputDir.
	GetProfile string `yaml:"get_profile"`
	PutProfile string `yaml:"put_profile"`
}

// WorkloadConfig parameterizes the vector dataset and index build workload.
type WorkloadConfig struct {
	Rows          int    `yaml:"rows"`
	Dims          int    `yaml:"dims"`
	BatchSize     int    `yaml:"batch_size"`
	NList         int    `yaml:"nlist"`
	Iterations    int    `yaml:"iterations"`
	Concurrency   int    `yaml:"concurrency"`
	Seed          int64  `yaml:"seed"`
	DatasetPrefix string `yaml:"dataset_prefix"`
	IndexPrefix   string `yaml:"index_prefix"`
}

// MetricsConfig controls the metrics collector.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Configuration is the root objprof configuration.
type Configuration struct {
	Storage   StorageConfig   `yaml:"storage"`
	Profiling ProfilingConfig `yaml:"profiling"`
	Workload  WorkloadConfig  `yaml:"workload"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	LogLevel  string          `yaml:"log_level"`
}

// DefaultConfig returns the configuration used when no file is given: an
// in-memory backend running the reference vector workload with profiling
// enabled.
func DefaultConfig() *Configuration {
	return &Configuration{
		Storage: StorageConfig{
			URI: "mem://",
			S3:  *s3.DefaultConfig(),
		},
		Profiling: ProfilingConfig{
			Enabled:       true,
			MaxStackDepth: 16,
			OutputDir:     ".",
			GetProfile:    "get_profile.pb",
			PutProfile:    "put_profile.pb",
		},
		Workload: WorkloadConfig{
			Rows:          20000,
			Dims:          1536,
			BatchSize:     1000,
			NList:         64,
			Iterations:    10,
			Concurrency:   8,
			Seed:          42,
			DatasetPrefix: "data/",
			IndexPrefix:   "index/",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		LogLevel: "info",
	}
}

// LoadFromFile reads a YAML configuration, layered over the defaults.
func LoadFromFile(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Newf(errors.ErrCodeConfigLoad, "failed to read config file %s", path).
			WithComponent("config").WithCause(err)
	}

	cfg := DefaultConfig()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, errors.Newf(errors.ErrCodeConfigLoad, "failed to parse config file %s", path).
			WithComponent("config").WithCause(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Configuration) Validate() error {
	scheme, rest, err := ParseStorageURI(c.Storage.URI)
	if err != nil {
		return err
	}
	if scheme == SchemeS3 {
		bucket := rest
		if c.Storage.S3.Bucket != "" {
			bucket = c.Storage.S3.Bucket
		}
		if bucket == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "s3 storage requires a bucket").
				WithComponent("config")
		}
	}

	if c.Profiling.MaxStackDepth < 0 {
		return errors.Newf(errors.ErrCodeInvalidConfig, "max_stack_depth must be non-negative, got %d", c.Profiling.MaxStackDepth).
			WithComponent("config")
	}

	w := c.Workload
	switch {
	case w.Rows <= 0:
		return errors.Newf(errors.ErrCodeInvalidConfig, "workload rows must be positive, got %d", w.Rows)
	case w.Dims <= 0:
		return errors.Newf(errors.ErrCodeInvalidConfig, "workload dims must be positive, got %d", w.Dims)
	case w.BatchSize <= 0:
		return errors.Newf(errors.ErrCodeInvalidConfig, "workload batch_size must be positive, got %d", w.BatchSize)
	case w.NList <= 0:
		return errors.Newf(errors.ErrCodeInvalidConfig, "workload nlist must be positive, got %d", w.NList)
	case w.NList > w.Rows:
		return errors.Newf(errors.ErrCodeInvalidConfig, "workload nlist %d exceeds rows %d", w.NList, w.Rows)
	case w.Concurrency <= 0:
		return errors.Newf(errors.ErrCodeInvalidConfig, "workload concurrency must be positive, got %d", w.Concurrency)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.Newf(errors.ErrCodeInvalidConfig, "unknown log level %q", c.LogLevel).
			WithComponent("config")
	}

	return nil
}

// ParseStorageURI splits a storage URI into scheme and remainder, e.g.
// "s3://my-bucket" yields ("s3", "my-bucket").
func ParseStorageURI(uri string) (scheme, rest string, err error) {
	idx := strings.Index(uri, "://")
	if idx < 0 {
		return "", "", errors.Newf(errors.ErrCodeInvalidConfig, "storage uri %q must be of the form scheme://...", uri).
			WithComponent("config")
	}
	scheme = uri[:idx]
	rest = uri[idx+3:]
	switch scheme {
	case SchemeMemory, SchemeS3:
		return scheme, rest, nil
	default:
		return "", "", errors.Newf(errors.ErrCodeInvalidConfig, "unsupported storage scheme %q", scheme).
			WithComponent("config")
	}
}
