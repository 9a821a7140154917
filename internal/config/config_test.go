package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objprof/objprof/pkg/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "mem://", cfg.Storage.URI)
	assert.True(t, cfg.Profiling.Enabled)
	assert.Equal(t, 20000, cfg.Workload.Rows)
	assert.Equal(t, 1536, cfg.Workload.Dims)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromFile(t *testing.T) {
	content := `
storage:
  uri: s3://profiles
  s3:
    region: us-west-2
    endpoint: http://localhost:9000
    force_path_style: true
profiling:
  enabled: true
  latency_sampling: true
  output_dir: /tmp/profiles
workload:
  rows: 1000
  dims: 8
log_level: debug
`
	path := filepath.Join(t.TempDir(), "objprof.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "s3://profiles", cfg.Storage.URI)
	assert.Equal(t, "us-west-2", cfg.Storage.S3.Region)
	assert.True(t, cfg.Storage.S3.ForcePathStyle)
	assert.True(t, cfg.Profiling.LatencySampling)
	assert.Equal(t, "/tmp/profiles", cfg.Profiling.OutputDir)
	assert.Equal(t, 1000, cfg.Workload.Rows)
	assert.Equal(t, 8, cfg.Workload.Dims)
	// Defaults survive partial overrides.
	assert.Equal(t, 1000, cfg.Workload.BatchSize)
	assert.Equal(t, int64(42), cfg.Workload.Seed)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/objprof.yaml")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfigLoad))
}

func TestLoadFromFileUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objprof.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bogus_field: true\n"), 0o644))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfigLoad))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Configuration)
	}{
		{"bad uri", func(c *Configuration) { c.Storage.URI = "local-path" }},
		{"unknown scheme", func(c *Configuration) { c.Storage.URI = "gs://bucket" }},
		{"s3 without bucket", func(c *Configuration) { c.Storage.URI = "s3://" }},
		{"zero rows", func(c *Configuration) { c.Workload.Rows = 0 }},
		{"zero dims", func(c *Configuration) { c.Workload.Dims = 0 }},
		{"zero batch size", func(c *Configuration) { c.Workload.BatchSize = 0 }},
		{"nlist above rows", func(c *Configuration) { c.Workload.NList = c.Workload.Rows + 1 }},
		{"zero concurrency", func(c *Configuration) { c.Workload.Concurrency = 0 }},
		{"negative stack depth", func(c *Configuration) { c.Profiling.MaxStackDepth = -1 }},
		{"bad log level", func(c *Configuration) { c.LogLevel = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfig))
		})
	}
}

func TestValidateS3BucketFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.URI = "s3://"
	cfg.Storage.S3.Bucket = "profiles"
	assert.NoError(t, cfg.Validate())
}

func TestParseStorageURI(t *testing.T) {
	scheme, rest, err := ParseStorageURI("s3://my-bucket")
	require.NoError(t, err)
	assert.Equal(t, SchemeS3, scheme)
	assert.Equal(t, "my-bucket", rest)

	scheme, rest, err = ParseStorageURI("mem://")
	require.NoError(t, err)
	assert.Equal(t, SchemeMemory, scheme)
	assert.Empty(t, rest)
}
