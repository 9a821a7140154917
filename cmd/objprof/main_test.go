package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/pprof/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objprof/objprof/internal/config"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "objprof")
}

func TestNewBackendMemory(t *testing.T) {
	cfg := config.DefaultConfig()

	backend, err := newBackend(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, backend)
	assert.NoError(t, backend.HealthCheck(context.Background()))
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Workload.Rows = 200
	cfg.Workload.Dims = 8
	cfg.Workload.BatchSize = 50
	cfg.Workload.NList = 4
	cfg.Workload.Iterations = 2
	cfg.Profiling.OutputDir = dir
	cfg.Profiling.LatencySampling = true
	cfg.LogLevel = "error"

	require.NoError(t, run(context.Background(), cfg))

	for _, name := range []string{"get_profile.pb", "put_profile.pb"} {
		f, err := filepath.Glob(filepath.Join(dir, name))
		require.NoError(t, err)
		require.Len(t, f, 1, "expected %s", name)

		p, err := parseProfile(t, f[0])
		require.NoError(t, err)
		assert.NotEmpty(t, p.Sample)
		require.Len(t, p.SampleType, 2)
		assert.Equal(t, "nanoseconds", p.SampleType[1].Unit)
	}
}

func parseProfile(t *testing.T, path string) (*profile.Profile, error) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return profile.Parse(f)
}

func TestNewLoggerLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		logger := newLogger(level)
		require.NotNil(t, logger)
	}
	assert.True(t, newLogger("debug").Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, newLogger("error").Enabled(context.Background(), slog.LevelInfo))
}
