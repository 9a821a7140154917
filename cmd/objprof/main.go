// Command objprof runs an object-storage workload with transparent
// per-operation profiling and exports pprof profiles of the storage
// traffic.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/objprof/objprof/internal/config"
	"github.com/objprof/objprof/internal/metrics"
	"github.com/objprof/objprof/internal/storage/instrument"
	"github.com/objprof/objprof/internal/storage/memory"
	"github.com/objprof/objprof/internal/storage/s3"
	"github.com/objprof/objprof/internal/workload"
	"github.com/objprof/objprof/pkg/profiling"
	"github.com/objprof/objprof/pkg/types"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "objprof",
		Short:         "Profile object storage traffic of a vector indexing workload",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(newRunCommand(), newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the objprof version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "objprof %s\n", version)
		},
	}
}

func newRunCommand() *cobra.Command {
	var (
		configPath string
		storageURI string
		outputDir  string
		latency    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the workload and export storage profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if storageURI != "" {
				cfg.Storage.URI = storageURI
			}
			if outputDir != "" {
				cfg.Profiling.OutputDir = outputDir
			}
			if latency {
				cfg.Profiling.LatencySampling = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "f", "", "Path to YAML configuration file")
	cmd.Flags().StringVar(&storageURI, "storage", "", "Storage backend URI (mem:// or s3://<bucket>)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for exported profiles")
	cmd.Flags().BoolVar(&latency, "latency", false, "Record per-operation latency in the profiles")
	return cmd
}

func loadConfig(path string) (*config.Configuration, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadFromFile(path)
}

func run(ctx context.Context, cfg *config.Configuration) error {
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return err
	}

	var collector *metrics.Collector
	wrapperOpts := []instrument.WrapperOption{
		instrument.WithMaxStackDepth(cfg.Profiling.MaxStackDepth),
	}
	if cfg.Profiling.LatencySampling {
		wrapperOpts = append(wrapperOpts, instrument.WithLatencySampling())
	}
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
		wrapperOpts = append(wrapperOpts, instrument.WithMetrics(collector))
	}

	store := backend
	var wrapper *instrument.Wrapper
	if cfg.Profiling.Enabled {
		wrapper = instrument.NewWrapper(wrapperOpts...)
		store = wrapper.Wrap(backend)
	}

	if _, err := workload.GenerateDataset(ctx, store, workload.Params{
		Rows:        cfg.Workload.Rows,
		Dims:        cfg.Workload.Dims,
		BatchSize:   cfg.Workload.BatchSize,
		Concurrency: cfg.Workload.Concurrency,
		Seed:        cfg.Workload.Seed,
		Prefix:      cfg.Workload.DatasetPrefix,
	}, logger); err != nil {
		return err
	}

	if _, err := workload.BuildIndex(ctx, store, workload.IndexParams{
		NList:         cfg.Workload.NList,
		Iterations:    cfg.Workload.Iterations,
		Seed:          cfg.Workload.Seed,
		DatasetPrefix: cfg.Workload.DatasetPrefix,
		IndexPrefix:   cfg.Workload.IndexPrefix,
	}, logger); err != nil {
		return err
	}

	if wrapper != nil {
		if err := exportProfiles(wrapper, cfg.Profiling, logger); err != nil {
			return err
		}
	}
	if collector != nil {
		collector.LogSummary(logger)
	}
	return nil
}

func newBackend(ctx context.Context, cfg *config.Configuration) (types.Backend, error) {
	scheme, rest, err := config.ParseStorageURI(cfg.Storage.URI)
	if err != nil {
		return nil, err
	}
	switch scheme {
	case config.SchemeMemory:
		return memory.NewBackend(), nil
	default:
		s3cfg := cfg.Storage.S3
		if s3cfg.Bucket == "" {
			s3cfg.Bucket = rest
		}
		return s3.NewBackend(ctx, &s3cfg)
	}
}

func exportProfiles(wrapper *instrument.Wrapper, cfg config.ProfilingConfig, logger *slog.Logger) error {
	reports, err := wrapper.BuildReports()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return err
	}

	filenames := map[string]string{
		instrument.OpGet: cfg.GetProfile,
		instrument.OpPut: cfg.PutProfile,
	}
	for op, report := range reports {
		name := filenames[op]
		if name == "" {
			name = profiling.ProfileFilename(op)
		}
		path := filepath.Join(cfg.OutputDir, name)
		if err := report.WriteFile(path); err != nil {
			return err
		}
		logger.Info("profile written", "operation", op, "samples", len(report.Samples()), "path", path)
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
