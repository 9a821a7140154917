package instrument

import (
	"log/slog"

	"github.com/objprof/objprof/pkg/profiling"
	"github.com/objprof/objprof/pkg/types"
)

// Operation kinds recorded by the instrumented store. The names double as
// pprof sample type names.
const (
	OpGet = "object_store_get"
	OpPut = "object_store_put"
)

// SampleTypes returns the value schema for an operation kind. With latency
// sampling enabled every sample carries [count, nanoseconds], otherwise
// just [count].
func SampleTypes(op string, latency bool) []profiling.SampleType {
	types := []profiling.SampleType{{Name: op, Unit: profiling.UnitCount}}
	if latency {
		types = append(types, profiling.SampleType{Name: "latency", Unit: profiling.UnitNanoseconds})
	}
	return types
}

// Wrapper owns one profiler per operation kind and installs them onto
// backends. Multiple backends wrapped by the same Wrapper share profilers,
// so their samples aggregate into one report per operation kind.
type Wrapper struct {
	readProfiler  *profiling.Sampler
	writeProfiler *profiling.Sampler
	latency       bool
	maxStackDepth int
	metrics       types.MetricsCollector
	logger        *slog.Logger
}

// WrapperOption configures a Wrapper at construction time.
type WrapperOption func(*Wrapper)

// WithLatencySampling adds a latency value to every recorded sample.
func WithLatencySampling() WrapperOption {
	return func(w *Wrapper) {
		w.latency = true
	}
}

// WithMetrics routes per-operation observations to a metrics collector in
// addition to the profilers.
func WithMetrics(m types.MetricsCollector) WrapperOption {
	return func(w *Wrapper) {
		w.metrics = m
	}
}

// WithLogger sets the logger used for profiler diagnostics.
func WithLogger(logger *slog.Logger) WrapperOption {
	return func(w *Wrapper) {
		w.logger = logger
	}
}

// WithMaxStackDepth bounds the frames captured per sample. Values below 1
// keep the default.
func WithMaxStackDepth(n int) WrapperOption {
	return func(w *Wrapper) {
		if n > 0 {
			w.maxStackDepth = n
		}
	}
}

// WithProfilers replaces the Wrapper's profilers. Used to inject failed or
// pre-populated samplers; nil arguments keep the constructed defaults.
func WithProfilers(read, write *profiling.Sampler) WrapperOption {
	return func(w *Wrapper) {
		if read != nil {
			w.readProfiler = read
		}
		if write != nil {
			w.writeProfiler = write
		}
	}
}

// NewWrapper creates a Wrapper with one profiler per operation kind.
// Profiler construction failure is absorbed: the affected profiler is
// replaced with a failed sampler, the error is logged, and wrapping
// proceeds so storage traffic is never blocked by profiling setup.
func NewWrapper(opts ...WrapperOption) *Wrapper {
	w := &Wrapper{
		maxStackDepth: 16,
		logger:        slog.Default().With("component", "instrument"),
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.readProfiler == nil {
		w.readProfiler = w.newSampler(OpGet)
	}
	if w.writeProfiler == nil {
		w.writeProfiler = w.newSampler(OpPut)
	}
	return w
}

func (w *Wrapper) newSampler(op string) *profiling.Sampler {
	s, err := profiling.NewSampler(profiling.WithMaxStackDepth(w.maxStackDepth))
	if err != nil {
		w.logger.Error("profiler initialization failed, operations will not be sampled",
			"operation", op, "error", err)
		return profiling.FailedSampler(err)
	}
	return s
}

// Wrap returns backend with profiling installed. The returned Backend is
// indistinguishable from the wrapped one except for sample recording.
func (w *Wrapper) Wrap(backend types.Backend) types.Backend {
	return &Store{
		backend: backend,
		wrapper: w,
	}
}

// ReadProfiler returns the profiler shared by all read operations.
func (w *Wrapper) ReadProfiler() *profiling.Sampler {
	return w.readProfiler
}

// WriteProfiler returns the profiler shared by all write operations.
func (w *Wrapper) WriteProfiler() *profiling.Sampler {
	return w.writeProfiler
}

// BuildReports snapshots both profilers into reports keyed by operation
// kind, covering the window [profiler start, now].
func (w *Wrapper) BuildReports() (map[string]*profiling.Report, error) {
	reports := make(map[string]*profiling.Report, 2)
	for op, sampler := range map[string]*profiling.Sampler{
		OpGet: w.readProfiler,
		OpPut: w.writeProfiler,
	} {
		report, err := profiling.NewReportBuilder(sampler, SampleTypes(op, w.latency), profiling.ReportTiming{}).Build()
		if err != nil {
			return nil, err
		}
		reports[op] = report
	}
	return reports, nil
}
