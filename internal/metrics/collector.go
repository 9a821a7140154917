// Package metrics collects per-operation storage metrics: Prometheus
// counters and histograms for scraping, plus HDR histograms for accurate
// latency percentiles in the end-of-run summary.
package metrics

import (
	"log/slog"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/objprof/objprof/pkg/types"
)

// Latency histogram bounds: 1µs to 60s at 3 significant figures.
const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
	sigFigs      = 3
)

// OperationStats summarizes one operation kind at the end of a run.
type OperationStats struct {
	Operation string        `json:"operation"`
	Count     int64         `json:"count"`
	Errors    int64         `json:"errors"`
	Bytes     int64         `json:"bytes"`
	P50       time.Duration `json:"p50"`
	P95       time.Duration `json:"p95"`
	P99       time.Duration `json:"p99"`
	Max       time.Duration `json:"max"`
}

type opState struct {
	count   int64
	errors  int64
	bytes   int64
	latency *hdrhistogram.Histogram
}

// Collector implements types.MetricsCollector. It is safe for concurrent
// use.
type Collector struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTotal        *prometheus.CounterVec

	mu  sync.Mutex
	ops map[string]*opState
}

var _ types.MetricsCollector = (*Collector)(nil)

// NewCollector creates a Collector with its own private registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "objprof",
				Name:      "storage_operations_total",
				Help:      "Total storage operations by operation kind and status.",
			},
			[]string{"operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "objprof",
				Name:      "storage_operation_duration_seconds",
				Help:      "Storage operation latency distribution.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
			},
			[]string{"operation"},
		),
		bytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "objprof",
				Name:      "storage_bytes_total",
				Help:      "Total bytes transferred by operation kind.",
			},
			[]string{"operation"},
		),
		ops: make(map[string]*opState),
	}

	c.registry.MustRegister(c.operationsTotal, c.operationDuration, c.bytesTotal)
	return c
}

// Registry exposes the collector's private registry for scraping.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordOperation records one completed storage operation.
func (c *Collector) RecordOperation(operation string, duration time.Duration, size int64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	c.operationsTotal.WithLabelValues(operation, status).Inc()
	c.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if size > 0 {
		c.bytesTotal.WithLabelValues(operation).Add(float64(size))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.ops[operation]
	if !ok {
		state = &opState{
			latency: hdrhistogram.New(minLatencyUs, maxLatencyUs, sigFigs),
		}
		c.ops[operation] = state
	}
	state.count++
	if !success {
		state.errors++
	}
	if size > 0 {
		state.bytes += size
	}
	us := duration.Microseconds()
	if us < minLatencyUs {
		us = minLatencyUs
	}
	if us > maxLatencyUs {
		us = maxLatencyUs
	}
	// RecordValue only fails for out-of-range values, which are clamped.
	_ = state.latency.RecordValue(us)
}

// Stats returns a summary per operation kind observed so far.
func (c *Collector) Stats() map[string]OperationStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]OperationStats, len(c.ops))
	for op, state := range c.ops {
		out[op] = OperationStats{
			Operation: op,
			Count:     state.count,
			Errors:    state.errors,
			Bytes:     state.bytes,
			P50:       time.Duration(state.latency.ValueAtQuantile(50)) * time.Microsecond,
			P95:       time.Duration(state.latency.ValueAtQuantile(95)) * time.Microsecond,
			P99:       time.Duration(state.latency.ValueAtQuantile(99)) * time.Microsecond,
			Max:       time.Duration(state.latency.Max()) * time.Microsecond,
		}
	}
	return out
}

// LogSummary writes one structured log line per operation kind.
func (c *Collector) LogSummary(logger *slog.Logger) {
	for op, stats := range c.Stats() {
		logger.Info("operation summary",
			"operation", op,
			"count", stats.Count,
			"errors", stats.Errors,
			"bytes", stats.Bytes,
			"p50", stats.P50,
			"p95", stats.P95,
			"p99", stats.P99,
			"max", stats.Max,
		)
	}
}
