// Package profiling implements the sampling core of objprof: a
// concurrent-safe Sampler that accumulates per-operation samples, a
// ReportBuilder that freezes a Sampler's contents into an immutable Report,
// and a pprof exporter that serializes Reports into the standard profile
// interchange format consumed by profiling viewers.
//
// There is no process-wide registry: every Sampler is owned explicitly by
// whoever constructed it, which keeps lifecycle and test isolation explicit.
package profiling
