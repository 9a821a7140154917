// Package instrument wraps any storage backend with transparent
// per-operation profiling. The wrapper delegates every call unchanged and
// records exactly one sample per completed read or write, keyed by
// operation kind. Profiling failures never propagate to storage callers:
// a backend wrapped with a failed profiler behaves identically to the bare
// backend.
package instrument
