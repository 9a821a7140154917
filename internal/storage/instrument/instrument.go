package instrument

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/objprof/objprof/pkg/profiling"
	"github.com/objprof/objprof/pkg/types"
)

// Store wraps a types.Backend and records one profiling sample per
// completed read or write. All other operations delegate untouched.
type Store struct {
	backend  types.Backend
	wrapper  *Wrapper
	skipOnce sync.Once
}

var _ types.Backend = (*Store)(nil)

// record logs one sample for a completed operation. The sample is recorded
// after the backend call returns, success or failure alike: a failed GET
// still hit the object store. Calls abandoned by context cancellation are
// not sampled.
func (s *Store) record(op string, sampler *profiling.Sampler, start time.Time, err error, size int64) {
	elapsed := time.Since(start)

	if s.wrapper.metrics != nil {
		s.wrapper.metrics.RecordOperation(op, elapsed, size, err == nil)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	if sampler.Err() != nil {
		s.skipOnce.Do(func() {
			s.wrapper.logger.Warn("profiler unavailable, samples are being dropped",
				"operation", op, "error", sampler.Err())
		})
		return
	}

	stack := []profiling.Frame{{Function: op}}
	if callers := profiling.Callers(2, s.wrapper.maxStackDepth-1); callers != nil {
		stack = append(stack, callers...)
	}

	values := []int64{1}
	if s.wrapper.latency {
		values = append(values, elapsed.Nanoseconds())
	}
	sampler.Record(stack, values)
}

// GetObject delegates to the backend and records one read sample.
func (s *Store) GetObject(ctx context.Context, key string, offset, size int64) ([]byte, error) {
	start := time.Now()
	data, err := s.backend.GetObject(ctx, key, offset, size)
	s.record(OpGet, s.wrapper.readProfiler, start, err, int64(len(data)))
	return data, err
}

// PutObject delegates to the backend and records one write sample.
func (s *Store) PutObject(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	err := s.backend.PutObject(ctx, key, data)
	s.record(OpPut, s.wrapper.writeProfiler, start, err, int64(len(data)))
	return err
}

// GetObjects delegates to the backend and records one read sample for the
// whole batch, regardless of batch size.
func (s *Store) GetObjects(ctx context.Context, keys []string) (map[string][]byte, error) {
	start := time.Now()
	result, err := s.backend.GetObjects(ctx, keys)
	var size int64
	for _, data := range result {
		size += int64(len(data))
	}
	s.record(OpGet, s.wrapper.readProfiler, start, err, size)
	return result, err
}

// PutObjects delegates to the backend and records one write sample for the
// whole batch.
func (s *Store) PutObjects(ctx context.Context, objects map[string][]byte) error {
	start := time.Now()
	err := s.backend.PutObjects(ctx, objects)
	var size int64
	for _, data := range objects {
		size += int64(len(data))
	}
	s.record(OpPut, s.wrapper.writeProfiler, start, err, size)
	return err
}

// DeleteObject delegates without recording; deletes are not a profiled
// operation kind.
func (s *Store) DeleteObject(ctx context.Context, key string) error {
	return s.backend.DeleteObject(ctx, key)
}

// HeadObject delegates without recording.
func (s *Store) HeadObject(ctx context.Context, key string) (*types.ObjectInfo, error) {
	return s.backend.HeadObject(ctx, key)
}

// ListObjects delegates without recording.
func (s *Store) ListObjects(ctx context.Context, prefix string, limit int) ([]types.ObjectInfo, error) {
	return s.backend.ListObjects(ctx, prefix, limit)
}

// HealthCheck delegates without recording.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.backend.HealthCheck(ctx)
}

// Unwrap returns the wrapped backend.
func (s *Store) Unwrap() types.Backend {
	return s.backend
}
