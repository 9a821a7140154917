package profiling

import (
	"runtime"
	"sync"
	"time"

	"github.com/objprof/objprof/pkg/errors"
)

// Sample type units understood by the pprof exporter.
const (
	UnitCount       = "count"
	UnitNanoseconds = "nanoseconds"
)

const defaultMaxStackDepth = 32

// Frame identifies one level of the call context that produced a sample.
// A Frame with only Function set is a synthetic frame, used when true
// call-stack capture is unavailable or undesired.
type Frame struct {
	Function string
	File     string
	Line     int64
}

// Sample is one recorded profiling event: the call context that produced it
// and one numeric measurement per declared sample type. Samples are
// immutable once recorded.
type Sample struct {
	Stack  []Frame
	Values []int64
}

// SampleType declares the name and unit of one value position in every
// Sample of a Report, e.g. ("object_store_get", "count").
type SampleType struct {
	Name string `yaml:"name"`
	Unit string `yaml:"unit"`
}

// Sampler accumulates Samples for a single operation kind. It is safe for
// concurrent use by any number of recording goroutines; the critical
// section is a single append and is never held across I/O.
//
// A Sampler has two lifecycle states: open (accepting recordings) and
// exported (a Report has been built from it). The transition is not
// enforced; recording concurrently with a report build is race-free and
// the sample lands in either that report or the next snapshot.
type Sampler struct {
	mu            sync.RWMutex
	samples       []Sample
	start         time.Time
	maxStackDepth int
	err           error
}

// Option configures a Sampler at construction time.
type Option func(*Sampler) error

// WithMaxStackDepth bounds the number of frames retained per sample.
func WithMaxStackDepth(n int) Option {
	return func(s *Sampler) error {
		if n <= 0 {
			return errors.Newf(errors.ErrCodeProfilerInit, "max stack depth must be positive, got %d", n)
		}
		s.maxStackDepth = n
		return nil
	}
}

// NewSampler creates an open Sampler. Construction failure is reported as
// a distinct error; callers must surface it rather than substituting an
// empty profiler.
func NewSampler(opts ...Option) (*Sampler, error) {
	s := &Sampler{
		start:         time.Now(),
		maxStackDepth: defaultMaxStackDepth,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// FailedSampler returns a Sampler permanently in the failed state: Record
// is a no-op and report building from it fails. Owners use this to keep a
// non-nil profiler handle after construction failed, so the instrumented
// path stays crash-free.
func FailedSampler(cause error) *Sampler {
	return &Sampler{
		start: time.Now(),
		err:   errors.New(errors.ErrCodeProfilerInit, "profiler failed to initialize").WithCause(cause),
	}
}

// Err returns the construction failure, if any. A failed Sampler records
// nothing.
func (s *Sampler) Err() error {
	return s.err
}

// StartedAt returns the Sampler's creation timestamp.
func (s *Sampler) StartedAt() time.Time {
	return s.start
}

// Record appends one Sample. The stack and values slices are copied, so
// callers may reuse their buffers. Recording on a failed Sampler is a
// silent no-op: profiling must never fail the operation being profiled.
func (s *Sampler) Record(stack []Frame, values []int64) {
	if s.err != nil {
		return
	}

	sample := Sample{
		Stack:  make([]Frame, len(stack)),
		Values: make([]int64, len(values)),
	}
	copy(sample.Stack, stack)
	copy(sample.Values, values)
	if s.maxStackDepth > 0 && len(sample.Stack) > s.maxStackDepth {
		sample.Stack = sample.Stack[:s.maxStackDepth]
	}

	s.mu.Lock()
	s.samples = append(s.samples, sample)
	s.mu.Unlock()
}

// Snapshot returns a consistent copy of all Samples recorded so far.
func (s *Sampler) Snapshot() []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Len returns the number of Samples recorded so far.
func (s *Sampler) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}

// Callers captures up to max frames of the current call stack, skipping
// skip frames (0 identifies the caller of Callers). It returns nil when no
// frames could be resolved, in which case recorders fall back to a
// synthetic frame.
func Callers(skip, max int) []Frame {
	if max <= 0 {
		max = defaultMaxStackDepth
	}
	pcs := make([]uintptr, max)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	out := make([]Frame, 0, n)
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			out = append(out, Frame{
				Function: frame.Function,
				File:     frame.File,
				Line:     int64(frame.Line),
			})
		}
		if !more {
			break
		}
	}
	return out
}
