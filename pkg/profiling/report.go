package profiling

import (
	"time"

	"github.com/objprof/objprof/pkg/errors"
)

// ReportTiming records the wall-clock window a Report covers.
type ReportTiming struct {
	Start time.Time
	End   time.Time
}

// Report is an immutable snapshot of one Sampler's contents together with
// its sample type declarations and timing window. Reports are safe to
// share across goroutines.
type Report struct {
	sampleTypes []SampleType
	samples     []Sample
	timing      ReportTiming
}

// SampleTypes returns the declared value schema of the report.
func (r *Report) SampleTypes() []SampleType {
	out := make([]SampleType, len(r.sampleTypes))
	copy(out, r.sampleTypes)
	return out
}

// Samples returns the report's samples. The returned slice must not be
// mutated; sample stacks and values are shared with the report.
func (r *Report) Samples() []Sample {
	return r.samples
}

// Timing returns the wall-clock window the report covers.
func (r *Report) Timing() ReportTiming {
	return r.timing
}

// ReportBuilder assembles a Report from a Sampler. Building validates the
// sampler state and value cardinality up front, so a Report, once
// constructed, always serializes cleanly.
type ReportBuilder struct {
	sampler     *Sampler
	sampleTypes []SampleType
	timing      ReportTiming
}

// NewReportBuilder prepares a builder for the given sampler and value
// schema. A zero timing window defaults to [sampler start, build time].
func NewReportBuilder(sampler *Sampler, sampleTypes []SampleType, timing ReportTiming) *ReportBuilder {
	return &ReportBuilder{
		sampler:     sampler,
		sampleTypes: sampleTypes,
		timing:      timing,
	}
}

// Build snapshots the sampler into an immutable Report. It fails when the
// sampler is nil or failed, when no sample types are declared, or when any
// sample's value count does not match the declared schema.
func (b *ReportBuilder) Build() (*Report, error) {
	if b.sampler == nil {
		return nil, errors.New(errors.ErrCodeReportBuild, "no sampler to build report from")
	}
	if err := b.sampler.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeReportBuild, "sampler is in failed state").WithCause(err)
	}
	if len(b.sampleTypes) == 0 {
		return nil, errors.New(errors.ErrCodeReportBuild, "report requires at least one sample type")
	}

	samples := b.sampler.Snapshot()
	for i, s := range samples {
		if len(s.Values) != len(b.sampleTypes) {
			return nil, errors.Newf(errors.ErrCodeReportBuild,
				"sample %d has %d values, schema declares %d", i, len(s.Values), len(b.sampleTypes))
		}
	}

	timing := b.timing
	if timing.Start.IsZero() {
		timing.Start = b.sampler.StartedAt()
	}
	if timing.End.IsZero() {
		timing.End = time.Now()
	}

	types := make([]SampleType, len(b.sampleTypes))
	copy(types, b.sampleTypes)

	return &Report{
		sampleTypes: types,
		samples:     samples,
		timing:      timing,
	}, nil
}
