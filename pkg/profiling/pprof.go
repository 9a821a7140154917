package profiling

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/pprof/profile"

	"github.com/objprof/objprof/pkg/errors"
)

// syntheticFilename marks frames that carry no real source position, such
// as the operation-name frame the instrumented store prepends.
const syntheticFilename = "<synthetic>"

// Profile converts the report into the pprof interchange representation.
// Functions and locations are deduplicated in first-seen order with IDs
// assigned from 1, so equal reports produce byte-identical profiles.
func (r *Report) Profile() (*profile.Profile, error) {
	p := &profile.Profile{
		TimeNanos:     r.timing.Start.UnixNano(),
		DurationNanos: r.timing.End.Sub(r.timing.Start).Nanoseconds(),
		PeriodType:    &profile.ValueType{Type: "event", Unit: "count"},
		Period:        1,
	}
	for _, st := range r.sampleTypes {
		p.SampleType = append(p.SampleType, &profile.ValueType{
			Type: st.Name,
			Unit: st.Unit,
		})
	}

	functions := make(map[Frame]*profile.Function)
	locations := make(map[Frame]*profile.Location)

	getFunction := func(fr Frame) *profile.Function {
		key := Frame{Function: fr.Function, File: fr.File}
		if fn, ok := functions[key]; ok {
			return fn
		}
		filename := fr.File
		if filename == "" {
			filename = syntheticFilename
		}
		fn := &profile.Function{
			ID:         uint64(len(p.Function) + 1),
			Name:       fr.Function,
			SystemName: fr.Function,
			Filename:   filename,
		}
		p.Function = append(p.Function, fn)
		functions[key] = fn
		return fn
	}

	getLocation := func(fr Frame) *profile.Location {
		if loc, ok := locations[fr]; ok {
			return loc
		}
		loc := &profile.Location{
			ID: uint64(len(p.Location) + 1),
			Line: []profile.Line{
				{Function: getFunction(fr), Line: fr.Line},
			},
		}
		p.Location = append(p.Location, loc)
		locations[fr] = loc
		return loc
	}

	for _, s := range r.samples {
		sample := &profile.Sample{
			Value: make([]int64, len(s.Values)),
		}
		copy(sample.Value, s.Values)
		for _, fr := range s.Stack {
			sample.Location = append(sample.Location, getLocation(fr))
		}
		p.Sample = append(p.Sample, sample)
	}

	if err := p.CheckValid(); err != nil {
		return nil, errors.New(errors.ErrCodeSerialization, "generated profile is invalid").WithCause(err)
	}
	return p, nil
}

// WriteTo serializes the report as a gzip-compressed pprof profile.
func (r *Report) WriteTo(w io.Writer) error {
	p, err := r.Profile()
	if err != nil {
		return err
	}
	if err := p.Write(w); err != nil {
		return errors.New(errors.ErrCodeSerialization, "failed to write profile").WithCause(err)
	}
	return nil
}

// WriteFile atomically writes the report to path as a gzip-compressed
// pprof profile. The profile is staged in a temporary file in the target
// directory and renamed into place, so a failed export never leaves a
// truncated profile behind.
func (r *Report) WriteFile(path string) error {
	p, err := r.Profile()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Newf(errors.ErrCodeSerialization, "failed to create temp file in %s", dir).WithCause(err)
	}
	tmpName := tmp.Name()

	if err := p.Write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.New(errors.ErrCodeSerialization, "failed to write profile").WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.New(errors.ErrCodeSerialization, "failed to close profile file").WithCause(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Newf(errors.ErrCodeSerialization, "failed to rename profile to %s", path).WithCause(err)
	}
	return nil
}

// ProfileFilename returns the conventional profile filename for an
// operation kind, e.g. "get_profile.pb" for "object_store_get".
func ProfileFilename(op string) string {
	const prefix = "object_store_"
	short := op
	if len(op) > len(prefix) && op[:len(prefix)] == prefix {
		short = op[len(prefix):]
	}
	return fmt.Sprintf("%s_profile.pb", short)
}
