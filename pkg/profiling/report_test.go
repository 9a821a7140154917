package profiling

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objprof/objprof/pkg/errors"
)

func TestReportBuilderBuild(t *testing.T) {
	s, err := NewSampler()
	require.NoError(t, err)

	s.Record([]Frame{{Function: "object_store_get"}}, []int64{1})
	s.Record([]Frame{{Function: "object_store_get"}}, []int64{1})

	start := time.Now().Add(-time.Minute)
	end := time.Now()
	types := []SampleType{{Name: "object_store_get", Unit: UnitCount}}

	report, err := NewReportBuilder(s, types, ReportTiming{Start: start, End: end}).Build()
	require.NoError(t, err)

	assert.Equal(t, types, report.SampleTypes())
	assert.Len(t, report.Samples(), 2)
	assert.Equal(t, start, report.Timing().Start)
	assert.Equal(t, end, report.Timing().End)
}

func TestReportBuilderDefaultTiming(t *testing.T) {
	s, err := NewSampler()
	require.NoError(t, err)

	report, err := NewReportBuilder(s, []SampleType{{Name: "op", Unit: UnitCount}}, ReportTiming{}).Build()
	require.NoError(t, err)

	assert.Equal(t, s.StartedAt(), report.Timing().Start)
	assert.False(t, report.Timing().End.IsZero())
	assert.False(t, report.Timing().End.Before(report.Timing().Start))
}

func TestReportBuilderNilSampler(t *testing.T) {
	_, err := NewReportBuilder(nil, []SampleType{{Name: "op", Unit: UnitCount}}, ReportTiming{}).Build()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeReportBuild))
}

func TestReportBuilderFailedSampler(t *testing.T) {
	s := FailedSampler(fmt.Errorf("init failed"))

	_, err := NewReportBuilder(s, []SampleType{{Name: "op", Unit: UnitCount}}, ReportTiming{}).Build()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeReportBuild))
}

func TestReportBuilderNoSampleTypes(t *testing.T) {
	s, err := NewSampler()
	require.NoError(t, err)

	_, err = NewReportBuilder(s, nil, ReportTiming{}).Build()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeReportBuild))
}

func TestReportBuilderCardinalityMismatch(t *testing.T) {
	s, err := NewSampler()
	require.NoError(t, err)

	// Schema declares two values per sample; the sample carries one.
	s.Record([]Frame{{Function: "op"}}, []int64{1})
	types := []SampleType{
		{Name: "op", Unit: UnitCount},
		{Name: "latency", Unit: UnitNanoseconds},
	}

	_, err = NewReportBuilder(s, types, ReportTiming{}).Build()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeReportBuild))
	assert.Contains(t, err.Error(), "declares 2")
}

func TestReportImmutableAfterBuild(t *testing.T) {
	s, err := NewSampler()
	require.NoError(t, err)

	s.Record([]Frame{{Function: "op"}}, []int64{1})
	report, err := NewReportBuilder(s, []SampleType{{Name: "op", Unit: UnitCount}}, ReportTiming{}).Build()
	require.NoError(t, err)

	// Recording after the build must not grow the already-built report.
	s.Record([]Frame{{Function: "op"}}, []int64{1})
	assert.Len(t, report.Samples(), 1)
	assert.Equal(t, 2, s.Len())
}
