package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *ObjProfError
		want string
	}{
		{
			name: "code and message",
			err:  New(ErrCodeReportBuild, "no samples"),
			want: "REPORT_BUILD: no samples",
		},
		{
			name: "with component",
			err:  New(ErrCodeStorageRead, "read failed").WithComponent("s3-backend"),
			want: "[s3-backend] STORAGE_READ: read failed",
		},
		{
			name: "with component and operation",
			err:  New(ErrCodeStorageRead, "read failed").WithComponent("s3-backend").WithOperation("get"),
			want: "[s3-backend:get] STORAGE_READ: read failed",
		},
		{
			name: "with cause",
			err:  New(ErrCodeSerialization, "write failed").WithCause(fmt.Errorf("disk full")),
			want: "SERIALIZATION: write failed: disk full",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := New(ErrCodeProfilerInit, "init failed").WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestIsMatchesByCode(t *testing.T) {
	a := New(ErrCodeObjectNotFound, "missing: a")
	b := New(ErrCodeObjectNotFound, "missing: b")
	c := New(ErrCodeStorageRead, "read failed")

	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, c)
}

func TestIsCode(t *testing.T) {
	err := New(ErrCodeReportBuild, "sampler failed").
		WithCause(New(ErrCodeProfilerInit, "bad option"))

	assert.True(t, IsCode(err, ErrCodeReportBuild))
	assert.False(t, IsCode(err, ErrCodeSerialization))
	assert.False(t, IsCode(fmt.Errorf("plain"), ErrCodeReportBuild))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, IsCode(wrapped, ErrCodeReportBuild))
}

func TestGetCategory(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want ErrorCategory
	}{
		{ErrCodeInvalidConfig, CategoryConfiguration},
		{ErrCodeObjectNotFound, CategoryStorage},
		{ErrCodeProfilerInit, CategoryProfiling},
		{ErrCodeDatasetCorrupt, CategoryWorkload},
		{ErrorCode("UNKNOWN"), CategoryInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GetCategory(tt.code))
	}
}

func TestNewf(t *testing.T) {
	err := Newf(ErrCodeInvalidConfig, "rows must be positive, got %d", -1)
	require.NotNil(t, err)
	assert.Contains(t, err.Message, "got -1")
	assert.Equal(t, CategoryConfiguration, err.Category)
	assert.False(t, err.Timestamp.IsZero())
}
