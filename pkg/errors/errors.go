// Package errors provides a structured error system for objprof with error
// codes, categories, and context.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode represents a structured error code for objprof operations.
type ErrorCode string

const (
	// Configuration errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigLoad    ErrorCode = "CONFIG_LOAD"

	// Storage backend errors
	ErrCodeObjectNotFound ErrorCode = "OBJECT_NOT_FOUND"
	ErrCodeBucketNotFound ErrorCode = "BUCKET_NOT_FOUND"
	ErrCodeStorageRead    ErrorCode = "STORAGE_READ"
	ErrCodeStorageWrite   ErrorCode = "STORAGE_WRITE"

	// Profiling errors
	ErrCodeProfilerInit  ErrorCode = "PROFILER_INIT"
	ErrCodeReportBuild   ErrorCode = "REPORT_BUILD"
	ErrCodeSerialization ErrorCode = "SERIALIZATION"

	// Workload errors
	ErrCodeDatasetCorrupt ErrorCode = "DATASET_CORRUPT"
	ErrCodeIndexBuild     ErrorCode = "INDEX_BUILD"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryStorage       ErrorCategory = "storage"
	CategoryProfiling     ErrorCategory = "profiling"
	CategoryWorkload      ErrorCategory = "workload"
	CategoryInternal      ErrorCategory = "internal"
)

// ObjProfError represents a structured error with context and metadata.
type ObjProfError struct {
	Code      ErrorCode     `json:"code"`
	Category  ErrorCategory `json:"category"`
	Message   string        `json:"message"`
	Component string        `json:"component,omitempty"`
	Operation string        `json:"operation,omitempty"`
	Cause     error         `json:"-"` // Not serialized to avoid circular refs
	Timestamp time.Time     `json:"timestamp"`
}

// Error implements the error interface.
func (e *ObjProfError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %s", e.Message, e.Cause.Error())
	}
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, msg)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *ObjProfError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error (for errors.Is compatibility).
func (e *ObjProfError) Is(target error) bool {
	if objProfErr, ok := target.(*ObjProfError); ok {
		return e.Code == objProfErr.Code
	}
	return false
}

// New creates a new objprof error with default values.
func New(code ErrorCode, message string) *ObjProfError {
	return &ObjProfError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Newf creates a new objprof error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *ObjProfError {
	return New(code, fmt.Sprintf(format, args...))
}

// WithCause sets the underlying cause.
func (e *ObjProfError) WithCause(cause error) *ObjProfError {
	e.Cause = cause
	return e
}

// WithComponent sets the component for an error.
func (e *ObjProfError) WithComponent(component string) *ObjProfError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error.
func (e *ObjProfError) WithOperation(operation string) *ObjProfError {
	e.Operation = operation
	return e
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeInvalidConfig, ErrCodeConfigLoad:
		return CategoryConfiguration
	case ErrCodeObjectNotFound, ErrCodeBucketNotFound, ErrCodeStorageRead, ErrCodeStorageWrite:
		return CategoryStorage
	case ErrCodeProfilerInit, ErrCodeReportBuild, ErrCodeSerialization:
		return CategoryProfiling
	case ErrCodeDatasetCorrupt, ErrCodeIndexBuild:
		return CategoryWorkload
	default:
		return CategoryInternal
	}
}

// IsCode reports whether err or any error in its chain carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *ObjProfError
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return false
}
