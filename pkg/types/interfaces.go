package types

import (
	"context"
	"time"
)

// Backend defines the interface for object storage backends. Any
// implementation of this surface can be wrapped for profiling; callers
// program against the interface, never a concrete backend.
type Backend interface {
	// Object operations
	GetObject(ctx context.Context, key string, offset, size int64) ([]byte, error)
	PutObject(ctx context.Context, key string, data []byte) error
	DeleteObject(ctx context.Context, key string) error
	HeadObject(ctx context.Context, key string) (*ObjectInfo, error)

	// Batch operations
	GetObjects(ctx context.Context, keys []string) (map[string][]byte, error)
	PutObjects(ctx context.Context, objects map[string][]byte) error

	// List operations
	ListObjects(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error)

	// Health check
	HealthCheck(ctx context.Context) error
}

// MetricsCollector defines the metrics collection interface fed by the
// instrumented store.
type MetricsCollector interface {
	RecordOperation(operation string, duration time.Duration, size int64, success bool)
}
