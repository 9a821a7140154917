// Package memory provides a map-backed storage backend. It is the default
// backend for local runs and the reference implementation the instrumented
// store is tested against.
package memory

import (
	"context"
	"crypto/md5"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/objprof/objprof/pkg/errors"
	"github.com/objprof/objprof/pkg/types"
)

type object struct {
	data         []byte
	lastModified time.Time
	etag         string
}

// Backend is an in-memory implementation of types.Backend. It is safe for
// concurrent use.
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
}

// NewBackend creates an empty in-memory backend.
func NewBackend() *Backend {
	return &Backend{
		objects: make(map[string]object),
	}
}

// GetObject retrieves object data with optional range support. offset < 0
// reads from the start; size < 0 reads to the end.
func (b *Backend) GetObject(ctx context.Context, key string, offset, size int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	obj, ok := b.objects[key]
	b.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.ErrCodeObjectNotFound, "object not found: %s", key).
			WithComponent("memory").WithOperation("get")
	}

	data := obj.data
	if offset > 0 {
		if offset >= int64(len(data)) {
			return []byte{}, nil
		}
		data = data[offset:]
	}
	if size >= 0 && size < int64(len(data)) {
		data = data[:size]
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// PutObject stores object data, overwriting any existing object.
func (b *Backend) PutObject(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return errors.New(errors.ErrCodeStorageWrite, "object key must not be empty").
			WithComponent("memory").WithOperation("put")
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	b.mu.Lock()
	b.objects[key] = object{
		data:         stored,
		lastModified: time.Now(),
		etag:         fmt.Sprintf("%x", md5.Sum(stored)),
	}
	b.mu.Unlock()
	return nil
}

// DeleteObject removes an object. Deleting a missing key is not an error,
// matching S3 semantics.
func (b *Backend) DeleteObject(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	delete(b.objects, key)
	b.mu.Unlock()
	return nil
}

// HeadObject returns object metadata without the data.
func (b *Backend) HeadObject(ctx context.Context, key string) (*types.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	obj, ok := b.objects[key]
	b.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.ErrCodeObjectNotFound, "object not found: %s", key).
			WithComponent("memory").WithOperation("head")
	}

	return &types.ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		LastModified: obj.lastModified,
		ETag:         obj.etag,
	}, nil
}

// GetObjects retrieves multiple objects. It fails on the first missing key.
func (b *Backend) GetObjects(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		data, err := b.GetObject(ctx, key, 0, -1)
		if err != nil {
			return nil, err
		}
		result[key] = data
	}
	return result, nil
}

// PutObjects stores multiple objects.
func (b *Backend) PutObjects(ctx context.Context, objects map[string][]byte) error {
	for key, data := range objects {
		if err := b.PutObject(ctx, key, data); err != nil {
			return err
		}
	}
	return nil
}

// ListObjects returns metadata for objects under prefix in key order.
// limit <= 0 means no limit.
func (b *Backend) ListObjects(ctx context.Context, prefix string, limit int) ([]types.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	keys := make([]string, 0, len(b.objects))
	for key := range b.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	b.mu.RUnlock()

	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	infos := make([]types.ObjectInfo, 0, len(keys))
	for _, key := range keys {
		info, err := b.HeadObject(ctx, key)
		if err != nil {
			// Deleted concurrently between the list and the head.
			continue
		}
		infos = append(infos, *info)
	}
	return infos, nil
}

// HealthCheck always succeeds for the in-memory backend.
func (b *Backend) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}
