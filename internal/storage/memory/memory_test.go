package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objprof/objprof/pkg/errors"
)

func TestPutGetObject(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()

	require.NoError(t, b.PutObject(ctx, "data/batch-00001", []byte("hello world")))

	data, err := b.GetObject(ctx, "data/batch-00001", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), data)
}

func TestGetObjectRange(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()
	require.NoError(t, b.PutObject(ctx, "key", []byte("0123456789")))

	tests := []struct {
		name   string
		offset int64
		size   int64
		want   string
	}{
		{"full", 0, -1, "0123456789"},
		{"offset", 4, -1, "456789"},
		{"offset and size", 2, 3, "234"},
		{"size beyond end", 8, 10, "89"},
		{"offset beyond end", 20, -1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := b.GetObject(ctx, "key", tt.offset, tt.size)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestGetObjectNotFound(t *testing.T) {
	b := NewBackend()

	_, err := b.GetObject(context.Background(), "missing", 0, -1)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeObjectNotFound))
}

func TestPutObjectEmptyKey(t *testing.T) {
	b := NewBackend()

	err := b.PutObject(context.Background(), "", []byte("data"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStorageWrite))
}

func TestDeleteObject(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()

	require.NoError(t, b.PutObject(ctx, "key", []byte("data")))
	require.NoError(t, b.DeleteObject(ctx, "key"))

	_, err := b.GetObject(ctx, "key", 0, -1)
	assert.True(t, errors.IsCode(err, errors.ErrCodeObjectNotFound))

	// Deleting a missing key succeeds.
	assert.NoError(t, b.DeleteObject(ctx, "key"))
}

func TestHeadObject(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()
	require.NoError(t, b.PutObject(ctx, "key", []byte("12345")))

	info, err := b.HeadObject(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "key", info.Key)
	assert.Equal(t, int64(5), info.Size)
	assert.NotEmpty(t, info.ETag)
	assert.False(t, info.LastModified.IsZero())
}

func TestBatchOperations(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()

	objects := map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
		"c": []byte("3"),
	}
	require.NoError(t, b.PutObjects(ctx, objects))

	got, err := b.GetObjects(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, objects, got)

	_, err = b.GetObjects(ctx, []string{"a", "missing"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeObjectNotFound))
}

func TestListObjects(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()

	for _, key := range []string{"data/batch-00002", "data/batch-00001", "index/centroids", "manifest.json"} {
		require.NoError(t, b.PutObject(ctx, key, []byte("x")))
	}

	infos, err := b.ListObjects(ctx, "data/", 0)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "data/batch-00001", infos[0].Key)
	assert.Equal(t, "data/batch-00002", infos[1].Key)

	infos, err = b.ListObjects(ctx, "", 3)
	require.NoError(t, err)
	assert.Len(t, infos, 3)
}

func TestGetObjectCanceledContext(t *testing.T) {
	b := NewBackend()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.GetObject(ctx, "key", 0, -1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPutObjectCopiesData(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()

	data := []byte("original")
	require.NoError(t, b.PutObject(ctx, "key", data))
	data[0] = 'X'

	got, err := b.GetObject(ctx, "key", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))
}
