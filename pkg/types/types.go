package types

import (
	"time"
)

// ObjectInfo describes a stored object's metadata.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
	ContentType  string
	Metadata     map[string]string
}
