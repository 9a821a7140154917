// Package types defines the shared interfaces and data types used across
// objprof: the object storage capability surface, object metadata, and the
// metrics collection contract.
package types
