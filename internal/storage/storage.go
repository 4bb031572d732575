// Package storage is the object store used for published exports and for
// submissions kept as objects.
package storage

import (
	"context"
	"time"
)

// Object describes a stored object.
type Object struct {
	Key          string
	LastModified time.Time
}

// ObjectStore is the subset of bucket operations the jobs need.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, body []byte, contentType string, metadata map[string]string) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	List(ctx context.Context, bucket, prefix string) ([]Object, error)
	Delete(ctx context.Context, bucket, key string) error
}
