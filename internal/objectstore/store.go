// Package objectstore abstracts the blob storage that archives are written to.
//
// Three implementations share the Store interface: S3 (any S3-compatible
// endpoint such as MinIO), a badger-backed local disk store for single-node
// deployments, and a process-local memory store. None of them is a package
// singleton; callers construct one and inject it.
package objectstore

import (
	"context"
	"errors"
	"time"
)

const (
	ProviderS3     = "s3"
	ProviderBadger = "badger"
	ProviderMemory = "memory"
)

var (
	ErrNotFound       = errors.New("object not found")
	ErrURLUnsupported = errors.New("object store cannot produce read URLs")
	ErrCorrupt        = errors.New("stored object failed integrity check")
	ErrExists         = errors.New("object already exists")
)

// Location identifies where a store writes. It is copied into every archive
// record so a blob can be located again without outside state.
type Location struct {
	Provider string
	Bucket   string
	Region   string
	Endpoint string
}

// Store is a minimal blob store keyed by (bucket, key).
type Store interface {
	// Put is create-only. A key that already holds an object is left untouched
	// and ErrExists is returned.
	Put(ctx context.Context, bucket, key string, body []byte, metadata map[string]string) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	// URL returns a read URL valid for at least expiry, or ErrURLUnsupported.
	URL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
	Location() Location
}
