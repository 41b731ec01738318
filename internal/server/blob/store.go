// Package blob provides object storage for audio, transcript and analysis
// payloads, backed by any S3-compatible service (AWS S3, MinIO).
package blob

import (
	"context"
	"time"
)

// Store is the object-storage surface used by the pipeline and services.
type Store interface {
	// EnsureBucket creates the configured bucket if it does not exist yet.
	EnsureBucket(ctx context.Context) error

	// Put stores data under a fresh key derived from the owner and logical
	// path and returns that key. Keys are never reused: a retry of a stage
	// produces a new blob under a new key.
	Put(ctx context.Context, userID, logicalPath string, data []byte, contentType string) (string, error)

	// Get returns the payload stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the payload stored under key.
	Delete(ctx context.Context, key string) error

	// SignedGetURL returns a short-lived presigned URL for reading the
	// payload over plain HTTP, e.g. for handing audio to a provider.
	SignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
