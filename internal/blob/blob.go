// Package blob stores uploaded files and blog content in S3-compatible
// object storage.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("blob: not found")

// Bucket is the object storage surface the services rely on. Keys are
// relative; implementations add their configured prefix.
type Bucket interface {
	// PresignPut returns a short-lived URL a browser can PUT the object to.
	PresignPut(ctx context.Context, key string) (string, error)
	// Put uploads body with public-read access and returns its public URL.
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	// Copy duplicates src to dst and returns the public URL of dst.
	Copy(ctx context.Context, src, dst string) (string, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}
