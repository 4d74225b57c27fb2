// Package storage provides durable object storage for ingested assets.
// It defines the Storage port and implementations for local disk and
// S3-compatible backends (AWS S3 or MinIO).
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for durable object writes.
type Storage interface {
	// Put streams data to the object store under key with the given content
	// type. It returns nil only after the object is fully and durably
	// written; a partial write never reports success.
	Put(ctx context.Context, key, contentType string, data io.Reader) error
}
