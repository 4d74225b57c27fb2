package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)

// LocalStorage implements Storage on the local filesystem, laying keys out
// as paths under a root directory. Suitable for development and tests; swap
// for S3Storage in production.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates a LocalStorage rooted at root.
// The directory is created if it doesn't exist.
func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "ingest-objects")
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStorage{root: root}, nil
}

// Root returns the storage root directory.
func (s *LocalStorage) Root() string {
	return s.root
}

// Put writes the object to a temporary file and renames it into place, so a
// key never ends up holding a partial write.
func (s *LocalStorage) Put(ctx context.Context, key, _ string, data io.Reader) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	dest := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(dest), ".upload_*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	tmpName := f.Name()

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write object: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("finalize object: %w", err)
	}
	return nil
}
