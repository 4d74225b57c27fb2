package video

import (
	"context"
	"sync"
	"time"
)

// Compile-time check that MemoryWriter implements Writer.
var _ Writer = (*MemoryWriter)(nil)

// MemoryWriter is an in-memory implementation of Writer for single-process
// deployments and tests.
type MemoryWriter struct {
	mu     sync.Mutex
	nextID int
	byKey  map[string]*Video
	byID   map[int]*Video
}

// NewMemoryWriter creates a new in-memory video writer.
func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{
		nextID: 1,
		byKey:  make(map[string]*Video),
		byID:   make(map[int]*Video),
	}
}

// Create inserts the record, enforcing storage key uniqueness.
func (w *MemoryWriter) Create(_ context.Context, v *Video) (*Video, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.byKey[v.StorageKey]; exists {
		return nil, ErrDuplicateStorageKey
	}

	stored := *v
	stored.ID = w.nextID
	stored.ViewCount = 0
	if stored.UploadDate.IsZero() {
		stored.UploadDate = time.Now()
	}
	stored.Tags = append([]string(nil), v.Tags...)

	w.nextID++
	w.byKey[stored.StorageKey] = &stored
	w.byID[stored.ID] = &stored

	out := stored
	return &out, nil
}

// Get retrieves a record by ID. It exists so tests can verify that a
// completed job's response points at a queryable video.
func (w *MemoryWriter) Get(id int) (*Video, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.byID[id]
	if !ok {
		return nil, false
	}
	out := *v
	return &out, true
}
