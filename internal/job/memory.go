package job

import (
	"context"
	"sync"

	"github.com/clipvault/ingest-api/internal/job/id"
)

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory implementation of Store.
// It uses a map with a mutex for thread-safe access and is suitable for
// single-process deployments and tests; swap for GormStore to persist jobs.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryStore creates a new in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*Job),
	}
}

// Create inserts a new pending job and returns a clone of it.
// ID generation is retried on the off chance of a collision.
func (s *MemoryStore) Create(_ context.Context, req Request) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobID := id.Generate()
	for {
		if _, exists := s.jobs[jobID]; !exists {
			break
		}
		jobID = id.Generate()
	}

	j := New(jobID, req)
	s.jobs[jobID] = j
	return j.Clone(), nil
}

// Get retrieves a job by its ID.
// Returns a clone to prevent external mutations.
func (s *MemoryStore) Get(_ context.Context, jobID string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j.Clone(), nil
}

// NextPending returns the ID of the oldest pending job.
func (s *MemoryStore) NextPending(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var oldest *Job
	for _, j := range s.jobs {
		if j.GetStatus() != StatusPending {
			continue
		}
		if oldest == nil || j.CreatedAt.Before(oldest.CreatedAt) {
			oldest = j
		}
	}
	if oldest == nil {
		return "", ErrNoPendingJobs
	}
	return oldest.ID, nil
}

// Claim conditionally transitions a pending job to processing.
// The store lock makes the check-and-set atomic across workers.
func (s *MemoryStore) Claim(_ context.Context, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return false, ErrJobNotFound
	}
	if err := j.Claim(); err != nil {
		return false, nil
	}
	return true, nil
}

// Complete transitions a processing job to completed with the response.
func (s *MemoryStore) Complete(_ context.Context, jobID string, resp Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if err := j.Complete(resp); err != nil {
		return ErrNotProcessing
	}
	return nil
}

// Fail transitions a processing job to failed with the error message.
func (s *MemoryStore) Fail(_ context.Context, jobID string, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if err := j.Fail(msg); err != nil {
		return ErrNotProcessing
	}
	return nil
}
