package job

import (
	"context"
	"errors"
)

// Static errors for the Store port.
var (
	// ErrJobNotFound is returned when a job cannot be found by ID.
	ErrJobNotFound = errors.New("job not found")
	// ErrNotProcessing is returned when a terminal transition is attempted
	// on a job that is not currently processing. It protects against
	// double completion.
	ErrNotProcessing = errors.New("job is not processing")
	// ErrNoPendingJobs is returned by NextPending when no job is waiting.
	ErrNoPendingJobs = errors.New("no pending jobs")
)

// Store defines the interface for job persistence. It is the single source
// of truth for job state and the only synchronization point between the
// gateway and the worker pool.
type Store interface {
	// Create generates a fresh unique identifier, persists a pending job
	// for the request and returns it. Identifier collisions are retried.
	// The job is queryable via Get as soon as Create returns.
	Create(ctx context.Context, req Request) (*Job, error)

	// Get retrieves a job by its unique identifier.
	// Returns ErrJobNotFound if the job does not exist.
	Get(ctx context.Context, id string) (*Job, error)

	// NextPending returns the ID of the oldest pending job.
	// Returns ErrNoPendingJobs when nothing is waiting.
	NextPending(ctx context.Context) (string, error)

	// Claim atomically transitions a pending job to processing. When
	// multiple workers race on the same job, exactly one claim succeeds;
	// the rest observe false. Returns ErrJobNotFound for unknown IDs.
	Claim(ctx context.Context, id string) (bool, error)

	// Complete transitions a processing job to completed with the response.
	// Returns ErrNotProcessing if the job is not currently processing.
	Complete(ctx context.Context, id string, resp Response) error

	// Fail transitions a processing job to failed with the error message.
	// Returns ErrNotProcessing if the job is not currently processing.
	Fail(ctx context.Context, id string, msg string) error
}
