// Package job provides the Job aggregate for asynchronous video ingestion.
// A Job tracks one request to fetch an external video, from submission
// through a worker-driven pipeline to a terminal outcome. It also defines
// the Store port used by the gateway and the worker pool.
package job

import (
	"errors"
	"sync"
	"time"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusPending indicates the job is waiting to be claimed by a worker.
	StatusPending Status = "pending"
	// StatusProcessing indicates a worker owns the job and is running the pipeline.
	StatusProcessing Status = "processing"
	// StatusCompleted indicates the pipeline finished and the video record exists.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the pipeline failed; the message is kept on the job.
	StatusFailed Status = "failed"
)

// IsTerminal returns true if the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
// Transitions are monotonic and never skip the pending state.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Request is the caller-supplied ingestion payload. It is immutable after
// job creation. Optional fields override metadata extracted during download.
type Request struct {
	// SourceURL is the external video page URL to ingest.
	SourceURL string `json:"source_url"`
	// Title overrides the extracted video title when set.
	Title string `json:"title,omitempty"`
	// Description overrides the default description when set.
	Description string `json:"description,omitempty"`
	// Tags are attached to the created video record.
	Tags []string `json:"tags,omitempty"`
	// UserID identifies the submitting user, if any.
	UserID *int `json:"user_id,omitempty"`
}

// Response is the success payload of a completed job.
type Response struct {
	// VideoID is the identifier of the created video record.
	VideoID int `json:"video_id"`
	// Title is the final video title.
	Title string `json:"title"`
	// StorageKey is the object storage key of the uploaded video.
	StorageKey string `json:"storage_key"`
	// ThumbnailKey is the object storage key of the thumbnail, if one was stored.
	ThumbnailKey string `json:"thumbnail_key,omitempty"`
}

// Result is the terminal outcome of a job: either a Response or a failure
// message, never both. The zero Result means the job has no outcome yet.
type Result struct {
	response *Response
	errMsg   string
}

// Succeeded builds a successful Result carrying the given response.
func Succeeded(resp Response) Result {
	return Result{response: &resp}
}

// Failed builds a failed Result carrying a human-readable message.
func Failed(msg string) Result {
	return Result{errMsg: msg}
}

// Response returns the success payload and true when the result is a success.
func (r Result) Response() (Response, bool) {
	if r.response == nil {
		return Response{}, false
	}
	return *r.response, true
}

// FailureMessage returns the failure message and true when the result is a failure.
func (r Result) FailureMessage() (string, bool) {
	if r.errMsg == "" {
		return "", false
	}
	return r.errMsg, true
}

// IsZero returns true when no outcome has been recorded.
func (r Result) IsZero() bool {
	return r.response == nil && r.errMsg == ""
}

// Job represents one unit of asynchronous ingestion work.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job, generated at creation.
	ID string
	// Request is the immutable submission payload.
	Request Request
	// Status is the current job state.
	Status Status
	// Result is the terminal outcome, set exactly once.
	Result Result
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt advances on every status transition.
	UpdatedAt time.Time
}

// New creates a Job with the given identifier in pending status.
func New(id string, req Request) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Request:   req,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Claim transitions the job from pending to processing.
// Returns ErrInvalidTransition if the job is not pending.
func (j *Job) Claim() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !canTransition(j.Status, StatusProcessing) {
		return ErrInvalidTransition
	}
	j.Status = StatusProcessing
	j.UpdatedAt = time.Now()
	return nil
}

// Complete transitions the job from processing to completed and records the response.
// Returns ErrInvalidTransition if the job is not processing.
func (j *Job) Complete(resp Response) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !canTransition(j.Status, StatusCompleted) {
		return ErrInvalidTransition
	}
	j.Status = StatusCompleted
	j.Result = Succeeded(resp)
	j.UpdatedAt = time.Now()
	return nil
}

// Fail transitions the job from processing to failed and records the message.
// Returns ErrInvalidTransition if the job is not processing.
func (j *Job) Fail(msg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !canTransition(j.Status, StatusFailed) {
		return ErrInvalidTransition
	}
	j.Status = StatusFailed
	j.Result = Failed(msg)
	j.UpdatedAt = time.Now()
	return nil
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// IsTerminal returns true if the job reached a terminal state.
func (j *Job) IsTerminal() bool {
	return j.GetStatus().IsTerminal()
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	req := j.Request
	req.Tags = append([]string(nil), j.Request.Tags...)
	if j.Request.UserID != nil {
		uid := *j.Request.UserID
		req.UserID = &uid
	}

	return &Job{
		ID:        j.ID,
		Request:   req,
		Status:    j.Status,
		Result:    j.Result,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
