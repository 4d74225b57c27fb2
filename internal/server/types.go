// Package server provides the HTTP-facing ingestion gateway. It exposes
// submit/status endpoints backed by the job store only and never blocks on
// the download pipeline. DTOs are kept separate from domain types.
package server

import "github.com/clipvault/ingest-api/internal/job"

// ScrapeRequest is the HTTP request body for submitting an ingestion job.
type ScrapeRequest struct {
	// SourceURL is the external video page URL. Required, must be a URL.
	SourceURL string `json:"source_url" validate:"required,url"`
	// Title overrides the extracted title when set.
	Title string `json:"title,omitempty"`
	// Description overrides the default description when set.
	Description string `json:"description,omitempty"`
	// Tags are attached to the created video record.
	Tags []string `json:"tags,omitempty"`
	// UserID identifies the submitting user.
	UserID *int `json:"user_id,omitempty"`
}

// ScrapeResponse acknowledges an accepted submission.
type ScrapeResponse struct {
	// JobID is the identifier to poll at GET /api/jobs/{job_id}.
	JobID string `json:"job_id"`
}

// JobStatusResponse is the HTTP response for a job status lookup.
// Response and Error are mutually exclusive and only present once the job
// reached a terminal state.
type JobStatusResponse struct {
	// Status is one of pending, processing, completed, failed.
	Status string `json:"status"`
	// Response is the success payload of a completed job.
	Response *job.Response `json:"response,omitempty"`
	// Error is the failure description of a failed job.
	Error string `json:"error,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the liveness endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
