// Package client provides the reference polling client for the ingest API:
// submit a job, then poll its status at a fixed interval up to a bounded
// number of attempts. Exhausting the attempt budget is a distinct give-up
// condition, not a job failure; the job may still be running server-side.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clipvault/ingest-api/internal/job"
	"github.com/clipvault/ingest-api/internal/server"
)

// Static errors for client operations.
var (
	// ErrBaseURLRequired is returned when the API base URL is not provided.
	ErrBaseURLRequired = errors.New("client: base URL is required")
	// ErrJobNotFound is returned on a 404 status lookup.
	ErrJobNotFound = errors.New("client: job not found")
	// ErrSubmitRejected is returned when the API rejects a submission.
	ErrSubmitRejected = errors.New("client: submit rejected")
	// ErrRequestFailed is returned for any other non-2xx response.
	ErrRequestFailed = errors.New("client: request failed")
	// ErrAwaitTimeout is returned when the poll attempt budget is exhausted
	// before the job reaches a terminal state.
	ErrAwaitTimeout = errors.New("client: gave up waiting for terminal status")
)

// Client talks to the ingestion gateway over HTTP.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	maxAttempts  int
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithPollInterval sets the fixed interval between status polls.
func WithPollInterval(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.pollInterval = d
		}
	}
}

// WithMaxAttempts sets the poll attempt budget for Await.
func WithMaxAttempts(n int) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.maxAttempts = n
		}
	}
}

// New creates a Client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: 1 * time.Second,
		maxAttempts:  60,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit posts an ingestion request and returns the acknowledged job ID.
func (c *Client) Submit(ctx context.Context, req job.Request) (string, error) {
	body, err := json.Marshal(server.ScrapeRequest{
		SourceURL:   req.SourceURL,
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		UserID:      req.UserID,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/scrape", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusBadRequest {
		return "", fmt.Errorf("%w: %s", ErrSubmitRejected, readError(resp.Body))
	}
	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("%w: unexpected status %d", ErrRequestFailed, resp.StatusCode)
	}

	var ack server.ScrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return "", fmt.Errorf("decode ack: %w", err)
	}
	return ack.JobID, nil
}

// Status fetches the current status of a job.
func (c *Client) Status(ctx context.Context, jobID string) (server.JobStatusResponse, error) {
	var status server.JobStatusResponse

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/jobs/"+jobID, nil)
	if err != nil {
		return status, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return status, fmt.Errorf("status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return status, ErrJobNotFound
	default:
		return status, fmt.Errorf("%w: unexpected status %d", ErrRequestFailed, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, fmt.Errorf("decode status: %w", err)
	}
	return status, nil
}

// Await polls a job until it reaches a terminal status or the attempt
// budget is spent. The last observed status is returned alongside
// ErrAwaitTimeout when the budget runs out.
func (c *Client) Await(ctx context.Context, jobID string) (server.JobStatusResponse, error) {
	var last server.JobStatusResponse

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return last, fmt.Errorf("await: %w", ctx.Err())
			case <-time.After(c.pollInterval):
			}
		}

		status, err := c.Status(ctx, jobID)
		if err != nil {
			return last, err
		}
		last = status

		if job.Status(status.Status).IsTerminal() {
			return status, nil
		}
	}

	return last, ErrAwaitTimeout
}

// readError extracts the message from a standard error response body.
func readError(r io.Reader) string {
	var e server.ErrorResponse
	if err := json.NewDecoder(r).Decode(&e); err != nil || e.Error == "" {
		return "unreadable error body"
	}
	return e.Error
}
