package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipvault/ingest-api/internal/job"
)

func newTestRouter(t *testing.T) (http.Handler, *job.MemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := job.NewMemoryStore()
	h := NewHandlers(store, logger)
	return NewRouter(h, logger, DefaultConfig()), store
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/status", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	resp := decodeBody[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
}

func TestSubmit(t *testing.T) {
	router, store := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/scrape", ScrapeRequest{
		SourceURL: "https://www.youtube.com/watch?v=abc123",
		Title:     "My Clip",
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decodeBody[ScrapeResponse](t, rec)
	require.NotEmpty(t, resp.JobID)

	// The acknowledged job must be immediately queryable as pending.
	created, err := store.Get(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusPending, created.GetStatus())
	assert.Equal(t, "My Clip", created.Request.Title)
}

func TestSubmit_InvalidJSON(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/scrape", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "INVALID_JSON", resp.Code)
}

func TestSubmit_ValidationFailure(t *testing.T) {
	tests := []struct {
		name string
		req  ScrapeRequest
	}{
		{"missing source URL", ScrapeRequest{Title: "no url"}},
		{"malformed source URL", ScrapeRequest{SourceURL: "not-a-url"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, store := newTestRouter(t)

			rec := doJSON(t, router, http.MethodPost, "/api/scrape", tt.req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, "VALIDATION_ERROR", resp.Code)

			// A rejected submission must not leave a job behind.
			_, err := store.NextPending(context.Background())
			assert.ErrorIs(t, err, job.ErrNoPendingJobs)
		})
	}
}

func TestStatus_Pending(t *testing.T) {
	router, store := newTestRouter(t)

	created, err := store.Create(context.Background(), job.Request{SourceURL: "https://youtu.be/abc123"})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodGet, "/api/jobs/"+created.ID, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[JobStatusResponse](t, rec)
	assert.Equal(t, "pending", resp.Status)
	assert.Nil(t, resp.Response)
	assert.Empty(t, resp.Error)
}

func TestStatus_Completed(t *testing.T) {
	router, store := newTestRouter(t)

	created, err := store.Create(context.Background(), job.Request{SourceURL: "https://youtu.be/abc123"})
	require.NoError(t, err)
	claimed, err := store.Claim(context.Background(), created.ID)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, store.Complete(context.Background(), created.ID, job.Response{
		VideoID:    1,
		Title:      "Test Video",
		StorageKey: "videos/key.mp4",
	}))

	rec := doJSON(t, router, http.MethodGet, "/api/jobs/"+created.ID, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[JobStatusResponse](t, rec)
	assert.Equal(t, "completed", resp.Status)
	require.NotNil(t, resp.Response)
	assert.Equal(t, 1, resp.Response.VideoID)
	assert.Equal(t, "videos/key.mp4", resp.Response.StorageKey)
	assert.Empty(t, resp.Error)
}

func TestStatus_Failed(t *testing.T) {
	router, store := newTestRouter(t)

	created, err := store.Create(context.Background(), job.Request{SourceURL: "https://youtu.be/abc123"})
	require.NoError(t, err)
	claimed, err := store.Claim(context.Background(), created.ID)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, store.Fail(context.Background(), created.ID, "download: network failure: HTTP Error 503"))

	rec := doJSON(t, router, http.MethodGet, "/api/jobs/"+created.ID, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[JobStatusResponse](t, rec)
	assert.Equal(t, "failed", resp.Status)
	assert.Nil(t, resp.Response)
	assert.Equal(t, "download: network failure: HTTP Error 503", resp.Error)
}

func TestStatus_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/jobs/does-not-exist", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "JOB_NOT_FOUND", resp.Code)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/scrape", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_CORSHeaders(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/scrape", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
