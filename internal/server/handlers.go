package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/clipvault/ingest-api/internal/job"
)

// Handlers contains the HTTP handlers for the ingestion gateway.
// They perform short, bounded job store operations only; the pipeline runs
// elsewhere, so submit and status never wait on a download.
type Handlers struct {
	store     job.Store
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store job.Store, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		store:     store,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /api/status requests. No side effects.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Submit handles POST /api/scrape requests. A malformed submission is
// rejected without creating a job row; a valid one is acknowledged with a
// job_id that is immediately queryable in pending status.
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("source_url", req.SourceURL),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	created, err := h.store.Create(r.Context(), job.Request{
		SourceURL:   req.SourceURL,
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		UserID:      req.UserID,
	})
	if err != nil {
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	h.logger.Info("job submitted",
		slog.String("job_id", created.ID),
		slog.String("source_url", req.SourceURL),
	)

	writeJSON(w, http.StatusAccepted, ScrapeResponse{JobID: created.ID})
}

// Status handles GET /api/jobs/{id} requests.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	found, err := h.store.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	resp := JobStatusResponse{Status: string(found.Status)}
	if r, ok := found.Result.Response(); ok {
		resp.Response = &r
	}
	if msg, ok := found.Result.FailureMessage(); ok {
		resp.Error = msg
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
