package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/clipvault/ingest-api/internal/job/id"
)

// Compile-time check that GormStore implements Store.
var _ Store = (*GormStore)(nil)

// jobRecord is the persisted shape of a Job. The request and response
// payloads are stored as JSON; exactly one of response/error is non-null
// once the status is terminal.
type jobRecord struct {
	JobID     string  `gorm:"column:job_id;primaryKey"`
	Request   string  `gorm:"column:request;type:jsonb;not null"`
	Status    string  `gorm:"column:status;not null;index"`
	Response  *string `gorm:"column:response;type:jsonb"`
	Error     *string `gorm:"column:error"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (jobRecord) TableName() string { return "jobs" }

// GormStore is a Postgres-backed implementation of Store.
// Claim and the terminal transitions are conditional UPDATEs guarded by the
// current status, so they are atomic across processes without extra locking.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a job store backed by the given database and
// migrates the jobs table.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&jobRecord{}); err != nil {
		return nil, fmt.Errorf("migrate jobs table: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Create inserts a new pending job row and returns the job.
// A primary key collision regenerates the ID and retries the insert.
func (s *GormStore) Create(ctx context.Context, req Request) (*Job, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	for {
		j := New(id.Generate(), req)
		rec := jobRecord{
			JobID:     j.ID,
			Request:   string(reqJSON),
			Status:    string(StatusPending),
			CreatedAt: j.CreatedAt,
			UpdatedAt: j.UpdatedAt,
		}
		err := s.db.WithContext(ctx).Create(&rec).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert job: %w", err)
		}
		return j, nil
	}
}

// Get retrieves a job by its ID.
func (s *GormStore) Get(ctx context.Context, jobID string) (*Job, error) {
	var rec jobRecord
	err := s.db.WithContext(ctx).First(&rec, "job_id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select job: %w", err)
	}
	return recordToJob(&rec)
}

// NextPending returns the ID of the oldest pending job.
func (s *GormStore) NextPending(ctx context.Context) (string, error) {
	var rec jobRecord
	err := s.db.WithContext(ctx).
		Select("job_id").
		Where("status = ?", string(StatusPending)).
		Order("created_at asc").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNoPendingJobs
	}
	if err != nil {
		return "", fmt.Errorf("select pending job: %w", err)
	}
	return rec.JobID, nil
}

// Claim conditionally transitions a pending job to processing.
// The WHERE clause on the current status makes exactly one racing
// UPDATE win; losers see zero affected rows.
func (s *GormStore) Claim(ctx context.Context, jobID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&jobRecord{}).
		Where("job_id = ? AND status = ?", jobID, string(StatusPending)).
		Updates(map[string]any{
			"status":     string(StatusProcessing),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("claim job: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	// Distinguish an already-claimed job from an unknown one.
	var count int64
	if err := s.db.WithContext(ctx).Model(&jobRecord{}).Where("job_id = ?", jobID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check job existence: %w", err)
	}
	if count == 0 {
		return false, ErrJobNotFound
	}
	return false, nil
}

// Complete transitions a processing job to completed with the response.
func (s *GormStore) Complete(ctx context.Context, jobID string, resp Response) error {
	respJSON, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	body := string(respJSON)
	return s.terminal(ctx, jobID, StatusCompleted, map[string]any{
		"status":     string(StatusCompleted),
		"response":   &body,
		"updated_at": time.Now(),
	})
}

// Fail transitions a processing job to failed with the error message.
func (s *GormStore) Fail(ctx context.Context, jobID string, msg string) error {
	return s.terminal(ctx, jobID, StatusFailed, map[string]any{
		"status":     string(StatusFailed),
		"error":      &msg,
		"updated_at": time.Now(),
	})
}

func (s *GormStore) terminal(ctx context.Context, jobID string, to Status, updates map[string]any) error {
	res := s.db.WithContext(ctx).
		Model(&jobRecord{}).
		Where("job_id = ? AND status = ?", jobID, string(StatusProcessing)).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("mark job %s: %w", to, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&jobRecord{}).Where("job_id = ?", jobID).Count(&count).Error; err != nil {
		return fmt.Errorf("check job existence: %w", err)
	}
	if count == 0 {
		return ErrJobNotFound
	}
	return ErrNotProcessing
}

// recordToJob rebuilds the Job aggregate from its persisted row.
func recordToJob(rec *jobRecord) (*Job, error) {
	var req Request
	if err := json.Unmarshal([]byte(rec.Request), &req); err != nil {
		return nil, fmt.Errorf("unmarshal request: %w", err)
	}

	j := &Job{
		ID:        rec.JobID,
		Request:   req,
		Status:    Status(rec.Status),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	switch {
	case rec.Response != nil:
		var resp Response
		if err := json.Unmarshal([]byte(*rec.Response), &resp); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
		j.Result = Succeeded(resp)
	case rec.Error != nil:
		j.Result = Failed(*rec.Error)
	}
	return j, nil
}
