package video

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Compile-time check that GormWriter implements Writer.
var _ Writer = (*GormWriter)(nil)

// videoRecord is the persisted shape of a Video.
type videoRecord struct {
	ID           int      `gorm:"column:id;primaryKey;autoIncrement"`
	Title        string   `gorm:"column:title;not null"`
	Description  string   `gorm:"column:description"`
	StorageKey   string   `gorm:"column:s3_key;uniqueIndex;not null"`
	ThumbnailKey string   `gorm:"column:thumbnail_key"`
	UploadedBy   *int     `gorm:"column:uploaded_by"`
	Tags         []string `gorm:"column:tags;serializer:json"`
	DurationSec  int      `gorm:"column:duration"`
	ViewCount    int      `gorm:"column:view_count;not null;default:0"`
	UploadDate   time.Time `gorm:"column:upload_date"`
}

func (videoRecord) TableName() string { return "videos" }

// GormWriter is a Postgres-backed implementation of Writer.
// The unique index on s3_key makes the insert the atomicity point: a
// duplicate ingestion of the same key fails instead of overwriting.
type GormWriter struct {
	db *gorm.DB
}

// NewGormWriter creates a video writer backed by the given database and
// migrates the videos table.
func NewGormWriter(db *gorm.DB) (*GormWriter, error) {
	if err := db.AutoMigrate(&videoRecord{}); err != nil {
		return nil, fmt.Errorf("migrate videos table: %w", err)
	}
	return &GormWriter{db: db}, nil
}

// Create inserts the record in a single statement.
func (w *GormWriter) Create(ctx context.Context, v *Video) (*Video, error) {
	rec := videoRecord{
		Title:        v.Title,
		Description:  v.Description,
		StorageKey:   v.StorageKey,
		ThumbnailKey: v.ThumbnailKey,
		UploadedBy:   v.UploadedBy,
		Tags:         append([]string(nil), v.Tags...),
		DurationSec:  v.DurationSec,
		ViewCount:    0,
		UploadDate:   v.UploadDate,
	}
	if rec.UploadDate.IsZero() {
		rec.UploadDate = time.Now()
	}

	err := w.db.WithContext(ctx).Create(&rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrDuplicateStorageKey
	}
	if err != nil {
		return nil, fmt.Errorf("insert video: %w", err)
	}

	out := *v
	out.ID = rec.ID
	out.ViewCount = 0
	out.UploadDate = rec.UploadDate
	return &out, nil
}
