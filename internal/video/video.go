// Package video owns the permanent video record created when ingestion
// succeeds. The record is written exactly once, as the last pipeline stage,
// and afterwards belongs to the platform's CRUD subsystem.
package video

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateStorageKey is returned when a video with the same storage key
// already exists. The writer never silently overwrites an existing record.
var ErrDuplicateStorageKey = errors.New("storage key already exists")

// Video is the permanent record of an ingested video.
type Video struct {
	// ID is assigned by the writer on creation.
	ID int
	// Title is the display title.
	Title string
	// Description is the display description.
	Description string
	// StorageKey is the unique object storage key of the video asset.
	StorageKey string
	// ThumbnailKey is the object storage key of the thumbnail, if any.
	ThumbnailKey string
	// UploadedBy identifies the submitting user, if any.
	UploadedBy *int
	// Tags are free-form labels attached at ingestion time.
	Tags []string
	// DurationSec is the video length in seconds.
	DurationSec int
	// ViewCount starts at zero for a freshly ingested video.
	ViewCount int
	// UploadDate is when the record was created.
	UploadDate time.Time
}

// Writer persists video records.
type Writer interface {
	// Create atomically inserts the record and returns it with its assigned
	// ID. Returns ErrDuplicateStorageKey if the storage key is already taken;
	// the existing record is left untouched.
	Create(ctx context.Context, v *Video) (*Video, error)
}
