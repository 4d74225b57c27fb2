// Package pipeline executes the ingestion stages for a single job:
// download the source video, upload it to object storage, and create the
// permanent video record. Stage order is strict and failures carry a stage
// prefix so operators can tell where a job died.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/clipvault/ingest-api/internal/downloader"
	"github.com/clipvault/ingest-api/internal/job"
	"github.com/clipvault/ingest-api/internal/storage"
	"github.com/clipvault/ingest-api/internal/video"
)

// Runner executes the full ingestion pipeline for one request.
// The worker pool and the one-shot CLI mode both drive it.
type Runner interface {
	Run(ctx context.Context, req job.Request) (job.Response, error)
}

// Pipeline implements Runner against a downloader, an object store and a
// video metadata writer.
type Pipeline struct {
	downloader downloader.Downloader
	store      storage.Storage
	writer     video.Writer
	tempDir    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithTempDir sets the directory for per-job scratch space.
func WithTempDir(dir string) Option {
	return func(p *Pipeline) {
		if dir != "" {
			p.tempDir = dir
		}
	}
}

// WithHTTPClient sets the client used for thumbnail fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// New creates a Pipeline.
func New(dl downloader.Downloader, store storage.Storage, writer video.Writer, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		downloader: dl,
		store:      store,
		writer:     writer,
		tempDir:    os.TempDir(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run drives a request through download, upload and metadata write.
// Scratch files are removed on every exit path. No partial video record is
// ever created: the metadata insert is the last stage and is atomic.
func (p *Pipeline) Run(ctx context.Context, req job.Request) (job.Response, error) {
	scratch, err := os.MkdirTemp(p.tempDir, "ingest_*")
	if err != nil {
		return job.Response{}, fmt.Errorf("download: storage failure: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			p.logger.Warn("failed to remove scratch dir",
				slog.String("dir", scratch),
				slog.String("error", rmErr.Error()),
			)
		}
	}()

	asset, err := p.downloader.Download(ctx, req.SourceURL, scratch)
	if err != nil {
		return job.Response{}, fmt.Errorf("download: %w", err)
	}
	p.logger.Info("video downloaded",
		slog.String("source_id", asset.SourceID),
		slog.String("title", asset.Title),
		slog.Int("duration_sec", asset.Duration),
	)

	storageKey := fmt.Sprintf("videos/%s.mp4", uuid.NewString())
	if err := p.uploadAsset(ctx, asset.Path, storageKey); err != nil {
		return job.Response{}, err
	}
	p.logger.Info("video uploaded", slog.String("storage_key", storageKey))

	// Thumbnail failures are logged but never fail the job.
	thumbnailKey := p.ingestThumbnail(ctx, asset.ThumbnailURL)

	v, err := p.writeMetadata(ctx, req, asset, storageKey, thumbnailKey)
	if err != nil {
		return job.Response{}, err
	}
	p.logger.Info("video record created",
		slog.Int("video_id", v.ID),
		slog.String("storage_key", v.StorageKey),
	)

	return job.Response{
		VideoID:      v.ID,
		Title:        v.Title,
		StorageKey:   v.StorageKey,
		ThumbnailKey: v.ThumbnailKey,
	}, nil
}

func (p *Pipeline) uploadAsset(ctx context.Context, path, key string) error {
	f, err := os.Open(path) // #nosec G304 - path comes from our own scratch dir
	if err != nil {
		return fmt.Errorf("upload: storage failure: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := p.store.Put(ctx, key, "video/mp4", f); err != nil {
		return fmt.Errorf("upload: storage failure: %w", err)
	}
	return nil
}

// ingestThumbnail fetches the source thumbnail and stores it under a fresh
// key. Returns the key, or empty on any failure.
func (p *Pipeline) ingestThumbnail(ctx context.Context, thumbnailURL string) string {
	if thumbnailURL == "" {
		return ""
	}

	reqHTTP, err := http.NewRequestWithContext(ctx, http.MethodGet, thumbnailURL, nil)
	if err != nil {
		p.logger.Warn("thumbnail request failed", slog.String("error", err.Error()))
		return ""
	}
	resp, err := p.httpClient.Do(reqHTTP)
	if err != nil {
		p.logger.Warn("thumbnail fetch failed",
			slog.String("url", thumbnailURL),
			slog.String("error", err.Error()),
		)
		return ""
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		p.logger.Warn("thumbnail fetch failed",
			slog.String("url", thumbnailURL),
			slog.Int("status", resp.StatusCode),
		)
		return ""
	}

	key := fmt.Sprintf("thumbnails/%s.jpg", uuid.NewString())
	if err := p.store.Put(ctx, key, "image/jpeg", resp.Body); err != nil {
		p.logger.Warn("thumbnail upload failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return key
}

func (p *Pipeline) writeMetadata(ctx context.Context, req job.Request, asset *downloader.Asset, storageKey, thumbnailKey string) (*video.Video, error) {
	title := req.Title
	if title == "" {
		title = asset.Title
	}
	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Scraped from YouTube: %s", req.SourceURL)
	}
	tags := req.Tags
	if len(tags) == 0 {
		tags = []string{"youtube"}
	}

	v, err := p.writer.Create(ctx, &video.Video{
		Title:        title,
		Description:  description,
		StorageKey:   storageKey,
		ThumbnailKey: thumbnailKey,
		UploadedBy:   req.UserID,
		Tags:         tags,
		DurationSec:  asset.Duration,
	})
	if errors.Is(err, video.ErrDuplicateStorageKey) {
		return nil, fmt.Errorf("metadata: storage conflict: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("metadata: storage failure: %w", err)
	}
	return v, nil
}
