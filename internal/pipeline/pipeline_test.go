package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clipvault/ingest-api/internal/downloader"
	"github.com/clipvault/ingest-api/internal/job"
	"github.com/clipvault/ingest-api/internal/video"
)

type mockDownloader struct {
	mock.Mock
}

func (m *mockDownloader) Download(ctx context.Context, sourceURL, destDir string) (*downloader.Asset, error) {
	args := m.Called(ctx, sourceURL, destDir)
	if a := args.Get(0); a != nil {
		return a.(*downloader.Asset), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Put(ctx context.Context, key, contentType string, data io.Reader) error {
	args := m.Called(ctx, key, contentType, data)
	return args.Error(0)
}

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) Create(ctx context.Context, v *video.Video) (*video.Video, error) {
	args := m.Called(ctx, v)
	if a := args.Get(0); a != nil {
		return a.(*video.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeAssetFile creates a local file standing in for a downloaded video.
func writeAssetFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "abc123.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video bytes"), 0o600))
	return path
}

func hasKeyPrefix(prefix string) any {
	return mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

func TestPipeline_Run(t *testing.T) {
	thumbSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg bytes"))
	}))
	defer thumbSrv.Close()

	asset := &downloader.Asset{
		Path:         writeAssetFile(t),
		SourceID:     "abc123",
		Title:        "Extracted Title",
		Duration:     42,
		ThumbnailURL: thumbSrv.URL + "/vi/abc123/maxresdefault.jpg",
	}

	dl := new(mockDownloader)
	dl.On("Download", mock.Anything, "https://youtu.be/abc123", mock.Anything).Return(asset, nil)

	store := new(mockStorage)
	store.On("Put", mock.Anything, hasKeyPrefix("videos/"), "video/mp4", mock.Anything).Return(nil)
	store.On("Put", mock.Anything, hasKeyPrefix("thumbnails/"), "image/jpeg", mock.Anything).Return(nil)

	writer := new(mockWriter)
	writer.On("Create", mock.Anything, mock.MatchedBy(func(v *video.Video) bool {
		return v.Title == "Extracted Title" &&
			v.Description == "Scraped from YouTube: https://youtu.be/abc123" &&
			len(v.Tags) == 1 && v.Tags[0] == "youtube" &&
			v.DurationSec == 42 &&
			strings.HasPrefix(v.StorageKey, "videos/") &&
			strings.HasPrefix(v.ThumbnailKey, "thumbnails/")
	})).Return(&video.Video{
		ID:           1,
		Title:        "Extracted Title",
		StorageKey:   "videos/key.mp4",
		ThumbnailKey: "thumbnails/key.jpg",
	}, nil)

	p := New(dl, store, writer, discardLogger(), WithTempDir(t.TempDir()))

	resp, err := p.Run(context.Background(), job.Request{SourceURL: "https://youtu.be/abc123"})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.VideoID)
	assert.Equal(t, "Extracted Title", resp.Title)
	assert.Equal(t, "videos/key.mp4", resp.StorageKey)
	assert.Equal(t, "thumbnails/key.jpg", resp.ThumbnailKey)

	dl.AssertExpectations(t)
	store.AssertExpectations(t)
	writer.AssertExpectations(t)
}

func TestPipeline_Run_CallerMetadataWins(t *testing.T) {
	userID := 7
	asset := &downloader.Asset{
		Path:     writeAssetFile(t),
		SourceID: "abc123",
		Title:    "Extracted Title",
		Duration: 10,
	}

	dl := new(mockDownloader)
	dl.On("Download", mock.Anything, mock.Anything, mock.Anything).Return(asset, nil)

	store := new(mockStorage)
	store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	writer := new(mockWriter)
	writer.On("Create", mock.Anything, mock.MatchedBy(func(v *video.Video) bool {
		return v.Title == "Caller Title" &&
			v.Description == "caller description" &&
			len(v.Tags) == 2 && v.Tags[0] == "music" &&
			v.UploadedBy != nil && *v.UploadedBy == 7
	})).Return(&video.Video{ID: 2, Title: "Caller Title", StorageKey: "videos/key.mp4"}, nil)

	p := New(dl, store, writer, discardLogger(), WithTempDir(t.TempDir()))

	_, err := p.Run(context.Background(), job.Request{
		SourceURL:   "https://youtu.be/abc123",
		Title:       "Caller Title",
		Description: "caller description",
		Tags:        []string{"music", "live"},
		UserID:      &userID,
	})
	require.NoError(t, err)
	writer.AssertExpectations(t)
}

func TestPipeline_Run_DownloadFailure(t *testing.T) {
	dl := new(mockDownloader)
	dl.On("Download", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, downloader.ErrTimeout)

	store := new(mockStorage)
	writer := new(mockWriter)

	p := New(dl, store, writer, discardLogger(), WithTempDir(t.TempDir()))

	_, err := p.Run(context.Background(), job.Request{SourceURL: "https://youtu.be/abc123"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, downloader.ErrTimeout))
	assert.True(t, strings.HasPrefix(err.Error(), "download: "))

	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	writer.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPipeline_Run_UploadFailure(t *testing.T) {
	asset := &downloader.Asset{Path: writeAssetFile(t), SourceID: "abc123", Title: "Test"}

	dl := new(mockDownloader)
	dl.On("Download", mock.Anything, mock.Anything, mock.Anything).Return(asset, nil)

	store := new(mockStorage)
	store.On("Put", mock.Anything, hasKeyPrefix("videos/"), "video/mp4", mock.Anything).
		Return(errors.New("bucket unavailable"))

	writer := new(mockWriter)

	p := New(dl, store, writer, discardLogger(), WithTempDir(t.TempDir()))

	_, err := p.Run(context.Background(), job.Request{SourceURL: "https://youtu.be/abc123"})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "upload: storage failure: "))

	writer.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPipeline_Run_MetadataConflict(t *testing.T) {
	asset := &downloader.Asset{Path: writeAssetFile(t), SourceID: "abc123", Title: "Test"}

	dl := new(mockDownloader)
	dl.On("Download", mock.Anything, mock.Anything, mock.Anything).Return(asset, nil)

	store := new(mockStorage)
	store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	writer := new(mockWriter)
	writer.On("Create", mock.Anything, mock.Anything).Return(nil, video.ErrDuplicateStorageKey)

	p := New(dl, store, writer, discardLogger(), WithTempDir(t.TempDir()))

	_, err := p.Run(context.Background(), job.Request{SourceURL: "https://youtu.be/abc123"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, video.ErrDuplicateStorageKey))
	assert.True(t, strings.HasPrefix(err.Error(), "metadata: storage conflict: "))
}

func TestPipeline_Run_ThumbnailFailureIsNotFatal(t *testing.T) {
	thumbSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer thumbSrv.Close()

	asset := &downloader.Asset{
		Path:         writeAssetFile(t),
		SourceID:     "abc123",
		Title:        "Test",
		ThumbnailURL: thumbSrv.URL + "/broken.jpg",
	}

	dl := new(mockDownloader)
	dl.On("Download", mock.Anything, mock.Anything, mock.Anything).Return(asset, nil)

	store := new(mockStorage)
	store.On("Put", mock.Anything, hasKeyPrefix("videos/"), "video/mp4", mock.Anything).Return(nil)

	writer := new(mockWriter)
	writer.On("Create", mock.Anything, mock.MatchedBy(func(v *video.Video) bool {
		return v.ThumbnailKey == ""
	})).Return(&video.Video{ID: 3, Title: "Test", StorageKey: "videos/key.mp4"}, nil)

	p := New(dl, store, writer, discardLogger(), WithTempDir(t.TempDir()))

	resp, err := p.Run(context.Background(), job.Request{SourceURL: "https://youtu.be/abc123"})
	require.NoError(t, err)
	assert.Empty(t, resp.ThumbnailKey)

	store.AssertNotCalled(t, "Put", mock.Anything, hasKeyPrefix("thumbnails/"), mock.Anything, mock.Anything)
}

func TestPipeline_Run_CleansScratchDir(t *testing.T) {
	tempDir := t.TempDir()

	dl := new(mockDownloader)
	dl.On("Download", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, downloader.ErrExtraction)

	p := New(dl, new(mockStorage), new(mockWriter), discardLogger(), WithTempDir(tempDir))

	_, err := p.Run(context.Background(), job.Request{SourceURL: "https://youtu.be/abc123"})
	require.Error(t, err)

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch dirs must be removed on failure")
}
