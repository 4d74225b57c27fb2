// Package downloader wraps the external yt-dlp tool used to fetch videos.
// It rejects unsupported sources before invoking the tool, enforces a hard
// timeout, and classifies failures so operators can tell systemic outages
// from per-URL problems.
package downloader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Static errors for download operations. The sentinel text is the failure
// category preserved in job error strings.
var (
	// ErrUnsupportedURL is returned when the source host is not supported.
	ErrUnsupportedURL = errors.New("unsupported source URL")
	// ErrTimeout is returned when the external tool exceeds the time budget.
	ErrTimeout = errors.New("timeout")
	// ErrNetwork is returned for connectivity failures reaching the source.
	ErrNetwork = errors.New("network failure")
	// ErrExtraction is returned when the tool cannot extract or fetch the video.
	ErrExtraction = errors.New("extraction failure")
)

// DefaultTimeout bounds a single download. Without it a stuck extraction
// would pin a worker in processing indefinitely.
const DefaultTimeout = 10 * time.Minute

// Asset is a downloaded video plus the metadata extracted alongside it.
type Asset struct {
	// Path is the local file holding the downloaded video.
	Path string
	// SourceID is the video identifier on the source platform.
	SourceID string
	// Title is the extracted video title.
	Title string
	// Duration is the video length in seconds.
	Duration int
	// ThumbnailURL points at the source's thumbnail image.
	ThumbnailURL string
}

// Downloader fetches a source URL into a local asset.
type Downloader interface {
	// Download fetches the video behind sourceURL into destDir and returns
	// the local asset with its extracted metadata.
	Download(ctx context.Context, sourceURL, destDir string) (*Asset, error)
}

// YtDlp implements Downloader using the yt-dlp CLI.
type YtDlp struct {
	binaryPath  string
	timeout     time.Duration
	cookiesFile string
}

// Option is a function that configures a YtDlp downloader.
type Option func(*YtDlp)

// WithBinaryPath sets the path to the yt-dlp binary.
func WithBinaryPath(path string) Option {
	return func(d *YtDlp) {
		if path != "" {
			d.binaryPath = path
		}
	}
}

// WithTimeout sets the hard per-download time budget.
func WithTimeout(t time.Duration) Option {
	return func(d *YtDlp) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithCookiesFile passes a cookies file to yt-dlp for age-gated sources.
func WithCookiesFile(path string) Option {
	return func(d *YtDlp) {
		d.cookiesFile = path
	}
}

// NewYtDlp creates a yt-dlp downloader. The binary defaults to "yt-dlp"
// found via PATH and the timeout to DefaultTimeout.
func NewYtDlp(opts ...Option) *YtDlp {
	d := &YtDlp{
		binaryPath: "yt-dlp",
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ytdlpInfo is the subset of yt-dlp's JSON output we consume.
type ytdlpInfo struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Duration  float64 `json:"duration"`
	Ext       string  `json:"ext"`
	Thumbnail string  `json:"thumbnail"`
	Filename  string  `json:"_filename"`
}

// Download fetches the video into destDir. It refuses unsupported URLs
// before spawning the tool and converts a deadline hit into ErrTimeout.
func (d *YtDlp) Download(ctx context.Context, sourceURL, destDir string) (*Asset, error) {
	videoID, err := ExtractVideoID(sourceURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	args := []string{
		"--no-warnings",
		"--no-playlist",
		"-f", "b",
		"--print-json",
		"-o", filepath.Join(destDir, "%(id)s.%(ext)s"),
	}
	if d.cookiesFile != "" {
		args = append(args, "--cookies", d.cookiesFile)
	}
	args = append(args, sourceURL)

	cmd := exec.CommandContext(ctx, d.binaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: yt-dlp exceeded %s", ErrTimeout, d.timeout)
		}
		return nil, classify(stderr.String(), err)
	}

	var info ytdlpInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("%w: unreadable yt-dlp output: %v", ErrExtraction, err)
	}

	path := info.Filename
	if path == "" {
		ext := info.Ext
		if ext == "" {
			ext = "mp4"
		}
		path = filepath.Join(destDir, info.ID+"."+ext)
	}

	thumb := info.Thumbnail
	if thumb == "" {
		thumb = fmt.Sprintf("https://img.youtube.com/vi/%s/maxresdefault.jpg", videoID)
	}

	return &Asset{
		Path:         path,
		SourceID:     videoID,
		Title:        info.Title,
		Duration:     int(info.Duration),
		ThumbnailURL: thumb,
	}, nil
}

// networkMarkers are stderr fragments that indicate a connectivity problem
// rather than a per-URL extraction failure.
var networkMarkers = []string{
	"unable to download",
	"http error 5",
	"connection",
	"timed out",
	"temporary failure in name resolution",
	"network is unreachable",
}

// classify maps a yt-dlp failure onto the error taxonomy using its stderr.
func classify(stderr string, runErr error) error {
	msg := lastLine(stderr)
	if msg == "" {
		msg = runErr.Error()
	}
	lower := strings.ToLower(stderr)
	for _, marker := range networkMarkers {
		if strings.Contains(lower, marker) {
			return fmt.Errorf("%w: %s", ErrNetwork, msg)
		}
	}
	return fmt.Errorf("%w: %s", ErrExtraction, msg)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// ExtractVideoID pulls the video identifier out of a supported source URL.
// Supported forms are youtube.com/watch?v=ID and youtu.be/ID.
// Returns ErrUnsupportedURL for anything else.
func ExtractVideoID(sourceURL string) (string, error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedURL, sourceURL)
	}

	switch u.Host {
	case "youtu.be":
		videoID := strings.TrimPrefix(u.Path, "/")
		if i := strings.Index(videoID, "/"); i >= 0 {
			videoID = videoID[:i]
		}
		if videoID == "" {
			return "", fmt.Errorf("%w: missing video ID in %s", ErrUnsupportedURL, sourceURL)
		}
		return videoID, nil
	case "youtube.com", "www.youtube.com", "m.youtube.com":
		videoID := u.Query().Get("v")
		if videoID == "" {
			return "", fmt.Errorf("%w: missing video ID in %s", ErrUnsupportedURL, sourceURL)
		}
		return videoID, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedURL, sourceURL)
	}
}
