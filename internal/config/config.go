// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all configuration for the ingest service.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=5060" json:"port"`

	// Persistence settings. When DATABASE_URL is empty the service runs on
	// in-memory stores (single process, nothing survives a restart).
	DatabaseURL string `env:"DATABASE_URL" json:"-"` // Masked in JSON

	// Object storage settings. S3 is used when bucket and region are set;
	// MinIO works through S3_ENDPOINT with path-style addressing.
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON
	ObjectsDir         string `env:"OBJECTS_DIR, default=/tmp/ingest-objects" json:"objects_dir"`

	// Pipeline settings
	TempDir         string        `env:"TEMP_DIR, default=/tmp/ingest" json:"temp_dir"`
	WorkerCount     int           `env:"WORKER_COUNT, default=2" json:"worker_count"`
	PollInterval    time.Duration `env:"POLL_INTERVAL, default=100ms" json:"poll_interval"`
	DownloadTimeout time.Duration `env:"DOWNLOAD_TIMEOUT, default=10m" json:"download_timeout"`
	YtDlpPath       string        `env:"YTDLP_PATH" json:"ytdlp_path,omitempty"`
	CookiesFile     string        `env:"COOKIES_FILE" json:"cookies_file,omitempty"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// DatabaseEnabled returns true if a database connection string is provided.
func (c *Config) DatabaseEnabled() bool {
	return c.DatabaseURL != ""
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, Database: %t, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, TempDir: %s, WorkerCount: %d, PollInterval: %s, DownloadTimeout: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.DatabaseEnabled(),
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
		c.TempDir,
		c.WorkerCount,
		c.PollInterval,
		c.DownloadTimeout,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
