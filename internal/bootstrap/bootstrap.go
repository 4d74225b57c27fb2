// Package bootstrap provides dependency initialization for the ingest service.
package bootstrap

import (
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/clipvault/ingest-api/internal/config"
	"github.com/clipvault/ingest-api/internal/downloader"
	"github.com/clipvault/ingest-api/internal/job"
	"github.com/clipvault/ingest-api/internal/pipeline"
	"github.com/clipvault/ingest-api/internal/storage"
	"github.com/clipvault/ingest-api/internal/video"
	"github.com/clipvault/ingest-api/internal/worker"
)

// Dependencies holds all initialized dependencies for the service.
type Dependencies struct {
	Store    job.Store
	Pipeline *pipeline.Pipeline
	Pool     *worker.Pool
}

// NewDependencies creates and wires all dependencies for the application.
// Durable backends (Postgres, S3) are selected by configuration; without
// them the service runs entirely in-process.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, writer, err := initPersistence(cfg, logger)
	if err != nil {
		return nil, err
	}

	objects, err := initObjectStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	dl := downloader.NewYtDlp(
		downloader.WithBinaryPath(cfg.YtDlpPath),
		downloader.WithTimeout(cfg.DownloadTimeout),
		downloader.WithCookiesFile(cfg.CookiesFile),
	)

	pipe := pipeline.New(dl, objects, writer, logger,
		pipeline.WithTempDir(cfg.TempDir),
	)

	pool := worker.New(store, pipe, logger,
		worker.WithSize(cfg.WorkerCount),
		worker.WithPollInterval(cfg.PollInterval),
	)

	return &Dependencies{
		Store:    store,
		Pipeline: pipe,
		Pool:     pool,
	}, nil
}

// initPersistence selects the job store and video writer backends.
func initPersistence(cfg *config.Config, logger *slog.Logger) (job.Store, video.Writer, error) {
	if !cfg.DatabaseEnabled() {
		logger.Info("in-memory persistence configured")
		return job.NewMemoryStore(), video.NewMemoryWriter(), nil
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		// TranslateError maps driver duplicate-key errors onto
		// gorm.ErrDuplicatedKey, which the stores rely on.
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}

	store, err := job.NewGormStore(db)
	if err != nil {
		return nil, nil, fmt.Errorf("create job store: %w", err)
	}
	writer, err := video.NewGormWriter(db)
	if err != nil {
		return nil, nil, fmt.Errorf("create video writer: %w", err)
	}

	logger.Info("postgres persistence configured")
	return store, writer, nil
}

// initObjectStorage creates the object storage backend based on configuration.
func initObjectStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Store, err := storage.NewS3Storage(storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("endpoint", cfg.S3Endpoint),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.ObjectsDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local object storage configured",
		slog.String("dir", cfg.ObjectsDir),
	)
	return localStore, nil
}
