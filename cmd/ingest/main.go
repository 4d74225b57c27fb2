// Package main provides the entry point for the ingest service.
// It runs either as a long-lived API server (-server) or as a one-shot
// scraper (-url) that drives a single request through the pipeline
// synchronously, without the HTTP layer or a job row.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/clipvault/ingest-api/internal/bootstrap"
	"github.com/clipvault/ingest-api/internal/config"
	"github.com/clipvault/ingest-api/internal/job"
	"github.com/clipvault/ingest-api/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	serverMode := flag.Bool("server", false, "run the API server")
	sourceURL := flag.String("url", "", "video URL to ingest in one-shot mode")
	userID := flag.Int("user-id", 0, "user ID to associate with the video (one-shot mode)")
	cookies := flag.String("cookies", "", "path to a cookies file for yt-dlp")
	flag.Parse()

	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *cookies != "" {
		cfg.CookiesFile = *cookies
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	switch {
	case *serverMode:
		return runServer(cfg, deps, logger)
	case *sourceURL != "":
		return runOnce(cfg, deps, logger, *sourceURL, *userID)
	default:
		return errors.New("no mode selected: use -server or -url <video URL>")
	}
}

// runServer starts the worker pool and serves the ingestion gateway until
// a shutdown signal arrives.
func runServer(cfg *config.Config, deps *bootstrap.Dependencies, logger *slog.Logger) error {
	logger.Info("starting ingest API",
		slog.Int("port", cfg.Port),
		slog.Int("worker_count", deps.Pool.Size()),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
		slog.Bool("database_enabled", cfg.DatabaseEnabled()),
	)

	deps.Pool.Start()

	handlers := server.NewHandlers(deps.Store, logger)
	router := server.NewRouter(handlers, logger, server.DefaultConfig())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	// In-flight jobs finish before the process exits.
	logger.Info("waiting for workers to drain...")
	deps.Pool.Shutdown()

	logger.Info("server stopped gracefully")
	return nil
}

// runOnce ingests a single URL synchronously, bypassing the job store.
func runOnce(cfg *config.Config, deps *bootstrap.Dependencies, logger *slog.Logger, sourceURL string, userID int) error {
	logger.Info("running in one-shot mode",
		slog.String("source_url", sourceURL),
	)

	req := job.Request{SourceURL: sourceURL}
	if userID > 0 {
		req.UserID = &userID
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DownloadTimeout+5*time.Minute)
	defer cancel()

	resp, err := deps.Pipeline.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", sourceURL, err)
	}

	logger.Info("video ingested",
		slog.Int("video_id", resp.VideoID),
		slog.String("title", resp.Title),
		slog.String("storage_key", resp.StorageKey),
	)
	return nil
}
