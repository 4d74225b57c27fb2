// Package worker provides the fixed-size pool that claims pending jobs and
// drives them through the ingestion pipeline. The store's conditional claim
// is the only synchronization between workers; each worker owns at most one
// job at a time, so the pool size bounds concurrent downloads.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/clipvault/ingest-api/internal/job"
	"github.com/clipvault/ingest-api/internal/pipeline"
)

// DefaultPollInterval is how long an idle worker waits before re-checking
// the store for pending jobs.
const DefaultPollInterval = 100 * time.Millisecond

// Pool is a fixed-size set of workers polling the job store.
type Pool struct {
	store        job.Store
	runner       pipeline.Runner
	size         int
	pollInterval time.Duration
	logger       *slog.Logger

	wg     sync.WaitGroup
	stopCh chan struct{}
	once   sync.Once
}

// Option is a function that configures a Pool.
type Option func(*Pool)

// WithSize sets the number of workers.
func WithSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.size = n
		}
	}
}

// WithPollInterval sets the idle polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// New creates a Pool. It does not start any workers; call Start once.
func New(store job.Store, runner pipeline.Runner, logger *slog.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		store:        store,
		runner:       runner,
		size:         2,
		pollInterval: DefaultPollInterval,
		logger:       logger,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Size returns the configured worker count.
func (p *Pool) Size() int {
	return p.size
}

// Start launches the workers. Calling Start more than once has no effect.
func (p *Pool) Start() {
	p.once.Do(func() {
		for i := 0; i < p.size; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

// Shutdown stops the polling loops and waits for in-flight jobs to reach a
// terminal state. It never interrupts a running pipeline.
func (p *Pool) Shutdown() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Pool) worker(workerID int) {
	defer p.wg.Done()

	log := p.logger.With(slog.Int("worker", workerID))
	log.Debug("worker started")

	for {
		select {
		case <-p.stopCh:
			log.Debug("worker stopped")
			return
		default:
		}

		jobID, err := p.store.NextPending(context.Background())
		if err != nil {
			if !errors.Is(err, job.ErrNoPendingJobs) {
				log.Error("failed to poll for pending jobs", slog.String("error", err.Error()))
			}
			p.idle()
			continue
		}

		claimed, err := p.store.Claim(context.Background(), jobID)
		if err != nil {
			log.Error("claim failed",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
			p.idle()
			continue
		}
		if !claimed {
			// Another worker won the race; move on.
			continue
		}

		p.process(log, jobID)
	}
}

// idle waits one poll interval or until shutdown.
func (p *Pool) idle() {
	select {
	case <-p.stopCh:
	case <-time.After(p.pollInterval):
	}
}

// process runs the pipeline for a claimed job and writes the terminal
// state. Pipeline failures become a failed job, never a worker crash.
func (p *Pool) process(log *slog.Logger, jobID string) {
	ctx := context.Background()

	claimed, err := p.store.Get(ctx, jobID)
	if err != nil {
		log.Error("failed to load claimed job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}

	log.Info("processing job",
		slog.String("job_id", jobID),
		slog.String("source_url", claimed.Request.SourceURL),
	)

	resp, runErr := p.runner.Run(ctx, claimed.Request)
	if runErr != nil {
		log.Warn("job failed",
			slog.String("job_id", jobID),
			slog.String("error", runErr.Error()),
		)
		if err := p.store.Fail(ctx, jobID, runErr.Error()); err != nil {
			log.Error("failed to mark job failed",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	if err := p.store.Complete(ctx, jobID, resp); err != nil {
		log.Error("failed to mark job completed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}
	log.Info("job completed",
		slog.String("job_id", jobID),
		slog.Int("video_id", resp.VideoID),
	)
}
