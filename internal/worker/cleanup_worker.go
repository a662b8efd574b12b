package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"asteroidradar/internal/service"
)

const cleanupTimeout = 2 * time.Minute

// Cleaner is the part of the service the cleanup worker drives.
type Cleaner interface {
	CleanupAll(ctx context.Context) service.RefreshReport
}

// CleanupWorker drops stale rows on a cron schedule evaluated in UTC.
type CleanupWorker struct {
	cleaner  Cleaner
	schedule string
	cron     *cron.Cron
	log      zerolog.Logger

	mu      sync.Mutex
	running bool
}

func NewCleanupWorker(cleaner Cleaner, schedule string, log zerolog.Logger) (*CleanupWorker, error) {
	w := &CleanupWorker{
		cleaner:  cleaner,
		schedule: schedule,
		cron:     cron.New(cron.WithLocation(time.UTC)),
		log:      log.With().Str("worker", "cleanup").Logger(),
	}

	if _, err := w.cron.AddFunc(schedule, w.cleanup); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	return w, nil
}

func (w *CleanupWorker) Name() string { return "cleanup" }

func (w *CleanupWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}
	w.running = true
	w.cron.Start()

	w.log.Info().Str("schedule", w.schedule).Msg("cleanup worker started")
}

// Stop waits for a cleanup that is already running.
func (w *CleanupWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	<-w.cron.Stop().Done()
	w.log.Info().Msg("cleanup worker stopped")
}

func (w *CleanupWorker) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	report := w.cleaner.CleanupAll(ctx)
	w.log.Info().
		Str("run_id", report.RunID).
		Int("operations", len(report.Results)).
		Int("failed", report.Failed()).
		Msg("cleanup run completed")
}
