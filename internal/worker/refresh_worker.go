package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"asteroidradar/internal/service"
)

const (
	refreshTimeout = 60 * time.Second
	// DefaultRefreshInterval replaces an interval that is not positive.
	DefaultRefreshInterval = 6 * time.Hour
)

// Refresher is the part of the service the refresh worker drives.
type Refresher interface {
	RefreshAll(ctx context.Context) service.RefreshReport
}

// RefreshWorker refreshes the asteroid feed and the picture of the day once on
// start and then on every tick.
type RefreshWorker struct {
	refresher Refresher
	interval  time.Duration
	log       zerolog.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewRefreshWorker(refresher Refresher, interval time.Duration, log zerolog.Logger) *RefreshWorker {
	logger := log.With().Str("worker", "refresh").Logger()
	if interval <= 0 {
		logger.Warn().
			Dur("interval", interval).
			Dur("default", DefaultRefreshInterval).
			Msg("refresh interval must be positive, using default")
		interval = DefaultRefreshInterval
	}

	return &RefreshWorker{
		refresher: refresher,
		interval:  interval,
		log:       logger,
	}
}

func (w *RefreshWorker) Name() string { return "refresh" }

func (w *RefreshWorker) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.done = make(chan struct{})
	ctx, done := w.ctx, w.done
	w.mu.Unlock()

	w.log.Info().Dur("interval", w.interval).Msg("refresh worker started")

	go w.run(ctx, done)
}

func (w *RefreshWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.cancel()
	done := w.done
	w.mu.Unlock()

	<-done
	w.log.Info().Msg("refresh worker stopped")
}

func (w *RefreshWorker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	w.refresh(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.refresh(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *RefreshWorker) refresh(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, refreshTimeout)
	defer cancel()

	report := w.refresher.RefreshAll(ctx)
	w.log.Info().
		Str("run_id", report.RunID).
		Int("operations", len(report.Results)).
		Int("failed", report.Failed()).
		Msg("refresh run completed")
}
