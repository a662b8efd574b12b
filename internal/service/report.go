package service

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
	resultSkipped = "skipped"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asteroidradar_operations_total",
		Help: "Refresh and cleanup operations by outcome.",
	}, []string{"operation", "result"})
	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "asteroidradar_operation_duration_seconds",
		Help:    "Duration of successful refresh and cleanup operations.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"operation"})
	deletedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asteroidradar_deleted_rows_total",
		Help: "Rows removed by cleanup, per table.",
	}, []string{"table"})
	storedAsteroids = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "asteroidradar_asteroids_stored",
		Help: "Asteroid rows after the last successful refresh.",
	})
)

type OperationResult struct {
	Operation string `json:"operation"`
	Skipped   bool   `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
	Kind      string `json:"error_kind,omitempty"`
	Err       error  `json:"-"`
}

// RefreshReport collects the outcome of one RefreshAll or CleanupAll run.
type RefreshReport struct {
	RunID     string            `json:"run_id"`
	StartedAt time.Time         `json:"started_at"`
	Results   []OperationResult `json:"results"`
}

// Err joins the failures of the run, or returns nil when every operation passed.
func (r RefreshReport) Err() error {
	var errs []error
	for _, result := range r.Results {
		if result.Err != nil {
			errs = append(errs, result.Err)
		}
	}
	return errors.Join(errs...)
}

func (r RefreshReport) Failed() int {
	failed := 0
	for _, result := range r.Results {
		if result.Err != nil {
			failed++
		}
	}
	return failed
}
