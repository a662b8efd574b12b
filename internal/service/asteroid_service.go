package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"asteroidradar/internal/apperr"
	"asteroidradar/internal/cache"
	"asteroidradar/internal/clients"
	"asteroidradar/internal/feed"
	"asteroidradar/internal/models"
	"asteroidradar/internal/repository"
	"asteroidradar/internal/utils"
)

const (
	OpRefreshAsteroids    = "refresh_asteroids"
	OpRefreshPictureOfDay = "refresh_picture_of_day"
	OpClearAsteroids      = "clear_asteroids"
	OpClearPictureOfDay   = "clear_picture_of_day"
	OpPruneSnapshots      = "prune_snapshots"
)

// AsteroidService keeps the local asteroid and picture cache in sync with NASA.
// Every operation returns its failure; callers log and carry on.
type AsteroidService interface {
	RefreshAsteroids(ctx context.Context) error
	RefreshPictureOfDay(ctx context.Context) error
	ClearOldAsteroids(ctx context.Context) error
	ClearOldPictureOfDay(ctx context.Context) error
	// RefreshAll runs both refreshes concurrently and waits for them.
	RefreshAll(ctx context.Context) RefreshReport
	// CleanupAll runs the clear operations, and snapshot pruning when a
	// retention is configured, concurrently.
	CleanupAll(ctx context.Context) RefreshReport

	GetAsteroids(ctx context.Context, filter models.AsteroidFilter) ([]models.Asteroid, error)
	GetPictureOfDay(ctx context.Context) (*models.PictureOfDay, error)
	WatchAsteroids(ctx context.Context, filter models.AsteroidFilter, fn func([]models.Asteroid)) (func(), error)
	WatchPictureOfDay(ctx context.Context, fn func(*models.PictureOfDay)) (func(), error)
	Status(ctx context.Context) (*Status, error)
	// LatestSnapshot returns the newest archived payload of source, or nil.
	LatestSnapshot(ctx context.Context, source string) (*models.FeedSnapshot, error)
}

type Config struct {
	FeedWindowDays int
	// MinRefreshInterval skips a refresh that already succeeded this recently.
	// Zero disables the check.
	MinRefreshInterval time.Duration
	SnapshotRetention  time.Duration
	Now                func() time.Time
}

// RefreshMarker is stored in the cache after a successful refresh.
type RefreshMarker struct {
	RunID string    `json:"run_id"`
	At    time.Time `json:"at"`
	Count int       `json:"count"`
}

// RefreshState is the state of one refresh operation as shown to clients.
type RefreshState string

const (
	StateIdle    RefreshState = "idle"
	StateLoading RefreshState = "loading"
	StateError   RefreshState = "error"
	StateDone    RefreshState = "done"
)

type Status struct {
	Asteroids           int64                `json:"asteroids"`
	PictureOfDay        *models.PictureOfDay `json:"picture_of_day"`
	LastAsteroidRefresh *RefreshMarker       `json:"last_asteroid_refresh"`
	LastPictureRefresh  *RefreshMarker       `json:"last_picture_refresh"`
	AsteroidState       RefreshState         `json:"asteroid_state"`
	PictureState        RefreshState         `json:"picture_state"`
	// Failures since the last successful refresh.
	AsteroidFailures int64 `json:"asteroid_failures"`
	PictureFailures  int64 `json:"picture_failures"`
}

type asteroidService struct {
	asteroids repository.AsteroidRepository
	pictures  repository.PictureOfDayRepository
	snapshots repository.SnapshotRepository
	cache     cache.Cache
	client    clients.NASAClient
	parser    *feed.Parser
	config    Config
	now       func() time.Time
	log       zerolog.Logger

	mu      sync.Mutex
	running map[string]int
}

func NewAsteroidService(
	asteroids repository.AsteroidRepository,
	pictures repository.PictureOfDayRepository,
	snapshots repository.SnapshotRepository,
	cache cache.Cache,
	client clients.NASAClient,
	parser *feed.Parser,
	config Config,
	log zerolog.Logger,
) AsteroidService {
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &asteroidService{
		asteroids: asteroids,
		pictures:  pictures,
		snapshots: snapshots,
		cache:     cache,
		client:    client,
		parser:    parser,
		config:    config,
		now:       now,
		log:       log.With().Str("component", "asteroid_service").Logger(),
		running:   make(map[string]int),
	}
}

func markerKey(op string) string {
	return fmt.Sprintf("refresh:%s:last_success", op)
}

func failuresKey(op string) string {
	return fmt.Sprintf("refresh:%s:failures", op)
}

func (s *asteroidService) RefreshAsteroids(ctx context.Context) error {
	_, err := s.refreshAsteroids(ctx, uuid.NewString())
	return err
}

func (s *asteroidService) RefreshPictureOfDay(ctx context.Context) error {
	_, err := s.refreshPictureOfDay(ctx, uuid.NewString())
	return err
}

func (s *asteroidService) refreshAsteroids(ctx context.Context, runID string) (bool, error) {
	return s.tracked(ctx, OpRefreshAsteroids, func(ctx context.Context) (bool, error) {
		return s.syncAsteroids(ctx, runID)
	})
}

func (s *asteroidService) refreshPictureOfDay(ctx context.Context, runID string) (bool, error) {
	return s.tracked(ctx, OpRefreshPictureOfDay, func(ctx context.Context) (bool, error) {
		return s.syncPictureOfDay(ctx, runID)
	})
}

// tracked marks op as running while fn executes and keeps the failure
// counter: a failure increments it, a completed refresh clears it.
func (s *asteroidService) tracked(ctx context.Context, op string, fn func(ctx context.Context) (bool, error)) (bool, error) {
	s.mu.Lock()
	s.running[op]++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running[op]--
		s.mu.Unlock()
	}()

	skipped, err := fn(ctx)
	switch {
	case err != nil:
		if _, cerr := s.cache.Increment(context.WithoutCancel(ctx), failuresKey(op)); cerr != nil {
			s.log.Warn().Err(cerr).Str("op", op).Msg("failed to count refresh failure")
		}
	case !skipped:
		if cerr := s.cache.Delete(ctx, failuresKey(op)); cerr != nil {
			s.log.Warn().Err(cerr).Str("op", op).Msg("failed to reset refresh failures")
		}
	}
	return skipped, err
}

func (s *asteroidService) isRunning(op string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[op] > 0
}

func (s *asteroidService) failures(ctx context.Context, op string) (int64, error) {
	val, err := s.cache.Get(ctx, failuresKey(op))
	if err != nil || val == "" {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func (s *asteroidService) refreshState(op string, marker *RefreshMarker, failures int64) RefreshState {
	switch {
	case s.isRunning(op):
		return StateLoading
	case failures > 0:
		return StateError
	case marker != nil:
		return StateDone
	default:
		return StateIdle
	}
}

func (s *asteroidService) syncAsteroids(ctx context.Context, runID string) (bool, error) {
	log := s.log.With().Str("op", OpRefreshAsteroids).Str("run_id", runID).Logger()
	if s.recentlyRefreshed(ctx, OpRefreshAsteroids) {
		log.Debug().Msg("refreshed recently, skipping")
		return true, nil
	}

	started := s.now()
	window := utils.DateWindow(started, s.config.FeedWindowDays)

	raw, err := s.client.FetchAsteroidFeed(ctx, window[0], "")
	if err != nil {
		return false, fmt.Errorf("failed to fetch asteroid feed: %w", err)
	}

	neo, err := feed.Decode(raw)
	if err != nil {
		return false, err
	}
	asteroids, err := s.parser.Parse(neo, window)
	if err != nil {
		return false, fmt.Errorf("failed to parse asteroid feed: %w", err)
	}

	if err := s.asteroids.UpsertAll(ctx, asteroids); err != nil {
		return false, err
	}

	s.archive(ctx, log, models.SnapshotSourceFeed, started, []byte(raw))
	s.markSuccess(ctx, log, OpRefreshAsteroids, runID, len(asteroids))
	if count, err := s.asteroids.Count(ctx); err == nil {
		storedAsteroids.Set(float64(count))
	}

	log.Info().
		Int("asteroids", len(asteroids)).
		Str("from", window[0]).
		Str("to", window[len(window)-1]).
		Msg("asteroid feed refreshed")
	return false, nil
}

func (s *asteroidService) syncPictureOfDay(ctx context.Context, runID string) (bool, error) {
	log := s.log.With().Str("op", OpRefreshPictureOfDay).Str("run_id", runID).Logger()
	if s.recentlyRefreshed(ctx, OpRefreshPictureOfDay) {
		log.Debug().Msg("refreshed recently, skipping")
		return true, nil
	}

	response, err := s.client.FetchPictureOfDay(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to fetch picture of day: %w", err)
	}

	now := s.now().UTC()
	picture := &models.PictureOfDay{
		URL:       response.URL,
		CreatedAt: now,
		MediaType: response.MediaType,
		Title:     response.Title,
	}
	if err := s.pictures.Upsert(ctx, picture); err != nil {
		return false, err
	}

	if payload, err := json.Marshal(response); err == nil {
		s.archive(ctx, log, models.SnapshotSourceAPOD, now, payload)
	}
	s.markSuccess(ctx, log, OpRefreshPictureOfDay, runID, 1)

	log.Info().Str("url", picture.URL).Str("media_type", picture.MediaType).Msg("picture of day refreshed")
	return false, nil
}

func (s *asteroidService) recentlyRefreshed(ctx context.Context, op string) bool {
	if s.config.MinRefreshInterval <= 0 {
		return false
	}

	marker, err := s.lastSuccess(ctx, op)
	if err != nil || marker == nil {
		return false
	}
	return s.now().Sub(marker.At) < s.config.MinRefreshInterval
}

func (s *asteroidService) lastSuccess(ctx context.Context, op string) (*RefreshMarker, error) {
	var marker RefreshMarker
	if err := s.cache.GetJSON(ctx, markerKey(op), &marker); err != nil {
		return nil, err
	}
	if marker.RunID == "" {
		return nil, nil
	}
	return &marker, nil
}

// markSuccess runs after the store write. A cache failure only costs the
// debounce, so it is logged and not returned.
func (s *asteroidService) markSuccess(ctx context.Context, log zerolog.Logger, op, runID string, count int) {
	marker := RefreshMarker{RunID: runID, At: s.now().UTC(), Count: count}
	if err := s.cache.SetJSON(ctx, markerKey(op), marker, 0); err != nil {
		log.Warn().Err(err).Msg("failed to record refresh marker")
	}
}

func (s *asteroidService) archive(ctx context.Context, log zerolog.Logger, source string, fetchedAt time.Time, payload []byte) {
	if s.snapshots == nil {
		return
	}

	snapshot := &models.FeedSnapshot{
		Source:    source,
		FetchedAt: fetchedAt.UTC(),
		Payload:   datatypes.JSON(payload),
	}
	if err := s.snapshots.Create(ctx, snapshot); err != nil {
		log.Warn().Err(err).Str("source", source).Msg("failed to archive snapshot")
	}
}

func (s *asteroidService) ClearOldAsteroids(ctx context.Context) error {
	today := utils.FormatDay(s.now())

	deleted, err := s.asteroids.DeleteOlderThan(ctx, today)
	if err != nil {
		return err
	}

	deletedRows.WithLabelValues(models.Asteroid{}.TableName()).Add(float64(deleted))
	s.log.Info().Str("op", OpClearAsteroids).Str("before", today).Int64("deleted", deleted).Msg("old asteroids cleared")
	return nil
}

func (s *asteroidService) ClearOldPictureOfDay(ctx context.Context) error {
	today := utils.FormatDay(s.now())

	deleted, err := s.pictures.DeleteOlderThan(ctx, today)
	if err != nil {
		return err
	}

	deletedRows.WithLabelValues(models.PictureOfDay{}.TableName()).Add(float64(deleted))
	s.log.Info().Str("op", OpClearPictureOfDay).Str("before", today).Int64("deleted", deleted).Msg("old pictures cleared")
	return nil
}

func (s *asteroidService) pruneSnapshots(ctx context.Context) error {
	cutoff := s.now().Add(-s.config.SnapshotRetention)

	deleted, err := s.snapshots.DeleteOld(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}

	deletedRows.WithLabelValues("feed_snapshots").Add(float64(deleted))
	s.log.Info().Str("op", OpPruneSnapshots).Time("before", cutoff).Int64("deleted", deleted).Msg("old snapshots pruned")
	return nil
}

type task struct {
	op  string
	run func(ctx context.Context) (skipped bool, err error)
}

func (s *asteroidService) RefreshAll(ctx context.Context) RefreshReport {
	runID := uuid.NewString()
	return s.runConcurrently(ctx, runID, []task{
		{op: OpRefreshAsteroids, run: func(ctx context.Context) (bool, error) { return s.refreshAsteroids(ctx, runID) }},
		{op: OpRefreshPictureOfDay, run: func(ctx context.Context) (bool, error) { return s.refreshPictureOfDay(ctx, runID) }},
	})
}

func (s *asteroidService) CleanupAll(ctx context.Context) RefreshReport {
	tasks := []task{
		{op: OpClearAsteroids, run: noSkip(s.ClearOldAsteroids)},
		{op: OpClearPictureOfDay, run: noSkip(s.ClearOldPictureOfDay)},
	}
	if s.snapshots != nil && s.config.SnapshotRetention > 0 {
		tasks = append(tasks, task{op: OpPruneSnapshots, run: noSkip(s.pruneSnapshots)})
	}
	return s.runConcurrently(ctx, uuid.NewString(), tasks)
}

func noSkip(fn func(ctx context.Context) error) func(ctx context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		return false, fn(ctx)
	}
}

func (s *asteroidService) runConcurrently(ctx context.Context, runID string, tasks []task) RefreshReport {
	report := RefreshReport{
		RunID:     runID,
		StartedAt: s.now().UTC(),
		Results:   make([]OperationResult, len(tasks)),
	}

	var wg sync.WaitGroup
	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t task) {
			defer wg.Done()

			timer := time.Now()
			skipped, err := t.run(ctx)
			report.Results[i] = s.record(t.op, runID, skipped, err, time.Since(timer))
		}(i, t)
	}
	wg.Wait()

	return report
}

func (s *asteroidService) record(op, runID string, skipped bool, err error, elapsed time.Duration) OperationResult {
	result := OperationResult{Operation: op, Skipped: skipped, Err: err}

	switch {
	case err != nil:
		result.Error = err.Error()
		result.Kind = apperr.Kind(err)
		operationsTotal.WithLabelValues(op, resultFailure).Inc()
		s.log.Error().
			Err(err).
			Str("op", op).
			Str("run_id", runID).
			Str("kind", result.Kind).
			Fields(errorContext(err)).
			Msg("operation failed")
	case skipped:
		operationsTotal.WithLabelValues(op, resultSkipped).Inc()
	default:
		operationsTotal.WithLabelValues(op, resultSuccess).Inc()
		operationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	}
	return result
}

// errorContext pulls the fields a log reader needs to find the failing input.
func errorContext(err error) map[string]interface{} {
	fields := map[string]interface{}{}

	var recErr *apperr.MalformedRecordError
	if errors.As(err, &recErr) {
		fields["date"] = recErr.Date
		fields["index"] = recErr.Index
		fields["field"] = recErr.Field
	}
	var remoteErr *apperr.RemoteError
	if errors.As(err, &remoteErr) {
		fields["status"] = remoteErr.StatusCode
	}
	return fields
}

func (s *asteroidService) GetAsteroids(ctx context.Context, filter models.AsteroidFilter) ([]models.Asteroid, error) {
	return s.asteroids.Find(ctx, filter)
}

func (s *asteroidService) GetPictureOfDay(ctx context.Context) (*models.PictureOfDay, error) {
	return s.pictures.Latest(ctx)
}

func (s *asteroidService) WatchAsteroids(ctx context.Context, filter models.AsteroidFilter, fn func([]models.Asteroid)) (func(), error) {
	return s.asteroids.Subscribe(ctx, filter, fn)
}

func (s *asteroidService) WatchPictureOfDay(ctx context.Context, fn func(*models.PictureOfDay)) (func(), error) {
	return s.pictures.Subscribe(ctx, fn)
}

func (s *asteroidService) Status(ctx context.Context) (*Status, error) {
	count, err := s.asteroids.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count asteroids: %w", err)
	}
	picture, err := s.pictures.Latest(ctx)
	if err != nil {
		return nil, err
	}

	status := &Status{Asteroids: count, PictureOfDay: picture}
	if status.LastAsteroidRefresh, err = s.lastSuccess(ctx, OpRefreshAsteroids); err != nil {
		s.log.Warn().Err(err).Msg("failed to read asteroid refresh marker")
	}
	if status.LastPictureRefresh, err = s.lastSuccess(ctx, OpRefreshPictureOfDay); err != nil {
		s.log.Warn().Err(err).Msg("failed to read picture refresh marker")
	}
	if status.AsteroidFailures, err = s.failures(ctx, OpRefreshAsteroids); err != nil {
		s.log.Warn().Err(err).Msg("failed to read asteroid refresh failures")
	}
	if status.PictureFailures, err = s.failures(ctx, OpRefreshPictureOfDay); err != nil {
		s.log.Warn().Err(err).Msg("failed to read picture refresh failures")
	}
	status.AsteroidState = s.refreshState(OpRefreshAsteroids, status.LastAsteroidRefresh, status.AsteroidFailures)
	status.PictureState = s.refreshState(OpRefreshPictureOfDay, status.LastPictureRefresh, status.PictureFailures)
	return status, nil
}

func (s *asteroidService) LatestSnapshot(ctx context.Context, source string) (*models.FeedSnapshot, error) {
	if s.snapshots == nil {
		return nil, nil
	}
	return s.snapshots.GetLatest(ctx, source)
}
