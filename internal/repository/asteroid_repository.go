package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"asteroidradar/internal/models"
	"asteroidradar/internal/utils"
)

const (
	upsertBatchSize = 200
	weekSpanDays    = 7
)

type AsteroidRepository interface {
	// UpsertAll inserts or replaces asteroids by id in a single transaction.
	UpsertAll(ctx context.Context, asteroids []models.Asteroid) error
	Find(ctx context.Context, filter models.AsteroidFilter) ([]models.Asteroid, error)
	// DeleteOlderThan removes rows whose close-approach day sorts before day.
	DeleteOlderThan(ctx context.Context, day string) (int64, error)
	Count(ctx context.Context) (int64, error)
	// Subscribe calls fn with the current result of filter, then again after
	// every committed change to the table. fn must not block.
	Subscribe(ctx context.Context, filter models.AsteroidFilter, fn func([]models.Asteroid)) (func(), error)
}

type asteroidRepository struct {
	db        *gorm.DB
	now       func() time.Time
	observers *tableObservers
}

func NewAsteroidRepository(db *gorm.DB, log zerolog.Logger, opts ...Option) AsteroidRepository {
	o := buildOptions(opts)
	return &asteroidRepository{
		db:        db,
		now:       o.now,
		observers: newTableObservers(log.With().Str("table", models.Asteroid{}.TableName()).Logger()),
	}
}

func (r *asteroidRepository) UpsertAll(ctx context.Context, asteroids []models.Asteroid) error {
	if len(asteroids) == 0 {
		return nil
	}

	rows := dedupeByID(asteroids)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).CreateInBatches(&rows, upsertBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("failed to upsert asteroids: %w", err)
	}

	r.observers.publish(ctx)
	return nil
}

// dedupeByID keeps the last occurrence of every id. Postgres rejects an
// upsert statement that touches the same row twice.
func dedupeByID(asteroids []models.Asteroid) []models.Asteroid {
	last := make(map[int64]int, len(asteroids))
	for i, a := range asteroids {
		last[a.ID] = i
	}

	rows := make([]models.Asteroid, 0, len(last))
	for i, a := range asteroids {
		if last[a.ID] == i {
			rows = append(rows, a)
		}
	}
	return rows
}

func (r *asteroidRepository) Find(ctx context.Context, filter models.AsteroidFilter) ([]models.Asteroid, error) {
	query := r.db.WithContext(ctx).Model(&models.Asteroid{})

	today := utils.StartOfDay(r.now())
	switch filter {
	case models.FilterSaved, "":
	case models.FilterToday:
		query = query.Where(`"closeApproachDate" = ?`, utils.FormatDay(today))
	case models.FilterWeek:
		query = query.Where(`"closeApproachDate" >= ? AND "closeApproachDate" <= ?`,
			utils.FormatDay(today), utils.FormatDay(today.AddDate(0, 0, weekSpanDays)))
	default:
		return nil, fmt.Errorf("unknown asteroid filter %q", filter)
	}

	asteroids := make([]models.Asteroid, 0)
	err := query.
		Order(`"closeApproachDate" ASC`).
		Order("id ASC").
		Find(&asteroids).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to query asteroids: %w", err)
	}
	return asteroids, nil
}

func (r *asteroidRepository) DeleteOlderThan(ctx context.Context, day string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where(`"closeApproachDate" < ?`, day).
		Delete(&models.Asteroid{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete asteroids before %s: %w", day, result.Error)
	}

	if result.RowsAffected > 0 {
		r.observers.publish(ctx)
	}
	return result.RowsAffected, nil
}

func (r *asteroidRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Asteroid{}).Count(&count).Error
	return count, err
}

func (r *asteroidRepository) Subscribe(ctx context.Context, filter models.AsteroidFilter, fn func([]models.Asteroid)) (func(), error) {
	if _, err := models.ParseAsteroidFilter(string(filter)); err != nil {
		return nil, err
	}

	return r.observers.add(ctx, func(ctx context.Context) error {
		asteroids, err := r.Find(ctx, filter)
		if err != nil {
			return err
		}
		fn(asteroids)
		return nil
	})
}
