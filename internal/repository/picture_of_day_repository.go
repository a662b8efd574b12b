package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"asteroidradar/internal/models"
	"asteroidradar/internal/utils"
)

type PictureOfDayRepository interface {
	// Upsert replaces the row with the same url.
	Upsert(ctx context.Context, picture *models.PictureOfDay) error
	// Latest returns the most recently written picture, or nil when the
	// table is empty.
	Latest(ctx context.Context) (*models.PictureOfDay, error)
	// DeleteOlderThan removes pictures written before the start of day (UTC).
	DeleteOlderThan(ctx context.Context, day string) (int64, error)
	Subscribe(ctx context.Context, fn func(*models.PictureOfDay)) (func(), error)
}

type pictureOfDayRepository struct {
	db        *gorm.DB
	observers *tableObservers
}

func NewPictureOfDayRepository(db *gorm.DB, log zerolog.Logger) PictureOfDayRepository {
	return &pictureOfDayRepository{
		db:        db,
		observers: newTableObservers(log.With().Str("table", models.PictureOfDay{}.TableName()).Logger()),
	}
}

func (r *pictureOfDayRepository) Upsert(ctx context.Context, picture *models.PictureOfDay) error {
	row := *picture
	row.CreatedAt = row.CreatedAt.UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "url"}},
			UpdateAll: true,
		}).Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("failed to upsert picture of day: %w", err)
	}

	r.observers.publish(ctx)
	return nil
}

func (r *pictureOfDayRepository) Latest(ctx context.Context) (*models.PictureOfDay, error) {
	var picture models.PictureOfDay
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		First(&picture).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get picture of day: %w", err)
	}
	return &picture, nil
}

func (r *pictureOfDayRepository) DeleteOlderThan(ctx context.Context, day string) (int64, error) {
	start, err := utils.ParseDay(day)
	if err != nil {
		return 0, fmt.Errorf("invalid day %q: %w", day, err)
	}

	result := r.db.WithContext(ctx).
		Where("created_at < ?", start).
		Delete(&models.PictureOfDay{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete pictures before %s: %w", day, result.Error)
	}

	if result.RowsAffected > 0 {
		r.observers.publish(ctx)
	}
	return result.RowsAffected, nil
}

func (r *pictureOfDayRepository) Subscribe(ctx context.Context, fn func(*models.PictureOfDay)) (func(), error) {
	return r.observers.add(ctx, func(ctx context.Context) error {
		picture, err := r.Latest(ctx)
		if err != nil {
			return err
		}
		fn(picture)
		return nil
	})
}
