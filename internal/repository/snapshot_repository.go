package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"asteroidradar/internal/models"
)

// SnapshotRepository archives raw upstream payloads of successful fetches.
type SnapshotRepository interface {
	Create(ctx context.Context, snapshot *models.FeedSnapshot) error
	GetLatest(ctx context.Context, source string) (*models.FeedSnapshot, error)
	DeleteOld(ctx context.Context, olderThan time.Time) (int64, error)
}

type snapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) Create(ctx context.Context, snapshot *models.FeedSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

func (r *snapshotRepository) GetLatest(ctx context.Context, source string) (*models.FeedSnapshot, error) {
	var snapshot models.FeedSnapshot
	err := r.db.WithContext(ctx).
		Where("source = ?", source).
		Order("fetched_at DESC").
		First(&snapshot).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *snapshotRepository) DeleteOld(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("fetched_at < ?", olderThan.UTC()).
		Delete(&models.FeedSnapshot{})
	return result.RowsAffected, result.Error
}
