package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SnapshotSourceFeed = "neo_feed"
	SnapshotSourceAPOD = "apod"
)

// FeedSnapshot keeps the raw upstream payload of a successful fetch.
type FeedSnapshot struct {
	ID        uint           `gorm:"primaryKey"`
	Source    string         `gorm:"not null;index:idx_feed_snapshot_source_fetched,priority:1"`
	FetchedAt time.Time      `gorm:"not null;index:idx_feed_snapshot_source_fetched,priority:2"`
	Payload   datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}
