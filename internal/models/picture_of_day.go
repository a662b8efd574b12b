package models

import (
	"time"
)

// PictureOfDay is the cached Astronomy Picture of the Day. CreatedAt is the
// moment the row was written, not the APOD date.
type PictureOfDay struct {
	URL       string    `gorm:"column:url;primaryKey" json:"url"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index;autoCreateTime:false" json:"created_at"`
	MediaType string    `gorm:"column:mediaType" json:"media_type"`
	Title     string    `gorm:"column:title" json:"title"`
}

func (PictureOfDay) TableName() string {
	return "pictureOfDay"
}
