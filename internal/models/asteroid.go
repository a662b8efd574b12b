package models

import (
	"fmt"
)

// Asteroid is one near-Earth object on one close-approach date.
type Asteroid struct {
	ID                     int64   `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	Codename               string  `gorm:"column:codename;not null" json:"codename"`
	CloseApproachDate      string  `gorm:"column:closeApproachDate;type:varchar(10);not null;index" json:"close_approach_date"`
	AbsoluteMagnitude      float64 `gorm:"column:absoluteMagnitude" json:"absolute_magnitude"`
	EstimatedDiameter      float64 `gorm:"column:estimatedDiameter" json:"estimated_diameter"`
	RelativeVelocity       float64 `gorm:"column:relativeVelocity" json:"relative_velocity"`
	DistanceFromEarth      float64 `gorm:"column:distanceFromEarth" json:"distance_from_earth"`
	IsPotentiallyHazardous bool    `gorm:"column:isPotentiallyHazardous" json:"is_potentially_hazardous"`
}

func (Asteroid) TableName() string {
	return "asteroid"
}

// AsteroidFilter selects which cached asteroids a query returns.
type AsteroidFilter string

const (
	FilterSaved AsteroidFilter = "saved"
	FilterToday AsteroidFilter = "today"
	FilterWeek  AsteroidFilter = "week"
)

// ParseAsteroidFilter maps a query string value to a filter. Empty means saved.
func ParseAsteroidFilter(s string) (AsteroidFilter, error) {
	switch AsteroidFilter(s) {
	case "", FilterSaved:
		return FilterSaved, nil
	case FilterToday:
		return FilterToday, nil
	case FilterWeek:
		return FilterWeek, nil
	default:
		return "", fmt.Errorf("unknown asteroid filter %q", s)
	}
}
