package model

import (
	"time"

	"github.com/google/uuid"
)

// MarketAnalysis holds the derived metrics of a location. Nil pointers mean the metric is unavailable.
type MarketAnalysis struct {
	LocationID       uuid.UUID `json:"location_id" yaml:"location_id"`
	AverageDailyRate *float64  `json:"average_daily_rate" yaml:"average_daily_rate"`
	SeasonalityIndex float64   `json:"seasonality_index" yaml:"seasonality_index"`
	OccupancyRate    *float64  `json:"occupancy_rate" yaml:"occupancy_rate"`
	SampleCount      int       `json:"sample_count" yaml:"sample_count"`
	SnapshotCount    int       `json:"snapshot_count" yaml:"snapshot_count"`
	ComputedAt       time.Time `json:"computed_at" yaml:"computed_at"`
}

type JobStats struct {
	ByStatus map[JobStatus]int
}
