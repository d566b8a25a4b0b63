package analytics

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentscope/market-planner/internal/store/model"
)

// Analyze runs every calculation over the data of one location.
func Analyze(locationID uuid.UUID, samples []model.PriceSample, snapshots []model.AvailabilitySnapshot, now time.Time) model.MarketAnalysis {
	return model.MarketAnalysis{
		LocationID:       locationID,
		AverageDailyRate: AverageDailyRate(samples),
		SeasonalityIndex: SeasonalityIndex(samples),
		OccupancyRate:    OccupancyRate(snapshots),
		SampleCount:      len(samples),
		SnapshotCount:    len(snapshots),
		ComputedAt:       now,
	}
}
