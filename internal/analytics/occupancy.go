package analytics

import "github.com/rentscope/market-planner/internal/store/model"

// OccupancyRate averages the estimated occupancy of every snapshot ever collected, not only the
// latest per property, rounded half-up to 4 decimals.
func OccupancyRate(snapshots []model.AvailabilitySnapshot) *float64 {
	if len(snapshots) == 0 {
		return nil
	}
	sum := 0.0
	for _, s := range snapshots {
		sum += s.EstimatedOccupancy()
	}
	rate := model.RoundHalfUp(sum/float64(len(snapshots)), 4)
	return &rate
}
