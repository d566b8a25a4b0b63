// Package sampling plans the date windows used for longitudinal price sampling.
//
// Windows start well after the reference date, where prices move less from day to day, and are spread
// across a full year so that every season is observed.
package sampling

import (
	"time"

	"github.com/rentscope/market-planner/internal/store/model"
)

const (
	// WindowCount is the number of windows of a plan.
	WindowCount = 12
	// NightsPerWindow is the stay length searched in every window.
	NightsPerWindow = 7
	// LeadDays is the gap between the reference date and the first window.
	LeadDays = 30
	// SpacingDays is the gap between two consecutive window starts.
	SpacingDays = 30
)

// Plan returns WindowCount windows: window i starts LeadDays + SpacingDays*i days after now and lasts
// NightsPerWindow nights. The time of day of now is dropped.
func Plan(now time.Time) []model.DateWindow {
	base := day(now)
	windows := make([]model.DateWindow, 0, WindowCount)
	for i := 0; i < WindowCount; i++ {
		windows = append(windows, model.NewDateWindow(base.AddDate(0, 0, LeadDays+SpacingDays*i), NightsPerWindow))
	}
	return windows
}

// DefaultSearchRange is the single window used by jobs that need one representative price.
func DefaultSearchRange(now time.Time) model.DateWindow {
	return model.NewDateWindow(day(now).AddDate(0, 0, LeadDays), NightsPerWindow)
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
