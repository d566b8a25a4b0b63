package model

import (
	"fmt"
	"time"
)

// DateWindow is a stay searched on a platform: check-in at Start, check-out at End.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

func NewDateWindow(start time.Time, nights int) DateWindow {
	return DateWindow{Start: start, End: start.AddDate(0, 0, nights)}
}

// Nights counts calendar dates between check-in and check-out, each date read in its own
// location, so DST changes and check-in/check-out hours do not shift the count.
func (w DateWindow) Nights() int {
	return int(calendarDate(w.End).Sub(calendarDate(w.Start)).Hours() / 24)
}

func (w DateWindow) Validate() error {
	if !w.Start.Before(w.End) {
		return fmt.Errorf("search window start %s must be before end %s", w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))
	}
	if w.Nights() < 1 {
		return fmt.Errorf("search window %s covers no night", w)
	}
	return nil
}

// UTC returns the window with both ends in UTC. Nights must be read before the conversion.
func (w DateWindow) UTC() DateWindow {
	return DateWindow{Start: w.Start.UTC(), End: w.End.UTC()}
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (w DateWindow) String() string {
	return fmt.Sprintf("%s/%s", w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))
}
