package scheduling

import (
	"time"

	"slotguard/pkg/model"
)

// Interval is a held session [Start, End).
type Interval struct {
	BookingID string
	Start     time.Time
	End       time.Time
}

func (i Interval) Overlaps(start, end time.Time) bool {
	return start.Before(i.End) && i.Start.Before(end)
}

func overlapsAny(busy []Interval, start, end time.Time, excludingID string) bool {
	for _, b := range busy {
		if excludingID != "" && b.BookingID == excludingID {
			continue
		}
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// BusyIntervals converts projection entries into finder intervals.
func BusyIntervals(entries []model.ScheduleEntry) []Interval {
	busy := make([]Interval, 0, len(entries))
	for _, e := range entries {
		busy = append(busy, Interval{BookingID: e.BookingID, Start: e.AppointmentInstant, End: e.EndInstant})
	}
	return busy
}
