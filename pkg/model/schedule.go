package model

import (
	"sort"
	"time"
)

type ScheduleEntry struct {
	BookingID          string    `json:"bookingId" bson:"booking_id"`
	UserID             string    `json:"userId" bson:"user_id"`
	AppointmentInstant time.Time `json:"appointmentInstant" bson:"appointment_instant"`
	EndInstant         time.Time `json:"endInstant" bson:"end_instant"`
	SessionType        string    `json:"sessionType" bson:"session_type"`
}

// Overlaps uses half-open intervals: back-to-back sessions do not overlap.
func (e ScheduleEntry) Overlaps(start, end time.Time) bool {
	return start.Before(e.EndInstant) && e.AppointmentInstant.Before(end)
}

// ProviderSchedule is the per-provider read view of scheduled bookings.
// Version guards concurrent rewrites of the whole document.
type ProviderSchedule struct {
	ProviderID string          `json:"providerId" bson:"_id"`
	Version    int64           `json:"version" bson:"version"`
	Entries    []ScheduleEntry `json:"entries" bson:"entries"`
	UpdatedAt  time.Time       `json:"updatedAt" bson:"updated_at"`
}

func NewProviderSchedule(providerID string) *ProviderSchedule {
	return &ProviderSchedule{ProviderID: providerID, Entries: []ScheduleEntry{}}
}

// Conflict returns the first entry overlapping [start, end), ignoring excludeID.
func (s *ProviderSchedule) Conflict(start, end time.Time, excludeID string) *ScheduleEntry {
	for i := range s.Entries {
		e := s.Entries[i]
		if e.BookingID == excludeID {
			continue
		}
		if e.Overlaps(start, end) {
			return &e
		}
	}
	return nil
}

// Upsert inserts or replaces the entry for its booking and keeps entries sorted.
func (s *ProviderSchedule) Upsert(entry ScheduleEntry) {
	s.Remove(entry.BookingID)
	s.Entries = append(s.Entries, entry)
	sort.SliceStable(s.Entries, func(i, j int) bool {
		return s.Entries[i].AppointmentInstant.Before(s.Entries[j].AppointmentInstant)
	})
}

func (s *ProviderSchedule) Remove(bookingID string) bool {
	for i, e := range s.Entries {
		if e.BookingID == bookingID {
			s.Entries = append(s.Entries[:i], s.Entries[i+1:]...)
			return true
		}
	}
	return false
}

func (s *ProviderSchedule) Find(bookingID string) (ScheduleEntry, bool) {
	for _, e := range s.Entries {
		if e.BookingID == bookingID {
			return e, true
		}
	}
	return ScheduleEntry{}, false
}

func (s *ProviderSchedule) Clone() *ProviderSchedule {
	c := *s
	c.Entries = make([]ScheduleEntry, len(s.Entries))
	copy(c.Entries, s.Entries)
	return &c
}
