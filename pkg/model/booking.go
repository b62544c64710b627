package model

import (
	"time"
)

type BookingStatus string

const (
	BookingScheduled BookingStatus = "scheduled"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

type Booking struct {
	ID                     string        `json:"id" bson:"_id"`
	UserID                 string        `json:"userId" bson:"user_id"`
	ProviderID             string        `json:"providerId" bson:"provider_id"`
	AppointmentInstant     time.Time     `json:"appointmentInstant" bson:"appointment_instant"`
	EndInstant             time.Time     `json:"endInstant" bson:"end_instant"`
	SessionType            string        `json:"sessionType" bson:"session_type"`
	Notes                  string        `json:"notes,omitempty" bson:"notes,omitempty"`
	Status                 BookingStatus `json:"status" bson:"status"`
	RescheduledFromInstant *time.Time    `json:"rescheduledFromInstant,omitempty" bson:"rescheduled_from_instant,omitempty"`
	RescheduleCount        int           `json:"rescheduleCount" bson:"reschedule_count"`
	CancellationReason     string        `json:"cancellationReason,omitempty" bson:"cancellation_reason,omitempty"`
	CancelledAt            *time.Time    `json:"cancelledAt,omitempty" bson:"cancelled_at,omitempty"`
	CompletedAt            *time.Time    `json:"completedAt,omitempty" bson:"completed_at,omitempty"`
	Version                int64         `json:"version" bson:"version"`
	CreatedAt              time.Time     `json:"createdAt" bson:"created_at"`
	UpdatedAt              time.Time     `json:"updatedAt" bson:"updated_at"`
}

func (b *Booking) IsActive() bool {
	return b.Status == BookingScheduled
}

// Clone returns a deep copy so callers can mutate without aliasing the
// optional time pointers.
func (b *Booking) Clone() *Booking {
	c := *b
	if b.RescheduledFromInstant != nil {
		t := *b.RescheduledFromInstant
		c.RescheduledFromInstant = &t
	}
	if b.CancelledAt != nil {
		t := *b.CancelledAt
		c.CancelledAt = &t
	}
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func (b *Booking) ScheduleEntry() ScheduleEntry {
	return ScheduleEntry{
		BookingID:          b.ID,
		UserID:             b.UserID,
		AppointmentInstant: b.AppointmentInstant,
		EndInstant:         b.EndInstant,
		SessionType:        b.SessionType,
	}
}
