package model

import "time"

type ReserveRequest struct {
	ProviderID         string    `json:"providerId" validate:"required,max=64,provider_id"`
	AppointmentInstant time.Time `json:"appointmentInstant" validate:"required"`
	SessionType        string    `json:"sessionType" validate:"required,max=64"`
	Notes              string    `json:"notes" validate:"max=1000"`
}

type RescheduleRequest struct {
	NewAppointmentInstant time.Time `json:"newAppointmentInstant" validate:"required"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// BookingReceipt is returned by reserve and reschedule.
type BookingReceipt struct {
	BookingID          string    `json:"bookingId"`
	AppointmentInstant time.Time `json:"appointmentInstant"`
}
