package events

import (
	"context"
	"sync"
	"time"

	"slotguard/pkg/logger"
	"slotguard/pkg/model"

	"github.com/google/uuid"
)

type Type string

const (
	BookingCreated     Type = "booking.created"
	BookingCancelled   Type = "booking.cancelled"
	BookingRescheduled Type = "booking.rescheduled"
	BookingCompleted   Type = "booking.completed"
)

const (
	SchemaVersion = "1"
	Source        = "slotguard.bookings"
)

type Event struct {
	EventID            string     `json:"eventId"`
	Type               Type       `json:"type"`
	BookingID          string     `json:"bookingId"`
	ProviderID         string     `json:"providerId"`
	UserID             string     `json:"userId"`
	AppointmentInstant time.Time  `json:"appointmentInstant"`
	PreviousInstant    *time.Time `json:"previousInstant,omitempty"`
	Reason             string     `json:"reason,omitempty"`
	OccurredAt         time.Time  `json:"occurredAt"`
}

func New(t Type, b *model.Booking, at time.Time) Event {
	e := Event{
		EventID:            uuid.NewString(),
		Type:               t,
		BookingID:          b.ID,
		ProviderID:         b.ProviderID,
		UserID:             b.UserID,
		AppointmentInstant: b.AppointmentInstant,
		OccurredAt:         at.UTC(),
	}
	switch t {
	case BookingRescheduled:
		if b.RescheduledFromInstant != nil {
			prev := *b.RescheduledFromInstant
			e.PreviousInstant = &prev
		}
	case BookingCancelled:
		e.Reason = b.CancellationReason
	}
	return e
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// LogPublisher stands in for a broker when Kafka is disabled.
type LogPublisher struct {
	log *logger.Logger
}

func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	p.log.Info("Booking event",
		"event_id", e.EventID,
		"event_type", e.Type,
		"booking_id", e.BookingID,
		"provider_id", e.ProviderID,
		"appointment_instant", e.AppointmentInstant,
	)
	return nil
}

// Dispatcher publishes events after the request has been answered.
// Failures are logged and never reach the caller.
type Dispatcher struct {
	publisher Publisher
	log       *logger.Logger
	timeout   time.Duration
	wg        sync.WaitGroup
}

func NewDispatcher(publisher Publisher, timeout time.Duration, log *logger.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{publisher: publisher, log: log, timeout: timeout}
}

func (d *Dispatcher) Dispatch(ctx context.Context, e Event) {
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		if err := d.publisher.Publish(ctx, e); err != nil {
			d.log.Error("Failed to publish booking event",
				"event_id", e.EventID,
				"event_type", e.Type,
				"booking_id", e.BookingID,
				"error", err,
			)
		}
	}()
}

// Wait blocks until in-flight events are published or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
