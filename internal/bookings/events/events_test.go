package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"slotguard/pkg/kafka"
	"slotguard/pkg/logger"
	"slotguard/pkg/middleware"
	"slotguard/pkg/model"
)

type fakeMessagePublisher struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (f *fakeMessagePublisher) Publish(ctx context.Context, msg kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return f.err
}

type publisherFunc func(ctx context.Context, e Event) error

func (f publisherFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

func testBooking() *model.Booking {
	prev := time.Date(2030, 1, 7, 14, 0, 0, 0, time.UTC)
	return &model.Booking{
		ID:                     "b-1",
		UserID:                 "user-1",
		ProviderID:             "prov-1",
		AppointmentInstant:     time.Date(2030, 1, 8, 14, 0, 0, 0, time.UTC),
		RescheduledFromInstant: &prev,
		CancellationReason:     "feeling unwell today",
	}
}

func TestNew_FieldsPerType(t *testing.T) {
	b := testBooking()
	at := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	rescheduled := New(BookingRescheduled, b, at)
	if rescheduled.PreviousInstant == nil || !rescheduled.PreviousInstant.Equal(*b.RescheduledFromInstant) {
		t.Errorf("rescheduled event must carry the previous instant: %+v", rescheduled)
	}
	if rescheduled.Reason != "" {
		t.Errorf("rescheduled event should not carry a reason")
	}

	cancelled := New(BookingCancelled, b, at)
	if cancelled.Reason != b.CancellationReason || cancelled.PreviousInstant != nil {
		t.Errorf("unexpected cancelled event: %+v", cancelled)
	}

	created := New(BookingCreated, b, at)
	if created.EventID == "" || created.EventID == cancelled.EventID {
		t.Error("each event needs its own id")
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	fake := &fakeMessagePublisher{}
	p := &KafkaPublisher{producer: fake}

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	e := New(BookingCreated, testBooking(), time.Now())
	if err := p.Publish(ctx, e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(fake.messages))
	}
	msg := fake.messages[0]
	if msg.Key != "prov-1" {
		t.Errorf("key = %q, want provider id", msg.Key)
	}
	if msg.GetEventType() != string(BookingCreated) || msg.GetEventID() != e.EventID {
		t.Errorf("headers = %v", msg.Headers)
	}
	if msg.GetCorrelationID() != "req-42" {
		t.Errorf("correlation id = %q", msg.GetCorrelationID())
	}

	var decoded Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.BookingID != "b-1" || decoded.Type != BookingCreated {
		t.Errorf("payload = %+v", decoded)
	}
}

func TestDispatcher_DetachesFromRequestContext(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Output: io.Discard, Service: "test"})

	var (
		mu       sync.Mutex
		received []Event
		ctxErr   error
	)
	d := NewDispatcher(publisherFunc(func(ctx context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
		ctxErr = ctx.Err()
		return nil
	}), time.Second, log)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Dispatch(ctx, New(BookingCreated, testBooking(), time.Now()))

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	if err := d.Wait(waitCtx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected one event, got %d", len(received))
	}
	if ctxErr != nil {
		t.Errorf("publish saw a cancelled context: %v", ctxErr)
	}
}

func TestDispatcher_SwallowsFailures(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Output: io.Discard, Service: "test"})
	d := NewDispatcher(publisherFunc(func(ctx context.Context, e Event) error {
		return errors.New("broker down")
	}), time.Second, log)

	d.Dispatch(context.Background(), New(BookingCompleted, testBooking(), time.Now()))
	if err := d.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
}
