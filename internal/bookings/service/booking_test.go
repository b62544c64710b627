package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	bookingserrors "slotguard/internal/bookings/errors"
	"slotguard/internal/bookings/events"
	"slotguard/internal/bookings/repository"
	"slotguard/internal/bookings/validator"
	providersrepo "slotguard/internal/providers/repository"
	"slotguard/pkg/config"
	"slotguard/pkg/db/memory"
	apperrors "slotguard/pkg/errors"
	"slotguard/pkg/logger"
	"slotguard/pkg/model"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, e events.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
}

func (d *recordingDispatcher) types() []events.Type {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.Type, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc        *bookingService
	repos      *repository.Repositories
	providers  providersrepo.ProviderRepository
	dispatcher *recordingDispatcher
	now        time.Time
}

var testNow = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		Log:                   logger.New(logger.Config{Level: "error", Output: io.Discard, Service: "test"}),
		StoreDriver:           config.DriverMemory,
		SlotStepMinutes:       15,
		AlternativesLimit:     10,
		AlternativesPerDay:    3,
		CancelReasonMinLength: 10,
	}
	return newFixtureWith(cfg, memory.NewStore())
}

// newFixtureWith builds the service over cfg.StoreDriver; store is only
// used by the memory driver.
func newFixtureWith(cfg *config.Config, store *memory.Store) *fixture {
	repos := repository.New(cfg, store)
	providers := providersrepo.NewProviderRepository(cfg, store)
	dispatcher := &recordingDispatcher{}

	svc := NewBookingService(repos, providers, validator.NewBookingValidator(cfg.Log, cfg.CancelReasonMinLength), dispatcher, cfg).(*bookingService)
	f := &fixture{svc: svc, repos: repos, providers: providers, dispatcher: dispatcher, now: testNow}
	svc.now = func() time.Time { return f.now }
	return f
}

// addProvider registers a provider and publishes its availability, the
// same two steps the providers service takes.
func (f *fixture) addProvider(t *testing.T, id, tz string, duration int, wa model.WeeklyAvailability) {
	t.Helper()
	ctx := context.Background()
	err := f.providers.Create(ctx, &model.Provider{
		ID:                     id,
		Timezone:               tz,
		SessionDurationMinutes: duration,
		Status:                 model.ProviderPending,
		CreatedAt:              testNow,
		UpdatedAt:              testNow,
	})
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	if _, err := f.providers.SaveAvailability(ctx, id, wa.Complete(), testNow); err != nil {
		t.Fatalf("save availability: %v", err)
	}
}

func weekdayHours(start, end int) model.WeeklyAvailability {
	wa := model.WeeklyAvailability{}
	for _, d := range []model.Weekday{model.Monday, model.Tuesday, model.Wednesday, model.Thursday, model.Friday} {
		wa[d] = model.AvailabilityWindow{Enabled: true, StartMinute: start * 60, EndMinute: end * 60}
	}
	return wa
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("zoneinfo unavailable: %v", err)
	}
	return loc
}

func reserveReq(provider string, at time.Time) *model.ReserveRequest {
	return &model.ReserveRequest{ProviderID: provider, AppointmentInstant: at, SessionType: "consultation"}
}

func requireCode(t *testing.T, err error, code string) *apperrors.AppError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	appErr := apperrors.AsAppError(err)
	if appErr == nil {
		t.Fatalf("expected AppError %s, got %v", code, err)
	}
	if appErr.Code != code {
		t.Fatalf("code = %s, want %s (%v)", appErr.Code, code, err)
	}
	return appErr
}

func TestReserve_NewYorkExample(t *testing.T) {
	loc := newYork(t)
	f := newFixture(t)
	f.addProvider(t, "prov-ny", "America/New_York", 60, weekdayHours(9, 17))
	ctx := context.Background()
	monday9 := time.Date(2030, 1, 7, 9, 0, 0, 0, loc)

	first, err := f.svc.Reserve(ctx, "user-a", reserveReq("prov-ny", monday9))
	if err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if !first.AppointmentInstant.Equal(time.Date(2030, 1, 7, 14, 0, 0, 0, time.UTC)) {
		t.Errorf("appointment = %s, want 14:00 UTC", first.AppointmentInstant)
	}
	if !first.EndInstant.Equal(first.AppointmentInstant.Add(time.Hour)) {
		t.Errorf("end = %s", first.EndInstant)
	}
	if first.Status != model.BookingScheduled || first.Version != 1 {
		t.Errorf("unexpected booking state: %+v", first)
	}

	_, err = f.svc.Reserve(ctx, "user-b", reserveReq("prov-ny", monday9.Add(30*time.Minute)))
	appErr := requireCode(t, err, apperrors.CodeSlotConflict)
	if appErr.HTTPStatus != http.StatusConflict {
		t.Errorf("status = %d", appErr.HTTPStatus)
	}
	alternatives, ok := appErr.Details["alternatives"].([]time.Time)
	if !ok || len(alternatives) == 0 {
		t.Fatalf("expected alternatives, got %v", appErr.Details)
	}
	if got := alternatives[0].In(loc); got.Weekday() != time.Monday || got.Hour() != 10 {
		t.Errorf("nearest alternative = %s, want Monday 10:00", got)
	}
	for _, at := range alternatives {
		if at.Before(first.EndInstant) && first.AppointmentInstant.Before(at.Add(time.Hour)) {
			t.Errorf("alternative %s overlaps the held slot", at)
		}
	}

	second, err := f.svc.Reserve(ctx, "user-b", reserveReq("prov-ny", alternatives[0]))
	if err != nil {
		t.Fatalf("reserve alternative: %v", err)
	}

	schedule, err := f.svc.ListByProvider(ctx, "prov-ny")
	if err != nil {
		t.Fatalf("list by provider: %v", err)
	}
	if len(schedule.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(schedule.Entries))
	}
	if _, ok := schedule.Find(second.ID); !ok {
		t.Error("second booking missing from projection")
	}
}

func TestReserve_Rejections(t *testing.T) {
	loc := newYork(t)
	f := newFixture(t)
	f.addProvider(t, "prov-ny", "America/New_York", 60, weekdayHours(9, 17))
	f.addProvider(t, "prov-bad-zone", "Nowhere/Void", 60, weekdayHours(9, 17))
	if err := f.providers.Create(context.Background(), &model.Provider{
		ID: "prov-pending", Timezone: "UTC", SessionDurationMinutes: 30, Status: model.ProviderPending,
	}); err != nil {
		t.Fatalf("create pending provider: %v", err)
	}

	tests := []struct {
		name     string
		userID   string
		req      *model.ReserveRequest
		wantCode string
	}{
		{
			name:     "missing user",
			req:      reserveReq("prov-ny", time.Date(2030, 1, 7, 9, 0, 0, 0, loc)),
			wantCode: apperrors.CodeValidation,
		},
		{
			name:     "missing session type",
			userID:   "user-a",
			req:      &model.ReserveRequest{ProviderID: "prov-ny", AppointmentInstant: time.Date(2030, 1, 7, 9, 0, 0, 0, loc)},
			wantCode: apperrors.CodeValidation,
		},
		{
			name:     "instant in the past",
			userID:   "user-a",
			req:      reserveReq("prov-ny", testNow.Add(-time.Hour)),
			wantCode: apperrors.CodeInvalidInput,
		},
		{
			name:     "unknown provider",
			userID:   "user-a",
			req:      reserveReq("prov-missing", time.Date(2030, 1, 7, 9, 0, 0, 0, loc)),
			wantCode: apperrors.CodeNotFound,
		},
		{
			name:     "provider without availability",
			userID:   "user-a",
			req:      reserveReq("prov-pending", time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)),
			wantCode: apperrors.CodeProviderNotReady,
		},
		{
			name:     "stored timezone no longer resolves",
			userID:   "user-a",
			req:      reserveReq("prov-bad-zone", time.Date(2030, 1, 7, 14, 0, 0, 0, time.UTC)),
			wantCode: apperrors.CodeInternal,
		},
		{
			name:     "weekend",
			userID:   "user-a",
			req:      reserveReq("prov-ny", time.Date(2030, 1, 5, 10, 0, 0, 0, loc)),
			wantCode: apperrors.CodeOutsideAvailability,
		},
		{
			name:     "after window end",
			userID:   "user-a",
			req:      reserveReq("prov-ny", time.Date(2030, 1, 7, 17, 1, 0, 0, loc)),
			wantCode: apperrors.CodeOutsideAvailability,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Reserve(context.Background(), tt.userID, tt.req)
			requireCode(t, err, tt.wantCode)
		})
	}

	if n := len(f.dispatcher.types()); n != 0 {
		t.Errorf("rejected reservations emitted %d events", n)
	}
}

func TestReserve_OutsideAvailabilityOffersAlternatives(t *testing.T) {
	loc := newYork(t)
	f := newFixture(t)
	f.addProvider(t, "prov-ny", "America/New_York", 60, weekdayHours(9, 17))

	_, err := f.svc.Reserve(context.Background(), "user-a", reserveReq("prov-ny", time.Date(2030, 1, 7, 8, 0, 0, 0, loc)))
	appErr := requireCode(t, err, apperrors.CodeOutsideAvailability)
	alternatives, ok := appErr.Details["alternatives"].([]time.Time)
	if !ok || len(alternatives) == 0 {
		t.Fatalf("expected alternatives, got %v", appErr.Details)
	}
	if got := alternatives[0].In(loc); got.Hour() != 9 || got.Minute() != 0 {
		t.Errorf("nearest alternative = %s, want 09:00", got)
	}
}

func TestReserve_TruncatesSeconds(t *testing.T) {
	f := newFixture(t)
	f.addProvider(t, "prov-utc", "UTC", 30, weekdayHours(9, 17))

	b, err := f.svc.Reserve(context.Background(), "user-a", reserveReq("prov-utc", time.Date(2030, 1, 7, 9, 15, 42, 0, time.UTC)))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !b.AppointmentInstant.Equal(time.Date(2030, 1, 7, 9, 15, 0, 0, time.UTC)) {
		t.Errorf("appointment = %s, want 09:15:00", b.AppointmentInstant)
	}
}

func TestReserve_ConcurrentRequestsForSameSlot(t *testing.T) {
	f := newFixture(t)
	f.addProvider(t, "prov-utc", "UTC", 30, weekdayHours(9, 17))
	slot := time.Date(2030, 1, 7, 10, 0, 0, 0, time.UTC)

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			// Half the requests overlap the slot without starting on it.
			at := slot
			if i%2 == 1 {
				at = slot.Add(15 * time.Minute)
			}
			_, err := f.svc.Reserve(context.Background(), "user", reserveReq("prov-utc", at))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperrors.HasCode(err, apperrors.CodeSlotConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected errors: %v", others)
	}
	if successes != 1 || conflicts != workers-1 {
		t.Errorf("successes = %d conflicts = %d, want 1 and %d", successes, conflicts, workers-1)
	}

	schedule, err := f.svc.ListByProvider(context.Background(), "prov-utc")
	if err != nil {
		t.Fatalf("list by provider: %v", err)
	}
	if len(schedule.Entries) != 1 {
		t.Errorf("projection has %d entries, want 1", len(schedule.Entries))
	}
}

func TestReschedule(t *testing.T) {
	f := newFixture(t)
	f.addProvider(t, "prov-utc", "UTC", 30, weekdayHours(9, 17))
	ctx := context.Background()
	original := time.Date(2030, 1, 7, 10, 0, 0, 0, time.UTC)

	b, err := f.svc.Reserve(ctx, "user-a", reserveReq("prov-utc", original))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	other, err := f.svc.Reserve(ctx, "user-b", reserveReq("prov-utc", original.Add(2*time.Hour)))
	if err != nil {
		t.Fatalf("reserve other: %v", err)
	}

	t.Run("into a held slot keeps the original", func(t *testing.T) {
		_, err := f.svc.Reschedule(ctx, "user-a", b.ID, &model.RescheduleRequest{NewAppointmentInstant: other.AppointmentInstant})
		requireCode(t, err, apperrors.CodeSlotConflict)

		stored, err := f.svc.GetByID(ctx, b.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !stored.AppointmentInstant.Equal(original) || stored.RescheduleCount != 0 {
			t.Errorf("failed reschedule mutated booking: %+v", stored)
		}
	})

	t.Run("by another user", func(t *testing.T) {
		_, err := f.svc.Reschedule(ctx, "user-b", b.ID, &model.RescheduleRequest{NewAppointmentInstant: original.Add(time.Hour)})
		requireCode(t, err, apperrors.CodeForbidden)
	})

	t.Run("overlapping its own slot", func(t *testing.T) {
		target := original.Add(15 * time.Minute)
		moved, err := f.svc.Reschedule(ctx, "user-a", b.ID, &model.RescheduleRequest{NewAppointmentInstant: target})
		if err != nil {
			t.Fatalf("reschedule: %v", err)
		}
		if !moved.AppointmentInstant.Equal(target) {
			t.Errorf("appointment = %s, want %s", moved.AppointmentInstant, target)
		}
		if moved.RescheduledFromInstant == nil || !moved.RescheduledFromInstant.Equal(original) {
			t.Errorf("rescheduledFrom = %v, want %s", moved.RescheduledFromInstant, original)
		}
		if moved.RescheduleCount != 1 || moved.Version != 2 {
			t.Errorf("count = %d version = %d", moved.RescheduleCount, moved.Version)
		}

		schedule, err := f.svc.ListByProvider(ctx, "prov-utc")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		entry, ok := schedule.Find(b.ID)
		if !ok || !entry.AppointmentInstant.Equal(target) {
			t.Errorf("projection entry = %+v, want moved to %s", entry, target)
		}
		if len(schedule.Entries) != 2 {
			t.Errorf("projection has %d entries, want 2", len(schedule.Entries))
		}
	})

	t.Run("outside availability", func(t *testing.T) {
		_, err := f.svc.Reschedule(ctx, "user-a", b.ID, &model.RescheduleRequest{NewAppointmentInstant: time.Date(2030, 1, 7, 20, 0, 0, 0, time.UTC)})
		requireCode(t, err, apperrors.CodeOutsideAvailability)
	})

	t.Run("unknown booking", func(t *testing.T) {
		_, err := f.svc.Reschedule(ctx, "user-a", "missing", &model.RescheduleRequest{NewAppointmentInstant: original})
		requireCode(t, err, apperrors.CodeNotFound)
	})
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	f.addProvider(t, "prov-utc", "UTC", 30, weekdayHours(9, 17))
	ctx := context.Background()
	slot := time.Date(2030, 1, 7, 10, 0, 0, 0, time.UTC)

	b, err := f.svc.Reserve(ctx, "user-a", reserveReq("prov-utc", slot))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	_, err = f.svc.Cancel(ctx, "user-a", b.ID, &model.CancelRequest{Reason: "  too short "})
	appErr := requireCode(t, err, apperrors.CodeInvalidInput)
	if _, ok := appErr.Details["reason"]; !ok {
		t.Errorf("expected reason detail, got %v", appErr.Details)
	}

	_, err = f.svc.Cancel(ctx, "user-b", b.ID, &model.CancelRequest{Reason: "I cannot make it anymore"})
	requireCode(t, err, apperrors.CodeForbidden)

	cancelled, err := f.svc.Cancel(ctx, "user-a", b.ID, &model.CancelRequest{Reason: "  I cannot make it anymore  "})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != model.BookingCancelled || cancelled.CancelledAt == nil {
		t.Errorf("unexpected cancelled booking: %+v", cancelled)
	}
	if cancelled.CancellationReason != "I cannot make it anymore" {
		t.Errorf("reason = %q", cancelled.CancellationReason)
	}

	_, err = f.svc.Cancel(ctx, "user-a", b.ID, &model.CancelRequest{Reason: "I cannot make it anymore"})
	requireCode(t, err, apperrors.CodeBookingNotActive)

	_, err = f.svc.Reschedule(ctx, "user-a", b.ID, &model.RescheduleRequest{NewAppointmentInstant: slot.Add(time.Hour)})
	requireCode(t, err, apperrors.CodeBookingNotActive)

	// The freed slot is bookable again.
	if _, err := f.svc.Reserve(ctx, "user-b", reserveReq("prov-utc", slot)); err != nil {
		t.Fatalf("reserve freed slot: %v", err)
	}

	want := []events.Type{events.BookingCreated, events.BookingCancelled, events.BookingCreated}
	got := f.dispatcher.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestListByUser(t *testing.T) {
	f := newFixture(t)
	f.addProvider(t, "prov-utc", "UTC", 30, weekdayHours(9, 17))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		at := time.Date(2030, 1, 7, 9+i, 0, 0, 0, time.UTC)
		if _, err := f.svc.Reserve(ctx, "user-a", reserveReq("prov-utc", at)); err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
	}
	if _, err := f.svc.Reserve(ctx, "user-b", reserveReq("prov-utc", time.Date(2030, 1, 8, 9, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("reserve user-b: %v", err)
	}

	bookings, total, err := f.svc.ListByUser(ctx, "user-a", 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(bookings) != 2 {
		t.Errorf("total = %d len = %d, want 3 and 2", total, len(bookings))
	}
	for _, b := range bookings {
		if b.UserID != "user-a" {
			t.Errorf("foreign booking listed: %+v", b)
		}
	}

	_, _, err = f.svc.ListByUser(ctx, "", 10, 0)
	requireCode(t, err, apperrors.CodeValidation)
}

func TestCompleteDue(t *testing.T) {
	f := newFixture(t)
	f.addProvider(t, "prov-utc", "UTC", 30, weekdayHours(9, 17))
	ctx := context.Background()

	early, err := f.svc.Reserve(ctx, "user-a", reserveReq("prov-utc", time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("reserve early: %v", err)
	}
	late, err := f.svc.Reserve(ctx, "user-a", reserveReq("prov-utc", time.Date(2030, 1, 7, 15, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("reserve late: %v", err)
	}

	f.now = time.Date(2030, 1, 7, 9, 30, 0, 0, time.UTC)
	n, err := f.svc.CompleteDue(ctx)
	if err != nil {
		t.Fatalf("complete due: %v", err)
	}
	if n != 1 {
		t.Fatalf("completed %d bookings, want 1", n)
	}

	done, err := f.svc.GetByID(ctx, early.ID)
	if err != nil {
		t.Fatalf("get early: %v", err)
	}
	if done.Status != model.BookingCompleted || done.CompletedAt == nil {
		t.Errorf("early booking not completed: %+v", done)
	}
	pending, err := f.svc.GetByID(ctx, late.ID)
	if err != nil {
		t.Fatalf("get late: %v", err)
	}
	if pending.Status != model.BookingScheduled {
		t.Errorf("late booking status = %s", pending.Status)
	}

	schedule, err := f.svc.ListByProvider(ctx, "prov-utc")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, ok := schedule.Find(early.ID); ok {
		t.Error("completed booking still in projection")
	}

	n, err = f.svc.CompleteDue(ctx)
	if err != nil || n != 0 {
		t.Errorf("second pass completed %d (err %v), want 0", n, err)
	}
}

type staleProjection struct {
	repository.Projection
	failures int
	calls    int
}

func (p *staleProjection) Save(ctx context.Context, s *model.ProviderSchedule) error {
	p.calls++
	if p.calls <= p.failures {
		return fmt.Errorf("%w: %s", bookingserrors.ErrStaleSchedule, s.ProviderID)
	}
	return p.Projection.Save(ctx, s)
}

func TestReserve_RetriesStaleSchedule(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		wantCode string
	}{
		{name: "recovers after one conflict", failures: 1},
		{name: "gives up after repeated conflicts", failures: maxGuardAttempts, wantCode: apperrors.CodeConcurrentModification},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addProvider(t, "prov-utc", "UTC", 30, weekdayHours(9, 17))
			stale := &staleProjection{Projection: f.svc.projection, failures: tt.failures}
			f.svc.projection = stale

			_, err := f.svc.Reserve(context.Background(), "user-a", reserveReq("prov-utc", time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)))
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			appErr := requireCode(t, err, tt.wantCode)
			if appErr.HTTPStatus != http.StatusConflict {
				t.Errorf("status = %d", appErr.HTTPStatus)
			}

			// Rolled back attempts leave nothing behind.
			bookings, total, err := f.svc.ListByUser(context.Background(), "user-a", 10, 0)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if total != 0 || len(bookings) != 0 {
				t.Errorf("expected no bookings, got %d", total)
			}
		})
	}
}
