package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	bookingserrors "slotguard/internal/bookings/errors"
	providersrepo "slotguard/internal/providers/repository"
	"slotguard/internal/storetest"
	"slotguard/pkg/config"
	"slotguard/pkg/model"

	"github.com/google/uuid"
)

var monday9 = time.Date(2030, 1, 7, 14, 0, 0, 0, time.UTC)

func seedProvider(t *testing.T, cfg *config.Config, id string) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	err := providersrepo.NewProviderRepository(cfg, nil).Create(context.Background(), &model.Provider{
		ID:                     id,
		Timezone:               "America/New_York",
		SessionDurationMinutes: 60,
		Status:                 model.ProviderPending,
		CreatedAt:              now,
		UpdatedAt:              now,
	})
	if err != nil {
		t.Fatalf("seed provider: %v", err)
	}
}

func newBooking(providerID string, start time.Time) *model.Booking {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &model.Booking{
		ID:                 uuid.NewString(),
		UserID:             "user-" + uuid.NewString()[:8],
		ProviderID:         providerID,
		AppointmentInstant: start,
		EndInstant:         start.Add(time.Hour),
		SessionType:        "consultation",
		Status:             model.BookingScheduled,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestLedger_SlotBackstop(t *testing.T) {
	for _, driver := range storetest.Drivers() {
		t.Run(driver.Name, func(t *testing.T) {
			cfg := driver.Open(t)
			repos := New(cfg, nil)
			ctx := context.Background()
			seedProvider(t, cfg, "prov-1")

			first := newBooking("prov-1", monday9)
			if err := repos.Ledger.Create(ctx, first); err != nil {
				t.Fatalf("create first booking: %v", err)
			}

			err := repos.Ledger.Create(ctx, newBooking("prov-1", monday9))
			if !errors.Is(err, bookingserrors.ErrSlotTaken) {
				t.Fatalf("same start: expected ErrSlotTaken, got %v", err)
			}

			// Only Postgres checks overlapping ranges at the ledger level;
			// Mongo relies on the projection for that.
			if driver.Name == config.DriverPostgres {
				err := repos.Ledger.Create(ctx, newBooking("prov-1", monday9.Add(30*time.Minute)))
				if !errors.Is(err, bookingserrors.ErrSlotTaken) {
					t.Fatalf("overlapping range: expected ErrSlotTaken, got %v", err)
				}
			}

			if err := repos.Ledger.Create(ctx, newBooking("prov-1", monday9.Add(time.Hour))); err != nil {
				t.Fatalf("back-to-back booking rejected: %v", err)
			}

			cancelledAt := time.Now().UTC().Truncate(time.Millisecond)
			first.Status = model.BookingCancelled
			first.CancellationReason = "client asked to cancel"
			first.CancelledAt = &cancelledAt
			if err := repos.Ledger.Update(ctx, first, first.Version); err != nil {
				t.Fatalf("cancel first booking: %v", err)
			}
			if err := repos.Ledger.Create(ctx, newBooking("prov-1", monday9)); err != nil {
				t.Fatalf("cancelled slot not released: %v", err)
			}
		})
	}
}

func TestLedger_UpdateVersionGuard(t *testing.T) {
	for _, driver := range storetest.Drivers() {
		t.Run(driver.Name, func(t *testing.T) {
			cfg := driver.Open(t)
			repos := New(cfg, nil)
			ctx := context.Background()
			seedProvider(t, cfg, "prov-1")

			b := newBooking("prov-1", monday9)
			if err := repos.Ledger.Create(ctx, b); err != nil {
				t.Fatalf("create: %v", err)
			}
			stale := b.Clone()

			b.Notes = "bring the referral letter"
			if err := repos.Ledger.Update(ctx, b, 1); err != nil {
				t.Fatalf("update: %v", err)
			}
			if b.Version != 2 {
				t.Errorf("version = %d, want 2", b.Version)
			}

			stale.Notes = "lost update"
			err := repos.Ledger.Update(ctx, stale, 1)
			if !errors.Is(err, bookingserrors.ErrVersionConflict) {
				t.Fatalf("expected ErrVersionConflict, got %v", err)
			}

			got, err := repos.Ledger.FindByID(ctx, b.ID)
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			if got.Version != 2 || got.Notes != "bring the referral letter" {
				t.Errorf("stored booking = version %d notes %q", got.Version, got.Notes)
			}

			_, err = repos.Ledger.FindByID(ctx, "missing")
			if !errors.Is(err, bookingserrors.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestProjection_VersionGuard(t *testing.T) {
	for _, driver := range storetest.Drivers() {
		t.Run(driver.Name, func(t *testing.T) {
			cfg := driver.Open(t)
			repos := New(cfg, nil)
			ctx := context.Background()

			empty, err := repos.Projection.Get(ctx, "prov-1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if empty.Version != 0 || len(empty.Entries) != 0 {
				t.Fatalf("expected empty schedule, got %+v", empty)
			}

			racer := empty.Clone()
			empty.Upsert(newBooking("prov-1", monday9).ScheduleEntry())
			if err := repos.Projection.Save(ctx, empty); err != nil {
				t.Fatalf("first save: %v", err)
			}
			if empty.Version != 1 {
				t.Errorf("version = %d, want 1", empty.Version)
			}

			racer.Upsert(newBooking("prov-1", monday9).ScheduleEntry())
			if err := repos.Projection.Save(ctx, racer); !errors.Is(err, bookingserrors.ErrStaleSchedule) {
				t.Fatalf("concurrent first save: expected ErrStaleSchedule, got %v", err)
			}

			stale := empty.Clone()
			empty.Upsert(newBooking("prov-1", monday9.Add(2*time.Hour)).ScheduleEntry())
			if err := repos.Projection.Save(ctx, empty); err != nil {
				t.Fatalf("second save: %v", err)
			}
			if err := repos.Projection.Save(ctx, stale); !errors.Is(err, bookingserrors.ErrStaleSchedule) {
				t.Fatalf("stale save: expected ErrStaleSchedule, got %v", err)
			}

			stored, err := repos.Projection.Get(ctx, "prov-1")
			if err != nil {
				t.Fatalf("reload: %v", err)
			}
			if stored.Version != 2 || len(stored.Entries) != 2 {
				t.Errorf("stored schedule = version %d with %d entries", stored.Version, len(stored.Entries))
			}
		})
	}
}

// On Postgres a transaction that reads the schedule holds its row lock
// until commit; a second writer for the same provider waits and then sees
// the committed booking. Mongo has no such lock: its transactions abort on
// write conflict, which the concurrent Reserve tests cover.
func TestPostgresProjection_RowLockSerializesWriters(t *testing.T) {
	cfg := storetest.Postgres(t)
	repos := New(cfg, nil)
	ctx := context.Background()

	holding := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- repos.Tx.ExecuteTransaction(ctx, func(ctx context.Context) error {
			s, err := repos.Projection.Get(ctx, "prov-1")
			if err != nil {
				return err
			}
			close(holding)
			<-release
			s.Upsert(newBooking("prov-1", monday9).ScheduleEntry())
			return repos.Projection.Save(ctx, s)
		})
	}()

	<-holding
	secondDone := make(chan error, 1)
	go func() {
		secondDone <- repos.Tx.ExecuteTransaction(ctx, func(ctx context.Context) error {
			s, err := repos.Projection.Get(ctx, "prov-1")
			if err != nil {
				return err
			}
			start := monday9.Add(30 * time.Minute)
			if s.Conflict(start, start.Add(time.Hour), "") != nil {
				return bookingserrors.ErrSlotTaken
			}
			s.Upsert(newBooking("prov-1", start).ScheduleEntry())
			return repos.Projection.Save(ctx, s)
		})
	}()

	select {
	case err := <-secondDone:
		close(release)
		t.Fatalf("second writer finished while the schedule was locked: %v", err)
	case <-time.After(300 * time.Millisecond):
	}
	close(release)

	if err := <-firstDone; err != nil {
		t.Fatalf("first writer: %v", err)
	}
	if err := <-secondDone; !errors.Is(err, bookingserrors.ErrSlotTaken) {
		t.Fatalf("second writer: expected ErrSlotTaken, got %v", err)
	}

	stored, err := repos.Projection.Get(ctx, "prov-1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(stored.Entries) != 1 || !stored.Entries[0].AppointmentInstant.Equal(monday9) {
		t.Errorf("schedule = %+v, want only the first booking", stored.Entries)
	}
}
