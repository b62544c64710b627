package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	bookingserrors "slotguard/internal/bookings/errors"
	"slotguard/pkg/db/memory"
	"slotguard/pkg/model"
)

type memoryLedger struct {
	store    *memory.Store
	bookings *memory.Table[*model.Booking]
}

func NewMemoryLedger(store *memory.Store) Ledger {
	return &memoryLedger{
		store:    store,
		bookings: memory.NewTable(store, (*model.Booking).Clone),
	}
}

func (r *memoryLedger) Create(ctx context.Context, b *model.Booking) error {
	return r.store.Run(ctx, func() error {
		if err := r.checkExclusion(b); err != nil {
			return err
		}
		r.bookings.Put(b.ID, b)
		return nil
	})
}

func (r *memoryLedger) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	var found *model.Booking
	err := r.store.Run(ctx, func() error {
		b, ok := r.bookings.Get(id)
		if !ok {
			return fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
		}
		found = b
		return nil
	})
	return found, err
}

func (r *memoryLedger) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	bookings := []*model.Booking{}
	err := r.store.Run(ctx, func() error {
		matching := r.filter(func(b *model.Booking) bool { return b.UserID == userID })
		sort.SliceStable(matching, func(i, j int) bool {
			if !matching[i].AppointmentInstant.Equal(matching[j].AppointmentInstant) {
				return matching[i].AppointmentInstant.Before(matching[j].AppointmentInstant)
			}
			return matching[i].ID < matching[j].ID
		})
		if offset >= int64(len(matching)) {
			return nil
		}
		end := int(offset) + limit
		if end > len(matching) {
			end = len(matching)
		}
		bookings = matching[offset:end]
		return nil
	})
	return bookings, err
}

func (r *memoryLedger) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.store.Run(ctx, func() error {
		count = int64(len(r.filter(func(b *model.Booking) bool { return b.UserID == userID })))
		return nil
	})
	return count, err
}

func (r *memoryLedger) Update(ctx context.Context, b *model.Booking, expectedVersion int64) error {
	return r.store.Run(ctx, func() error {
		current, ok := r.bookings.Get(b.ID)
		if !ok {
			return fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, b.ID)
		}
		if current.Version != expectedVersion {
			return fmt.Errorf("%w: %s (expected version %d)", bookingserrors.ErrVersionConflict, b.ID, expectedVersion)
		}
		if err := r.checkExclusion(b); err != nil {
			return err
		}
		next := b.Clone()
		next.Version = expectedVersion + 1
		r.bookings.Put(b.ID, next)
		b.Version = next.Version
		return nil
	})
}

func (r *memoryLedger) FindDue(ctx context.Context, before time.Time, limit int) ([]*model.Booking, error) {
	due := []*model.Booking{}
	err := r.store.Run(ctx, func() error {
		due = r.filter(func(b *model.Booking) bool {
			return b.IsActive() && !b.EndInstant.After(before)
		})
		sort.SliceStable(due, func(i, j int) bool { return due[i].EndInstant.Before(due[j].EndInstant) })
		if len(due) > limit {
			due = due[:limit]
		}
		return nil
	})
	return due, err
}

// checkExclusion mirrors the storage constraint: scheduled bookings of one
// provider never overlap.
func (r *memoryLedger) checkExclusion(b *model.Booking) error {
	if !b.IsActive() {
		return nil
	}
	for _, other := range r.bookings.Values() {
		if other.ID == b.ID || other.ProviderID != b.ProviderID || !other.IsActive() {
			continue
		}
		if b.AppointmentInstant.Before(other.EndInstant) && other.AppointmentInstant.Before(b.EndInstant) {
			return fmt.Errorf("%w: %s at %s", bookingserrors.ErrSlotTaken, b.ProviderID, b.AppointmentInstant.Format(time.RFC3339))
		}
	}
	return nil
}

func (r *memoryLedger) filter(keep func(*model.Booking) bool) []*model.Booking {
	out := []*model.Booking{}
	for _, b := range r.bookings.Values() {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}
