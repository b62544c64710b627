package repository

import (
	"context"
	"fmt"
	"time"

	bookingserrors "slotguard/internal/bookings/errors"
	"slotguard/pkg/db/memory"
	"slotguard/pkg/model"
)

type memoryProjection struct {
	store     *memory.Store
	schedules *memory.Table[*model.ProviderSchedule]
}

func NewMemoryProjection(store *memory.Store) Projection {
	return &memoryProjection{
		store:     store,
		schedules: memory.NewTable(store, (*model.ProviderSchedule).Clone),
	}
}

func (r *memoryProjection) Get(ctx context.Context, providerID string) (*model.ProviderSchedule, error) {
	var s *model.ProviderSchedule
	err := r.store.Run(ctx, func() error {
		stored, ok := r.schedules.Get(providerID)
		if !ok {
			s = model.NewProviderSchedule(providerID)
			return nil
		}
		s = stored
		return nil
	})
	return s, err
}

func (r *memoryProjection) Save(ctx context.Context, s *model.ProviderSchedule) error {
	return r.store.Run(ctx, func() error {
		var current int64
		if stored, ok := r.schedules.Get(s.ProviderID); ok {
			current = stored.Version
		}
		if current != s.Version {
			return fmt.Errorf("%w: %s (version %d, stored %d)", bookingserrors.ErrStaleSchedule, s.ProviderID, s.Version, current)
		}
		next := s.Clone()
		next.Version = s.Version + 1
		next.UpdatedAt = time.Now().UTC()
		r.schedules.Put(s.ProviderID, next)
		s.Version, s.UpdatedAt = next.Version, next.UpdatedAt
		return nil
	})
}
