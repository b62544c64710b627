package repository

import (
	"context"
	"fmt"
	"time"

	providerserrors "slotguard/internal/providers/errors"
	"slotguard/pkg/db/memory"
	"slotguard/pkg/model"
)

type memoryProviderRepository struct {
	store     *memory.Store
	providers *memory.Table[*model.Provider]
}

func NewMemoryProviderRepository(store *memory.Store) ProviderRepository {
	return &memoryProviderRepository{
		store:     store,
		providers: memory.NewTable(store, cloneProvider),
	}
}

func (r *memoryProviderRepository) Create(ctx context.Context, p *model.Provider) error {
	return r.store.Run(ctx, func() error {
		if _, exists := r.providers.Get(p.ID); exists {
			return fmt.Errorf("%w: %s", providerserrors.ErrAlreadyExists, p.ID)
		}
		r.providers.Put(p.ID, p)
		return nil
	})
}

func (r *memoryProviderRepository) FindByID(ctx context.Context, id string) (*model.Provider, error) {
	var found *model.Provider
	err := r.store.Run(ctx, func() error {
		p, ok := r.providers.Get(id)
		if !ok {
			return fmt.Errorf("%w: %s", providerserrors.ErrNotFound, id)
		}
		found = p
		return nil
	})
	return found, err
}

func (r *memoryProviderRepository) SaveAvailability(ctx context.Context, id string, wa model.WeeklyAvailability, at time.Time) (*model.Provider, error) {
	var saved *model.Provider
	err := r.store.Run(ctx, func() error {
		p, ok := r.providers.Get(id)
		if !ok {
			return fmt.Errorf("%w: %s", providerserrors.ErrNotFound, id)
		}
		p.WeeklyAvailability = wa
		p.Status = model.ProviderReady
		p.UpdatedAt = at
		r.providers.Put(id, p)
		saved = p
		return nil
	})
	return saved, err
}
