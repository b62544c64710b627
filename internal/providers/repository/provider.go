package repository

import (
	"context"
	"time"

	"slotguard/pkg/config"
	"slotguard/pkg/db/memory"
	"slotguard/pkg/model"
)

const CollectionName = "providers"

type ProviderRepository interface {
	Create(ctx context.Context, p *model.Provider) error
	FindByID(ctx context.Context, id string) (*model.Provider, error)
	// SaveAvailability replaces the weekly availability and marks the
	// provider ready.
	SaveAvailability(ctx context.Context, id string, wa model.WeeklyAvailability, at time.Time) (*model.Provider, error)
}

// NewProviderRepository picks the implementation for cfg.StoreDriver.
// store is only used by the memory driver.
func NewProviderRepository(cfg *config.Config, store *memory.Store) ProviderRepository {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return NewPostgresProviderRepository(cfg)
	case config.DriverMemory:
		return NewMemoryProviderRepository(store)
	default:
		return NewMongoProviderRepository(cfg)
	}
}

func cloneProvider(p *model.Provider) *model.Provider {
	c := *p
	if p.WeeklyAvailability != nil {
		c.WeeklyAvailability = make(model.WeeklyAvailability, len(p.WeeklyAvailability))
		for d, w := range p.WeeklyAvailability {
			c.WeeklyAvailability[d] = w
		}
	}
	return &c
}
