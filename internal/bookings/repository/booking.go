package repository

import (
	"context"
	"time"

	"slotguard/pkg/config"
	"slotguard/pkg/db"
	"slotguard/pkg/db/memory"
	mongotx "slotguard/pkg/db/mongo"
	"slotguard/pkg/db/postgres"
	"slotguard/pkg/model"
)

const (
	BookingsCollection  = "bookings"
	SchedulesCollection = "provider_schedules"
)

// Ledger is the authoritative record of every booking.
type Ledger interface {
	// Create fails with ErrSlotTaken when a storage backstop rejects the slot.
	Create(ctx context.Context, b *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	// Update replaces b when the stored version equals expectedVersion and
	// bumps b.Version. A mismatch returns ErrVersionConflict.
	Update(ctx context.Context, b *model.Booking, expectedVersion int64) error
	// FindDue lists scheduled bookings ending at or before the instant.
	FindDue(ctx context.Context, before time.Time, limit int) ([]*model.Booking, error)
}

// Projection keeps one schedule document per provider.
type Projection interface {
	// Get returns the stored schedule, or an empty one at version 0.
	Get(ctx context.Context, providerID string) (*model.ProviderSchedule, error)
	// Save writes s when the stored version still equals s.Version, then
	// bumps s.Version. A mismatch returns ErrStaleSchedule.
	Save(ctx context.Context, s *model.ProviderSchedule) error
}

type Repositories struct {
	Ledger     Ledger
	Projection Projection
	Tx         db.TransactionManager
}

// New wires the ledger, projection and transaction manager for
// cfg.StoreDriver. store is only used by the memory driver.
func New(cfg *config.Config, store *memory.Store) *Repositories {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return &Repositories{
			Ledger:     NewPostgresLedger(cfg),
			Projection: NewPostgresProjection(cfg),
			Tx:         postgres.NewTransactionManager(cfg.Client.Postgres),
		}
	case config.DriverMemory:
		return &Repositories{
			Ledger:     NewMemoryLedger(store),
			Projection: NewMemoryProjection(store),
			Tx:         store,
		}
	default:
		return &Repositories{
			Ledger:     NewMongoLedger(cfg),
			Projection: NewMongoProjection(cfg),
			Tx:         mongotx.NewTransactionManager(cfg.Client.Mongo),
		}
	}
}
