package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bookingserrors "slotguard/internal/bookings/errors"
	"slotguard/pkg/config"
	"slotguard/pkg/db"
	"slotguard/pkg/db/postgres"
	"slotguard/pkg/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresProjection struct {
	cfg  *config.Config
	pool *pgxpool.Pool
}

func NewPostgresProjection(cfg *config.Config) Projection {
	return &postgresProjection{cfg: cfg, pool: cfg.Client.Postgres}
}

// Get makes sure the provider row exists and, inside a transaction, holds
// its row lock until commit so writers of one provider queue up here.
func (r *postgresProjection) Get(ctx context.Context, providerID string) (*model.ProviderSchedule, error) {
	inTx := postgres.InTransaction(ctx)
	ctx, cancel := db.WithTimeout(ctx, r.cfg.ReadTimeout, inTx)
	defer cancel()

	q := postgres.Conn(ctx, r.pool)
	query := `SELECT version, entries, updated_at FROM provider_schedules WHERE provider_id = $1`
	if inTx {
		if _, err := q.Exec(ctx, `
INSERT INTO provider_schedules (provider_id, version, entries, updated_at)
VALUES ($1, 0, '[]'::jsonb, now())
ON CONFLICT (provider_id) DO NOTHING`, providerID); err != nil {
			return nil, fmt.Errorf("failed to initialize provider schedule: %w", err)
		}
		query += ` FOR UPDATE`
	}

	var (
		s   = model.NewProviderSchedule(providerID)
		raw []byte
	)
	err := q.QueryRow(ctx, query, providerID).Scan(&s.Version, &raw, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to load provider schedule: %w", err)
	}
	if err := json.Unmarshal(raw, &s.Entries); err != nil {
		return nil, fmt.Errorf("failed to decode provider schedule: %w", err)
	}
	for i := range s.Entries {
		s.Entries[i].AppointmentInstant = s.Entries[i].AppointmentInstant.UTC()
		s.Entries[i].EndInstant = s.Entries[i].EndInstant.UTC()
	}
	if s.Entries == nil {
		s.Entries = []model.ScheduleEntry{}
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

func (r *postgresProjection) Save(ctx context.Context, s *model.ProviderSchedule) error {
	ctx, cancel := db.WithTimeout(ctx, r.cfg.WriteTimeout, postgres.InTransaction(ctx))
	defer cancel()

	raw, err := json.Marshal(s.Entries)
	if err != nil {
		return fmt.Errorf("failed to encode provider schedule: %w", err)
	}

	now := time.Now().UTC()
	tag, err := postgres.Conn(ctx, r.pool).Exec(ctx, `
INSERT INTO provider_schedules AS ps (provider_id, version, entries, updated_at)
VALUES ($1, 1, $3::jsonb, $4)
ON CONFLICT (provider_id) DO UPDATE
SET entries = EXCLUDED.entries, updated_at = EXCLUDED.updated_at, version = ps.version + 1
WHERE ps.version = $2`, s.ProviderID, s.Version, raw, now)
	if err != nil {
		return fmt.Errorf("failed to save provider schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s (version %d)", bookingserrors.ErrStaleSchedule, s.ProviderID, s.Version)
	}
	s.Version++
	s.UpdatedAt = now
	return nil
}
