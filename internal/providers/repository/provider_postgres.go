package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	providerserrors "slotguard/internal/providers/errors"
	"slotguard/pkg/config"
	"slotguard/pkg/db"
	"slotguard/pkg/db/postgres"
	"slotguard/pkg/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresProviderRepository struct {
	cfg       *config.Config
	pool      *pgxpool.Pool
	txManager db.TransactionManager
}

func NewPostgresProviderRepository(cfg *config.Config) ProviderRepository {
	return &postgresProviderRepository{
		cfg:       cfg,
		pool:      cfg.Client.Postgres,
		txManager: postgres.NewTransactionManager(cfg.Client.Postgres),
	}
}

const selectProvider = `
SELECT id, timezone, session_duration_minutes, status, created_at, updated_at
FROM providers WHERE id = $1`

const selectAvailability = `
SELECT weekday, enabled, start_minute, end_minute
FROM provider_availability WHERE provider_id = $1`

func (r *postgresProviderRepository) Create(ctx context.Context, p *model.Provider) error {
	ctx, cancel := db.WithTimeout(ctx, r.cfg.WriteTimeout, postgres.InTransaction(ctx))
	defer cancel()

	_, err := postgres.Conn(ctx, r.pool).Exec(ctx, `
INSERT INTO providers (id, timezone, session_duration_minutes, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Timezone, p.SessionDurationMinutes, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if postgres.HasCode(err, postgres.CodeUniqueViolation) {
			return fmt.Errorf("%w: %s", providerserrors.ErrAlreadyExists, p.ID)
		}
		return fmt.Errorf("failed to create provider: %w", err)
	}
	return nil
}

func (r *postgresProviderRepository) FindByID(ctx context.Context, id string) (*model.Provider, error) {
	ctx, cancel := db.WithTimeout(ctx, r.cfg.ReadTimeout, postgres.InTransaction(ctx))
	defer cancel()
	return r.load(ctx, postgres.Conn(ctx, r.pool), id)
}

func (r *postgresProviderRepository) load(ctx context.Context, q postgres.Querier, id string) (*model.Provider, error) {
	var p model.Provider
	err := q.QueryRow(ctx, selectProvider, id).
		Scan(&p.ID, &p.Timezone, &p.SessionDurationMinutes, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", providerserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find provider: %w", err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()

	rows, err := q.Query(ctx, selectAvailability, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load availability: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			day string
			w   model.AvailabilityWindow
		)
		if err := rows.Scan(&day, &w.Enabled, &w.StartMinute, &w.EndMinute); err != nil {
			return nil, fmt.Errorf("failed to scan availability: %w", err)
		}
		if p.WeeklyAvailability == nil {
			p.WeeklyAvailability = model.WeeklyAvailability{}
		}
		p.WeeklyAvailability[model.Weekday(day)] = w
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read availability: %w", err)
	}
	return &p, nil
}

func (r *postgresProviderRepository) SaveAvailability(ctx context.Context, id string, wa model.WeeklyAvailability, at time.Time) (*model.Provider, error) {
	ctx, cancel := db.WithTimeout(ctx, r.cfg.WriteTimeout, postgres.InTransaction(ctx))
	defer cancel()

	var saved *model.Provider
	err := r.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
		q := postgres.Conn(ctx, r.pool)

		tag, err := q.Exec(ctx, `UPDATE providers SET status = $2, updated_at = $3 WHERE id = $1`,
			id, model.ProviderReady, at)
		if err != nil {
			return fmt.Errorf("failed to update provider: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", providerserrors.ErrNotFound, id)
		}

		batch := &pgx.Batch{}
		batch.Queue(`DELETE FROM provider_availability WHERE provider_id = $1`, id)
		for _, day := range model.Weekdays {
			w, ok := wa[day]
			if !ok {
				continue
			}
			batch.Queue(`
INSERT INTO provider_availability (provider_id, weekday, enabled, start_minute, end_minute)
VALUES ($1, $2, $3, $4, $5)`, id, string(day), w.Enabled, w.StartMinute, w.EndMinute)
		}
		if err := q.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to write availability: %w", err)
		}

		saved, err = r.load(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}
