package repository

import (
	"context"
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

type postgresLedger struct {
	cfg  *config.Config
	pool *pgxpool.Pool
}

func NewPostgresLedger(cfg *config.Config) Ledger {
	return &postgresLedger{cfg: cfg, pool: cfg.Client.Postgres}
}

const bookingColumns = `id, user_id, provider_id, appointment_instant, end_instant, session_type, notes,
status, rescheduled_from_instant, reschedule_count, cancellation_reason, cancelled_at, completed_at,
version, created_at, updated_at`

func (r *postgresLedger) Create(ctx context.Context, b *model.Booking) error {
	ctx, cancel := db.WithTimeout(ctx, r.cfg.WriteTimeout, postgres.InTransaction(ctx))
	defer cancel()

	_, err := postgres.Conn(ctx, r.pool).Exec(ctx, `
INSERT INTO bookings (`+bookingColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		b.ID, b.UserID, b.ProviderID, b.AppointmentInstant, b.EndInstant, b.SessionType, b.Notes,
		b.Status, b.RescheduledFromInstant, b.RescheduleCount, b.CancellationReason, b.CancelledAt, b.CompletedAt,
		b.Version, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return r.mapWriteError(err, b)
	}
	return nil
}

func (r *postgresLedger) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := db.WithTimeout(ctx, r.cfg.ReadTimeout, postgres.InTransaction(ctx))
	defer cancel()

	rows, err := postgres.Conn(ctx, r.pool).Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	b, err := pgx.CollectExactlyOneRow(rows, scanBooking)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return b, nil
}

func (r *postgresLedger) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := db.WithTimeout(ctx, r.cfg.ReadTimeout, postgres.InTransaction(ctx))
	defer cancel()

	rows, err := postgres.Conn(ctx, r.pool).Query(ctx, `
SELECT `+bookingColumns+` FROM bookings
WHERE user_id = $1
ORDER BY appointment_instant, id
LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	bookings, err := pgx.CollectRows(rows, scanBooking)
	if err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	if bookings == nil {
		bookings = []*model.Booking{}
	}
	return bookings, nil
}

func (r *postgresLedger) CountByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := db.WithTimeout(ctx, r.cfg.ReadTimeout, postgres.InTransaction(ctx))
	defer cancel()

	var count int64
	if err := postgres.Conn(ctx, r.pool).QueryRow(ctx, `SELECT count(*) FROM bookings WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *postgresLedger) Update(ctx context.Context, b *model.Booking, expectedVersion int64) error {
	ctx, cancel := db.WithTimeout(ctx, r.cfg.WriteTimeout, postgres.InTransaction(ctx))
	defer cancel()

	tag, err := postgres.Conn(ctx, r.pool).Exec(ctx, `
UPDATE bookings SET
	appointment_instant = $3, end_instant = $4, session_type = $5, notes = $6, status = $7,
	rescheduled_from_instant = $8, reschedule_count = $9, cancellation_reason = $10,
	cancelled_at = $11, completed_at = $12, updated_at = $13, version = version + 1
WHERE id = $1 AND version = $2`,
		b.ID, expectedVersion, b.AppointmentInstant, b.EndInstant, b.SessionType, b.Notes, b.Status,
		b.RescheduledFromInstant, b.RescheduleCount, b.CancellationReason,
		b.CancelledAt, b.CompletedAt, b.UpdatedAt)
	if err != nil {
		return r.mapWriteError(err, b)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s (expected version %d)", bookingserrors.ErrVersionConflict, b.ID, expectedVersion)
	}
	b.Version = expectedVersion + 1
	return nil
}

func (r *postgresLedger) FindDue(ctx context.Context, before time.Time, limit int) ([]*model.Booking, error) {
	ctx, cancel := db.WithTimeout(ctx, r.cfg.ReadTimeout, postgres.InTransaction(ctx))
	defer cancel()

	rows, err := postgres.Conn(ctx, r.pool).Query(ctx, `
SELECT `+bookingColumns+` FROM bookings
WHERE status = $1 AND end_instant <= $2
ORDER BY end_instant
LIMIT $3`, model.BookingScheduled, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find due bookings: %w", err)
	}
	bookings, err := pgx.CollectRows(rows, scanBooking)
	if err != nil {
		return nil, fmt.Errorf("failed to decode due bookings: %w", err)
	}
	if bookings == nil {
		bookings = []*model.Booking{}
	}
	return bookings, nil
}

// mapWriteError turns the exclusion constraint and the partial unique
// index into ErrSlotTaken.
func (r *postgresLedger) mapWriteError(err error, b *model.Booking) error {
	if postgres.HasCode(err, postgres.CodeExclusionViolation, postgres.CodeUniqueViolation) {
		return fmt.Errorf("%w: %s at %s", bookingserrors.ErrSlotTaken, b.ProviderID, b.AppointmentInstant.Format(time.RFC3339))
	}
	return fmt.Errorf("failed to write booking: %w", err)
}

func scanBooking(row pgx.CollectableRow) (*model.Booking, error) {
	var (
		b            model.Booking
		rescheduled  *time.Time
		cancelledAt  *time.Time
		completedAt  *time.Time
		notes        *string
		cancelReason *string
	)
	err := row.Scan(&b.ID, &b.UserID, &b.ProviderID, &b.AppointmentInstant, &b.EndInstant, &b.SessionType, &notes,
		&b.Status, &rescheduled, &b.RescheduleCount, &cancelReason, &cancelledAt, &completedAt,
		&b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if notes != nil {
		b.Notes = *notes
	}
	if cancelReason != nil {
		b.CancellationReason = *cancelReason
	}
	b.AppointmentInstant = b.AppointmentInstant.UTC()
	b.EndInstant = b.EndInstant.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	b.RescheduledFromInstant = utcPtr(rescheduled)
	b.CancelledAt = utcPtr(cancelledAt)
	b.CompletedAt = utcPtr(completedAt)
	return &b, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
