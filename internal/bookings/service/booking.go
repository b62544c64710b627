package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	bookingserrors "slotguard/internal/bookings/errors"
	"slotguard/internal/bookings/events"
	"slotguard/internal/bookings/repository"
	"slotguard/internal/bookings/validator"
	providerserrors "slotguard/internal/providers/errors"
	providersrepo "slotguard/internal/providers/repository"
	"slotguard/internal/scheduling"
	"slotguard/pkg/config"
	"slotguard/pkg/db"
	"slotguard/pkg/db/postgres"
	apperrors "slotguard/pkg/errors"
	"slotguard/pkg/model"
	"slotguard/pkg/sanitizer"
	"slotguard/pkg/tracing"
	"slotguard/pkg/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	maxGuardAttempts  = 3
	completeBatchSize = 100
)

type BookingService interface {
	Reserve(ctx context.Context, userID string, req *model.ReserveRequest) (*model.Booking, error)
	Reschedule(ctx context.Context, userID, bookingID string, req *model.RescheduleRequest) (*model.Booking, error)
	Cancel(ctx context.Context, userID, bookingID string, req *model.CancelRequest) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error)
	ListByProvider(ctx context.Context, providerID string) (*model.ProviderSchedule, error)
	Suggest(ctx context.Context, providerID string, anchor time.Time, excludingID string) ([]time.Time, error)
	// CompleteDue marks every scheduled booking that has ended as completed.
	CompleteDue(ctx context.Context) (int, error)
}

type EventDispatcher interface {
	Dispatch(ctx context.Context, e events.Event)
}

type bookingService struct {
	ledger     repository.Ledger
	projection repository.Projection
	tx         db.TransactionManager
	providers  providersrepo.ProviderRepository
	validator  *validator.BookingValidator
	slots      *scheduling.SlotValidator
	finder     *scheduling.AlternativeFinder
	events     EventDispatcher
	cfg        *config.Config
	tracer     trace.Tracer
	now        func() time.Time
}

func NewBookingService(
	repos *repository.Repositories,
	providers providersrepo.ProviderRepository,
	validator *validator.BookingValidator,
	dispatcher EventDispatcher,
	cfg *config.Config,
) BookingService {
	s := &bookingService{
		ledger:     repos.Ledger,
		projection: repos.Projection,
		tx:         repos.Tx,
		providers:  providers,
		validator:  validator,
		events:     dispatcher,
		cfg:        cfg,
		tracer:     tracing.Tracer("slotguard/bookings"),
		now:        func() time.Time { return time.Now().UTC() },
	}

	normalizer := scheduling.NewNormalizer()
	s.slots = scheduling.NewSlotValidator(normalizer)
	s.finder = scheduling.NewAlternativeFinder(normalizer, s.slots, scheduling.FinderConfig{
		Step:   time.Duration(cfg.SlotStepMinutes) * time.Minute,
		Limit:  cfg.AlternativesLimit,
		PerDay: cfg.AlternativesPerDay,
	}, func() time.Time { return s.now() })
	return s
}

func (s *bookingService) Reserve(ctx context.Context, userID string, req *model.ReserveRequest) (b *model.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "bookings.Reserve", trace.WithAttributes(
		attribute.String("provider.id", req.ProviderID),
		attribute.String("user.id", userID),
	))
	defer func() { endSpan(span, err) }()

	if err := s.validator.ValidateUserID(userID); err != nil {
		return nil, validationError("Missing or invalid user identity", err)
	}
	s.sanitizeReserve(req)
	if err := s.validator.ValidateReserve(req); err != nil {
		s.cfg.Log.Warn("Booking request validation failed", "provider_id", req.ProviderID, "user_id", userID, "error", err)
		return nil, validationError("Booking request validation failed", err)
	}

	now := s.now()
	instant := req.AppointmentInstant.UTC().Truncate(time.Minute)
	if !instant.After(now) {
		return nil, apperrors.InvalidInput("appointmentInstant must be in the future")
	}

	provider, err := s.loadProvider(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}
	if rejection := s.slots.Validate(provider, instant); rejection != nil {
		return nil, s.rejectionError(ctx, provider, rejection, instant, "")
	}

	booking := &model.Booking{
		ID:                 uuid.NewString(),
		UserID:             userID,
		ProviderID:         provider.ID,
		AppointmentInstant: instant,
		EndInstant:         instant.Add(provider.SessionDuration()),
		SessionType:        req.SessionType,
		Notes:              req.Notes,
		Status:             model.BookingScheduled,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	span.SetAttributes(attribute.String("booking.id", booking.ID))

	err = s.guard(ctx, "Provider schedule", func(ctx context.Context) error {
		schedule, err := s.projection.Get(ctx, provider.ID)
		if err != nil {
			return err
		}
		if held := schedule.Conflict(booking.AppointmentInstant, booking.EndInstant, ""); held != nil {
			return fmt.Errorf("%w: overlaps booking %s", bookingserrors.ErrSlotTaken, held.BookingID)
		}
		if err := s.ledger.Create(ctx, booking.Clone()); err != nil {
			return err
		}
		schedule.Upsert(booking.ScheduleEntry())
		return s.projection.Save(ctx, schedule)
	})
	if err != nil {
		return nil, s.writeError(ctx, err, provider, instant, "", "reserve", booking.ID)
	}

	s.cfg.Log.Info("Booking reserved",
		"booking_id", booking.ID,
		"provider_id", booking.ProviderID,
		"user_id", userID,
		"appointment_instant", booking.AppointmentInstant,
	)
	s.events.Dispatch(ctx, events.New(events.BookingCreated, booking, now))
	return booking, nil
}

func (s *bookingService) Reschedule(ctx context.Context, userID, bookingID string, req *model.RescheduleRequest) (b *model.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "bookings.Reschedule", trace.WithAttributes(
		attribute.String("booking.id", bookingID),
		attribute.String("user.id", userID),
	))
	defer func() { endSpan(span, err) }()

	if err := s.validator.ValidateUserID(userID); err != nil {
		return nil, validationError("Missing or invalid user identity", err)
	}
	if err := s.validator.ValidateReschedule(req); err != nil {
		return nil, validationError("Reschedule request validation failed", err)
	}

	now := s.now()
	instant := req.NewAppointmentInstant.UTC().Truncate(time.Minute)
	if !instant.After(now) {
		return nil, apperrors.InvalidInput("newAppointmentInstant must be in the future")
	}

	existing, err := s.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := checkOwnedAndActive(existing, userID, "reschedule"); err != nil {
		return nil, err
	}

	provider, err := s.loadProvider(ctx, existing.ProviderID)
	if err != nil {
		return nil, err
	}
	if rejection := s.slots.Validate(provider, instant); rejection != nil {
		return nil, s.rejectionError(ctx, provider, rejection, instant, existing.ID)
	}

	var updated *model.Booking
	err = s.guard(ctx, "Booking", func(ctx context.Context) error {
		current, err := s.ledger.FindByID(ctx, existing.ID)
		if err != nil {
			return err
		}
		if err := checkOwnedAndActive(current, userID, "reschedule"); err != nil {
			return err
		}

		schedule, err := s.projection.Get(ctx, current.ProviderID)
		if err != nil {
			return err
		}
		end := instant.Add(provider.SessionDuration())
		if held := schedule.Conflict(instant, end, current.ID); held != nil {
			return fmt.Errorf("%w: overlaps booking %s", bookingserrors.ErrSlotTaken, held.BookingID)
		}

		previous := current.AppointmentInstant
		current.RescheduledFromInstant = &previous
		current.AppointmentInstant = instant
		current.EndInstant = end
		current.RescheduleCount++
		current.UpdatedAt = now
		if err := s.ledger.Update(ctx, current, current.Version); err != nil {
			return err
		}

		schedule.Upsert(current.ScheduleEntry())
		if err := s.projection.Save(ctx, schedule); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, s.writeError(ctx, err, provider, instant, existing.ID, "reschedule", existing.ID)
	}

	s.cfg.Log.Info("Booking rescheduled",
		"booking_id", updated.ID,
		"provider_id", updated.ProviderID,
		"from", *updated.RescheduledFromInstant,
		"to", updated.AppointmentInstant,
		"reschedule_count", updated.RescheduleCount,
	)
	s.events.Dispatch(ctx, events.New(events.BookingRescheduled, updated, now))
	return updated, nil
}

func (s *bookingService) Cancel(ctx context.Context, userID, bookingID string, req *model.CancelRequest) (b *model.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "bookings.Cancel", trace.WithAttributes(
		attribute.String("booking.id", bookingID),
		attribute.String("user.id", userID),
	))
	defer func() { endSpan(span, err) }()

	if err := s.validator.ValidateUserID(userID); err != nil {
		return nil, validationError("Missing or invalid user identity", err)
	}
	req.Reason = sanitizer.TrimAndNormalize(req.Reason)
	if err := s.validator.ValidateCancel(req); err != nil {
		return nil, invalidInput("Cancellation reason is invalid", err)
	}
	bookingID = sanitizer.SanitizeID(bookingID)
	if bookingID == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	now := s.now()
	var cancelled *model.Booking
	err = s.guard(ctx, "Booking", func(ctx context.Context) error {
		current, err := s.ledger.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := checkOwnedAndActive(current, userID, "cancel"); err != nil {
			return err
		}

		current.Status = model.BookingCancelled
		current.CancellationReason = req.Reason
		current.CancelledAt = &now
		current.UpdatedAt = now
		if err := s.ledger.Update(ctx, current, current.Version); err != nil {
			return err
		}

		schedule, err := s.projection.Get(ctx, current.ProviderID)
		if err != nil {
			return err
		}
		schedule.Remove(current.ID)
		if err := s.projection.Save(ctx, schedule); err != nil {
			return err
		}
		cancelled = current
		return nil
	})
	if err != nil {
		return nil, s.mapError(err, "cancel", bookingID)
	}

	s.cfg.Log.Info("Booking cancelled",
		"booking_id", cancelled.ID,
		"provider_id", cancelled.ProviderID,
		"user_id", userID,
	)
	s.events.Dispatch(ctx, events.New(events.BookingCancelled, cancelled, now))
	return cancelled, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	id = sanitizer.SanitizeID(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	b, err := s.ledger.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		s.cfg.Log.Error("Failed to get booking by ID", "booking_id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return b, nil
}

func (s *bookingService) ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if err := s.validator.ValidateUserID(userID); err != nil {
		return nil, 0, validationError("Missing or invalid user identity", err)
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var (
		count             int64
		bookings          []*model.Booking
		errCount, errFind error
		wg                sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		count, errCount = s.ledger.CountByUser(ctx, userID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "user_id", userID, "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()
	go func() {
		defer wg.Done()
		bookings, errFind = s.ledger.FindByUser(ctx, userID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "user_id", userID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return bookings, count, nil
}

func (s *bookingService) ListByProvider(ctx context.Context, providerID string) (*model.ProviderSchedule, error) {
	provider, err := s.loadProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}

	schedule, err := s.projection.Get(ctx, provider.ID)
	if err != nil {
		s.cfg.Log.Error("Failed to load provider schedule", "provider_id", provider.ID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve provider schedule", err)
	}
	return schedule, nil
}

func (s *bookingService) Suggest(ctx context.Context, providerID string, anchor time.Time, excludingID string) ([]time.Time, error) {
	if anchor.IsZero() {
		return nil, apperrors.InvalidInput("anchor instant is required")
	}
	provider, err := s.loadProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return s.alternatives(ctx, provider, anchor.UTC(), sanitizer.SanitizeID(excludingID)), nil
}

func (s *bookingService) CompleteDue(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.ledger.FindDue(ctx, now, completeBatchSize)
	if err != nil {
		return 0, fmt.Errorf("find due bookings: %w", err)
	}

	completed := 0
	var errs []error
	for _, candidate := range due {
		var done *model.Booking
		err := s.guard(ctx, "Booking", func(ctx context.Context) error {
			current, err := s.ledger.FindByID(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if !current.IsActive() || current.EndInstant.After(now) {
				done = nil
				return nil
			}

			current.Status = model.BookingCompleted
			current.CompletedAt = &now
			current.UpdatedAt = now
			if err := s.ledger.Update(ctx, current, current.Version); err != nil {
				return err
			}

			schedule, err := s.projection.Get(ctx, current.ProviderID)
			if err != nil {
				return err
			}
			schedule.Remove(current.ID)
			if err := s.projection.Save(ctx, schedule); err != nil {
				return err
			}
			done = current
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("complete booking %s: %w", candidate.ID, err))
			continue
		}
		if done == nil {
			continue
		}
		completed++
		s.events.Dispatch(ctx, events.New(events.BookingCompleted, done, now))
	}

	if completed > 0 {
		s.cfg.Log.Info("Completed finished bookings", "count", completed)
	}
	return completed, errors.Join(errs...)
}

// guard runs fn in a store transaction, retrying when a concurrent writer
// got to the provider schedule or booking first.
func (s *bookingService) guard(ctx context.Context, resource string, fn db.TransactionFunc) error {
	var err error
	for attempt := 1; attempt <= maxGuardAttempts; attempt++ {
		err = s.tx.ExecuteTransaction(ctx, fn)
		if !isRetryable(err) {
			return err
		}
		s.cfg.Log.Warn("Concurrent modification, retrying",
			"resource", resource,
			"attempt", attempt,
			"error", err,
		)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return apperrors.ConcurrentModification(resource)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, bookingserrors.ErrStaleSchedule) ||
		errors.Is(err, bookingserrors.ErrVersionConflict) ||
		postgres.HasCode(err, postgres.CodeSerializationFailure, postgres.CodeDeadlockDetected)
}

// writeError maps a failed reserve or reschedule transaction. Slot
// conflicts carry alternatives computed after the transaction ended.
func (s *bookingService) writeError(ctx context.Context, err error, p *model.Provider, instant time.Time, excludingID, op, bookingID string) error {
	if errors.Is(err, bookingserrors.ErrSlotTaken) {
		s.cfg.Log.Info("Slot conflict",
			"operation", op,
			"provider_id", p.ID,
			"appointment_instant", instant,
			"booking_id", bookingID,
		)
		return apperrors.SlotConflict(s.alternatives(ctx, p, instant, excludingID))
	}
	return s.mapError(err, op, bookingID)
}

func (s *bookingService) mapError(err error, op, bookingID string) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", bookingID)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout(fmt.Sprintf("Booking %s timed out", op))
	default:
		s.cfg.Log.Error("Booking write failed", "operation", op, "booking_id", bookingID, "error", err)
		return apperrors.Internal(fmt.Sprintf("Failed to %s booking", op), err)
	}
}

func (s *bookingService) rejectionError(ctx context.Context, p *model.Provider, r *scheduling.Rejection, instant time.Time, excludingID string) error {
	appErr := r.AppError()
	if r.Code == apperrors.CodeInternal {
		s.cfg.Log.Error("Provider timezone cannot be resolved",
			"provider_id", p.ID,
			"timezone", p.Timezone,
		)
		return appErr
	}
	if r.Code == apperrors.CodeOutsideAvailability {
		appErr = appErr.WithDetails(map[string]any{
			"alternatives": s.alternatives(ctx, p, instant, excludingID),
		})
	}
	return appErr
}

// alternatives never fails: a projection read error yields no suggestions.
func (s *bookingService) alternatives(ctx context.Context, p *model.Provider, anchor time.Time, excludingID string) []time.Time {
	schedule, err := s.projection.Get(ctx, p.ID)
	if err != nil {
		s.cfg.Log.Warn("Failed to load schedule for alternatives", "provider_id", p.ID, "error", err)
		return []time.Time{}
	}
	return s.finder.Suggest(p, anchor, scheduling.BusyIntervals(schedule.Entries), excludingID)
}

func (s *bookingService) loadProvider(ctx context.Context, id string) (*model.Provider, error) {
	id = sanitizer.SanitizeID(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Provider ID cannot be empty")
	}
	p, err := s.providers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, providerserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Provider", id)
		}
		s.cfg.Log.Error("Failed to load provider", "provider_id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve provider", err)
	}
	return p, nil
}

func (s *bookingService) sanitizeReserve(req *model.ReserveRequest) {
	req.ProviderID = sanitizer.SanitizeID(req.ProviderID)
	req.SessionType = sanitizer.SanitizeSessionType(req.SessionType)
	req.Notes = sanitizer.TrimAndNormalize(req.Notes)
}

func checkOwnedAndActive(b *model.Booking, userID, action string) error {
	if b.UserID != userID {
		return apperrors.Forbidden(fmt.Sprintf("only the booking's user may %s it", action))
	}
	if !b.IsActive() {
		return apperrors.BookingNotActive(b.ID, string(b.Status))
	}
	return nil
}

func validationError(message string, err error) *apperrors.AppError {
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, verrs.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}

func invalidInput(message string, err error) *apperrors.AppError {
	appErr := apperrors.InvalidInput(message)
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return appErr.WithDetails(verrs.Details())
	}
	return appErr.WithDetails(map[string]any{"error": err.Error()})
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
