package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	providerserrors "slotguard/internal/providers/errors"
	"slotguard/internal/providers/repository"
	"slotguard/internal/providers/validator"
	"slotguard/pkg/config"
	apperrors "slotguard/pkg/errors"
	"slotguard/pkg/model"
	"slotguard/pkg/sanitizer"
	"slotguard/pkg/validation"
)

type RegisterRequest struct {
	ID                     string `json:"id"`
	Timezone               string `json:"timezone"`
	SessionDurationMinutes int    `json:"sessionDurationMinutes"`
}

type AvailabilityView struct {
	ProviderID         string                   `json:"providerId"`
	Status             model.ProviderStatus     `json:"status"`
	WeeklyAvailability model.WeeklyAvailability `json:"weeklyAvailability"`
}

type ProviderService interface {
	Register(ctx context.Context, req RegisterRequest) (*model.Provider, error)
	GetByID(ctx context.Context, id string) (*model.Provider, error)
	GetAvailability(ctx context.Context, id string) (*AvailabilityView, error)
	// PutAvailability replaces the weekly availability from its raw JSON
	// form and marks the provider ready. Only the provider itself
	// (callerID == id) may change it.
	PutAvailability(ctx context.Context, callerID, id string, raw json.RawMessage) (*model.Provider, error)
}

type providerService struct {
	repo      repository.ProviderRepository
	validator *validator.ProviderValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewProviderService(
	repo repository.ProviderRepository,
	validator *validator.ProviderValidator,
	cfg *config.Config,
) ProviderService {
	return &providerService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *providerService) Register(ctx context.Context, req RegisterRequest) (*model.Provider, error) {
	now := s.now()
	p := &model.Provider{
		ID:                     sanitizer.SanitizeID(req.ID),
		Timezone:               sanitizer.SanitizeTimezone(req.Timezone),
		SessionDurationMinutes: req.SessionDurationMinutes,
		Status:                 model.ProviderPending,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if err := s.validator.Validate(p); err != nil {
		s.cfg.Log.Warn("Provider validation failed",
			"provider_id", p.ID,
			"timezone", p.Timezone,
			"error", err,
		)
		return nil, validationError("Provider validation failed", err)
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, providerserrors.ErrAlreadyExists) {
			return nil, apperrors.ProviderExists(p.ID)
		}
		s.cfg.Log.Error("Failed to register provider",
			"provider_id", p.ID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to register provider", err)
	}

	s.cfg.Log.Info("Provider registered",
		"provider_id", p.ID,
		"timezone", p.Timezone,
		"session_duration_minutes", p.SessionDurationMinutes,
	)
	return p, nil
}

func (s *providerService) GetByID(ctx context.Context, id string) (*model.Provider, error) {
	id = sanitizer.SanitizeID(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Provider ID cannot be empty")
	}

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, providerserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Provider", id)
		}
		s.cfg.Log.Error("Failed to get provider by ID",
			"provider_id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve provider", err)
	}
	return p, nil
}

func (s *providerService) GetAvailability(ctx context.Context, id string) (*AvailabilityView, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &AvailabilityView{
		ProviderID:         p.ID,
		Status:             p.Status,
		WeeklyAvailability: p.WeeklyAvailability.Complete(),
	}, nil
}

func (s *providerService) PutAvailability(ctx context.Context, callerID, id string, raw json.RawMessage) (*model.Provider, error) {
	id = sanitizer.SanitizeID(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Provider ID cannot be empty")
	}
	callerID = sanitizer.SanitizeID(callerID)
	if callerID == "" {
		return nil, apperrors.Unauthorized("Caller is not an authenticated provider")
	}
	if callerID != id {
		s.cfg.Log.Warn("Rejected availability change by another provider",
			"provider_id", id,
			"caller_id", callerID,
		)
		return nil, apperrors.Forbidden("Only the provider can change its availability")
	}

	wa, details := s.validator.ParseWeeklyAvailability(raw)
	if details != nil {
		s.cfg.Log.Warn("Rejected weekly availability",
			"provider_id", id,
			"problems", len(details),
		)
		return nil, apperrors.InvalidAvailability(details)
	}

	saved, err := s.repo.SaveAvailability(ctx, id, wa, s.now())
	if err != nil {
		if errors.Is(err, providerserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Provider", id)
		}
		s.cfg.Log.Error("Failed to save weekly availability",
			"provider_id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to save availability", err)
	}

	s.cfg.Log.Info("Weekly availability saved",
		"provider_id", id,
		"status", saved.Status,
	)
	return saved, nil
}

func validationError(message string, err error) *apperrors.AppError {
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, verrs.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}
