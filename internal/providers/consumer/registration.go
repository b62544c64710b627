package consumer

import (
	"context"

	"slotguard/internal/providers/service"
	apperrors "slotguard/pkg/errors"
	"slotguard/pkg/kafka"
	"slotguard/pkg/logger"
)

const EventProviderRegistered = "identity.provider.registered"

// RegistrationEvent is published by the identity service once a provider
// account exists.
type RegistrationEvent struct {
	ProviderID             string `json:"providerId"`
	Timezone               string `json:"timezone"`
	SessionDurationMinutes int    `json:"sessionDurationMinutes"`
}

type RegistrationHandler struct {
	service service.ProviderService
	log     *logger.Logger
}

func NewRegistrationHandler(service service.ProviderService, log *logger.Logger) *RegistrationHandler {
	return &RegistrationHandler{service: service, log: log}
}

// Handle creates a pending provider. Redelivered registrations are
// acknowledged; payloads that can never succeed are permanent errors so
// the consumer parks them on the DLQ.
func (h *RegistrationHandler) Handle(ctx context.Context, msg kafka.Message) error {
	if eventType := msg.GetEventType(); eventType != "" && eventType != EventProviderRegistered {
		h.log.Debug("Skipping unrelated event", "event_type", eventType, "offset", msg.Offset)
		return nil
	}

	var event RegistrationEvent
	if err := msg.DecodeValue(&event); err != nil {
		return err
	}
	if event.ProviderID == "" {
		event.ProviderID = msg.Key
	}

	provider, err := h.service.Register(ctx, service.RegisterRequest{
		ID:                     event.ProviderID,
		Timezone:               event.Timezone,
		SessionDurationMinutes: event.SessionDurationMinutes,
	})
	if err == nil {
		h.log.Info("Provider registered from identity event",
			"provider_id", provider.ID,
			"event_id", msg.GetEventID(),
		)
		return nil
	}

	appErr := apperrors.AsAppError(err)
	switch appErr.Code {
	case apperrors.CodeProviderExists:
		h.log.Info("Provider already registered, acknowledging",
			"provider_id", event.ProviderID,
			"event_id", msg.GetEventID(),
		)
		return nil
	case apperrors.CodeValidation, apperrors.CodeInvalidInput:
		return kafka.NewPermanentError("invalid provider registration", err)
	default:
		return kafka.NewTransientError("provider registration failed", err)
	}
}
