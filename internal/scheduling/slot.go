package scheduling

import (
	"fmt"
	"time"

	apperrors "slotguard/pkg/errors"
	"slotguard/pkg/model"
)

type RejectionReason string

const (
	ReasonProviderNotReady RejectionReason = "PROVIDER_NOT_READY"
	ReasonInvalidTimezone  RejectionReason = "INVALID_TIMEZONE"
	ReasonDayNotOffered    RejectionReason = "DAY_NOT_OFFERED"
	ReasonTimeNotOffered   RejectionReason = "TIME_NOT_OFFERED"
)

// Rejection explains why an instant is not bookable. Code is one of
// apperrors.CodeProviderNotReady, apperrors.CodeOutsideAvailability or,
// for a stored timezone that no longer resolves, apperrors.CodeInternal.
type Rejection struct {
	Code        string
	Reason      RejectionReason
	ProviderID  string
	Timezone    string
	Weekday     model.Weekday
	MinuteOfDay int
	Window      *model.AvailabilityWindow
}

func (r *Rejection) Error() string {
	switch r.Reason {
	case ReasonDayNotOffered:
		return fmt.Sprintf("provider does not accept bookings on %s", r.Weekday)
	case ReasonTimeNotOffered:
		return fmt.Sprintf("%s is outside the %s window %s-%s (%s)",
			model.FormatTimeOfDay(r.MinuteOfDay), r.Weekday,
			model.FormatTimeOfDay(r.Window.StartMinute), model.FormatTimeOfDay(r.Window.EndMinute), r.Timezone)
	case ReasonInvalidTimezone:
		return fmt.Sprintf("provider timezone %q cannot be resolved", r.Timezone)
	default:
		return "provider has not published availability yet"
	}
}

func (r *Rejection) Details() map[string]any {
	details := map[string]any{
		"reason":     string(r.Reason),
		"providerId": r.ProviderID,
	}
	if r.Reason == ReasonDayNotOffered || r.Reason == ReasonTimeNotOffered {
		details["timezone"] = r.Timezone
		details["weekday"] = string(r.Weekday)
		details["requestedTime"] = model.FormatTimeOfDay(r.MinuteOfDay)
	}
	if r.Window != nil {
		details["windowStart"] = model.FormatTimeOfDay(r.Window.StartMinute)
		details["windowEnd"] = model.FormatTimeOfDay(r.Window.EndMinute)
	}
	return details
}

func (r *Rejection) AppError() *apperrors.AppError {
	switch r.Code {
	case apperrors.CodeProviderNotReady:
		return apperrors.ProviderNotReady(r.ProviderID).WithDetails(r.Details())
	case apperrors.CodeInternal:
		return apperrors.Internal("Provider configuration is invalid", r)
	}
	return apperrors.OutsideAvailability(r.Error(), r.Details())
}

type SlotValidator struct {
	normalizer *Normalizer
}

func NewSlotValidator(normalizer *Normalizer) *SlotValidator {
	return &SlotValidator{normalizer: normalizer}
}

// Validate returns nil when instant is bookable for p. It has no side
// effects and is safe to call speculatively.
func (v *SlotValidator) Validate(p *model.Provider, instant time.Time) *Rejection {
	if !p.IsReady() {
		return &Rejection{Code: apperrors.CodeProviderNotReady, Reason: ReasonProviderNotReady, ProviderID: p.ID}
	}

	frame, err := v.normalizer.Normalize(p.Timezone, instant)
	if err != nil {
		return &Rejection{
			Code:       apperrors.CodeInternal,
			Reason:     ReasonInvalidTimezone,
			ProviderID: p.ID,
			Timezone:   p.Timezone,
		}
	}

	rejection := &Rejection{
		Code:        apperrors.CodeOutsideAvailability,
		ProviderID:  p.ID,
		Timezone:    p.Timezone,
		Weekday:     frame.Weekday,
		MinuteOfDay: frame.MinuteOfDay,
	}

	window, ok := p.WeeklyAvailability.Window(frame.Weekday)
	if !ok || !window.Enabled {
		rejection.Reason = ReasonDayNotOffered
		return rejection
	}

	if !window.Contains(frame.MinuteOfDay) {
		rejection.Reason = ReasonTimeNotOffered
		rejection.Window = &window
		return rejection
	}

	return nil
}
