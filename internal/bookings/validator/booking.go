package validator

import (
	"fmt"
	"unicode/utf8"

	"slotguard/pkg/logger"
	"slotguard/pkg/model"
	"slotguard/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type BookingValidator struct {
	validate        *validator.Validate
	logger          *logger.Logger
	reasonMinLength int
}

func NewBookingValidator(log *logger.Logger, reasonMinLength int) *BookingValidator {
	v, err := validation.New()
	if err != nil {
		log.Fatal("Failed to initialize booking validator", "error", err)
	}
	return &BookingValidator{validate: v, logger: log, reasonMinLength: reasonMinLength}
}

func (v *BookingValidator) ValidateReserve(req *model.ReserveRequest) error {
	return validation.Translate(v.validate.Struct(req))
}

func (v *BookingValidator) ValidateReschedule(req *model.RescheduleRequest) error {
	return validation.Translate(v.validate.Struct(req))
}

// ValidateCancel counts characters, not bytes, against the minimum length.
func (v *BookingValidator) ValidateCancel(req *model.CancelRequest) error {
	if err := validation.Translate(v.validate.Struct(req)); err != nil {
		return err
	}
	if n := utf8.RuneCountInString(req.Reason); n < v.reasonMinLength {
		return validation.ValidationErrors{{
			Field:   "reason",
			Message: fmt.Sprintf("must be at least %d characters, got %d", v.reasonMinLength, n),
		}}
	}
	return nil
}

func (v *BookingValidator) ValidateUserID(userID string) error {
	if err := v.validate.Var(userID, "required,max=128"); err != nil {
		return validation.ValidationErrors{{Field: "userId", Message: "must be a non-empty id of at most 128 characters"}}
	}
	return nil
}
