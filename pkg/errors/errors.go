package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound        = "NOT_FOUND"
	CodeValidation      = "VALIDATION_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeConflict        = "CONFLICT"
	CodeInternal        = "INTERNAL_ERROR"
	CodeBadRequest      = "BAD_REQUEST"
	CodeTimeout         = "TIMEOUT"
	CodeUnavailable     = "SERVICE_UNAVAILABLE"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeTooManyRequests = "RATE_LIMIT_EXCEEDED"

	CodeInvalidAvailability    = "INVALID_AVAILABILITY"
	CodeProviderNotReady       = "PROVIDER_NOT_READY"
	CodeOutsideAvailability    = "OUTSIDE_AVAILABILITY"
	CodeSlotConflict           = "SLOT_CONFLICT"
	CodeBookingNotActive       = "BOOKING_NOT_ACTIVE"
	CodeProviderExists         = "PROVIDER_EXISTS"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
)

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	return e.HTTPStatus
}

func (e *AppError) ToJSON() []byte {
	response := ErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
	data, _ := json.Marshal(response)
	return data
}

type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// WithDetails merges details into the error, overwriting existing keys.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

func NotFoundWithID(resource, id string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

func Validation(message string, details map[string]any) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

func InvalidInput(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func Timeout(message string) *AppError {
	return &AppError{
		Code:       CodeTimeout,
		Message:    message,
		HTTPStatus: http.StatusGatewayTimeout,
	}
}

func Unavailable(service string) *AppError {
	return &AppError{
		Code:       CodeUnavailable,
		Message:    fmt.Sprintf("%s is temporarily unavailable", service),
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

func TooManyRequests(message string) *AppError {
	return &AppError{
		Code:       CodeTooManyRequests,
		Message:    message,
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// InvalidAvailability reports a malformed weekly availability payload.
// details maps the offending field path to a human readable problem.
func InvalidAvailability(details map[string]any) *AppError {
	return &AppError{
		Code:       CodeInvalidAvailability,
		Message:    "weekly availability is invalid",
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

func ProviderNotReady(providerID string) *AppError {
	return &AppError{
		Code:       CodeProviderNotReady,
		Message:    "provider has not published availability yet",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"providerId": providerID},
	}
}

func OutsideAvailability(message string, details map[string]any) *AppError {
	return &AppError{
		Code:       CodeOutsideAvailability,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// SlotConflict always carries the alternatives list, even when empty,
// so clients can tell "no availability this week" apart from a missing field.
func SlotConflict(alternatives any) *AppError {
	return &AppError{
		Code:       CodeSlotConflict,
		Message:    "requested slot is already taken",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"alternatives": alternatives},
	}
}

func BookingNotActive(bookingID, status string) *AppError {
	return &AppError{
		Code:       CodeBookingNotActive,
		Message:    fmt.Sprintf("booking is %s and can no longer be changed", status),
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"bookingId": bookingID,
			"status":    status,
		},
	}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}

func ProviderExists(providerID string) *AppError {
	return &AppError{
		Code:       CodeProviderExists,
		Message:    "provider is already registered",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"providerId": providerID},
	}
}

// ConcurrentModification is returned once optimistic retries are exhausted.
func ConcurrentModification(resource string) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    fmt.Sprintf("%s was modified concurrently, please retry", resource),
		HTTPStatus: http.StatusConflict,
	}
}
