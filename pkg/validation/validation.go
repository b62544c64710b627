package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"slotguard/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Details flattens the errors into an AppError details map.
func (v ValidationErrors) Details() map[string]any {
	details := make(map[string]any, len(v))
	for _, err := range v {
		details[err.Field] = err.Message
	}
	return details
}

var providerIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]*$`)

// New returns a validator with the domain tags registered and JSON field
// names used in error reports.
func New() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	tags := map[string]validator.Func{
		"provider_id":   validateProviderID,
		"iana_timezone": validateTimezone,
		"time_of_day":   validateTimeOfDay,
	}
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return nil, fmt.Errorf("register %q validator: %w", tag, err)
		}
	}
	return v, nil
}

func validateProviderID(fl validator.FieldLevel) bool {
	return providerIDRegex.MatchString(fl.Field().String())
}

// validateTimezone accepts IANA names only; "Local" would follow the
// server clock.
func validateTimezone(fl validator.FieldLevel) bool {
	tz := strings.TrimSpace(fl.Field().String())
	if tz == "" || tz == "Local" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

func validateTimeOfDay(fl validator.FieldLevel) bool {
	return model.IsTimeOfDay(fl.Field().String())
}

// Translate converts validator output into field/message pairs.
func Translate(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	out := make(ValidationErrors, 0, len(validationErrs))
	for _, fe := range validationErrs {
		out = append(out, ValidationError{Field: fieldPath(fe), Message: message(fe)})
	}
	return out
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gtefield":
		return fmt.Sprintf("must not be before %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "provider_id":
		return "may contain only letters, digits, '.', '_', ':' and '-'"
	case "iana_timezone":
		return "must be an IANA timezone name such as America/New_York"
	case "time_of_day":
		return "must be HH:MM (00:00-23:59)"
	case "uuid", "uuid4":
		return "must be a UUID"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
