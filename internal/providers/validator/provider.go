package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"slotguard/pkg/logger"
	"slotguard/pkg/model"
	"slotguard/pkg/validation"

	"github.com/go-playground/validator/v10"
)

// windowInput mirrors one weekday entry of an availability payload.
type windowInput struct {
	Enabled *bool   `json:"enabled" validate:"required"`
	Start   *string `json:"start" validate:"omitempty,time_of_day"`
	End     *string `json:"end" validate:"omitempty,time_of_day"`
}

type ProviderValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewProviderValidator(log *logger.Logger) *ProviderValidator {
	v, err := validation.New()
	if err != nil {
		log.Fatal("Failed to initialize provider validator", "error", err)
	}
	return &ProviderValidator{validate: v, logger: log}
}

// Validate checks a provider record before it is stored.
func (v *ProviderValidator) Validate(p *model.Provider) error {
	return validation.Translate(v.validate.Struct(p))
}

// ParseWeeklyAvailability decodes a weekday-keyed availability object.
// Every problem is reported as "<weekday>[.<field>]" -> message; a nil
// details map means the payload is valid. Days left out are disabled.
func (v *ProviderValidator) ParseWeeklyAvailability(raw json.RawMessage) (model.WeeklyAvailability, map[string]any) {
	details := map[string]any{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		details["weeklyAvailability"] = "is required"
		return nil, details
	}

	entries, err := decodeObject(trimmed)
	if err != nil {
		details["weeklyAvailability"] = err.Error()
		return nil, details
	}
	if len(entries) > len(model.Weekdays) {
		details["weeklyAvailability"] = fmt.Sprintf("has %d entries, at most %d weekdays are allowed", len(entries), len(model.Weekdays))
	}

	wa := model.WeeklyAvailability{}
	seen := map[model.Weekday]string{}
	for _, entry := range entries {
		day, ok := model.ParseWeekday(entry.key)
		if !ok {
			details[entry.key] = "unknown weekday"
			continue
		}
		if first, dup := seen[day]; dup {
			details[entry.key] = fmt.Sprintf("duplicates weekday %q", first)
			continue
		}
		seen[day] = entry.key

		window, problems := v.parseWindow(entry.value)
		for field, msg := range problems {
			details[string(day)+"."+field] = msg
		}
		if len(problems) == 0 {
			wa[day] = window
		}
	}

	if len(details) > 0 {
		return nil, details
	}
	return wa.Complete(), nil
}

func (v *ProviderValidator) parseWindow(raw json.RawMessage) (model.AvailabilityWindow, map[string]string) {
	problems := map[string]string{}

	var in windowInput
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		field, msg := describeDecodeError(err)
		problems[field] = msg
		return model.AvailabilityWindow{}, problems
	}

	if err := validation.Translate(v.validate.Struct(in)); err != nil {
		var verrs validation.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				problems[fe.Field] = fe.Message
			}
		} else {
			problems["window"] = err.Error()
		}
		return model.AvailabilityWindow{}, problems
	}

	window := model.AvailabilityWindow{Enabled: *in.Enabled}
	if in.Start != nil {
		window.StartMinute, _ = model.ParseTimeOfDay(*in.Start)
	} else if window.Enabled {
		problems["start"] = "is required when the day is enabled"
	}
	if in.End != nil {
		window.EndMinute, _ = model.ParseTimeOfDay(*in.End)
	} else if window.Enabled {
		problems["end"] = "is required when the day is enabled"
	}
	if len(problems) > 0 {
		return model.AvailabilityWindow{}, problems
	}

	if (in.Start != nil || in.End != nil) && (in.Start == nil || in.End == nil) {
		problems["window"] = "start and end must be given together"
		return model.AvailabilityWindow{}, problems
	}
	if err := v.validate.Struct(window); err != nil {
		problems["end"] = fmt.Sprintf("must not be before start (%s > %s)",
			model.FormatTimeOfDay(window.StartMinute), model.FormatTimeOfDay(window.EndMinute))
		return model.AvailabilityWindow{}, problems
	}
	return window, nil
}

func describeDecodeError(err error) (string, string) {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			return "window", "must be an object"
		}
		switch field {
		case "enabled":
			return field, "must be a boolean"
		default:
			return field, "must be a string in HH:MM format"
		}
	}
	if msg := err.Error(); strings.HasPrefix(msg, "json: unknown field ") {
		return strings.Trim(strings.TrimPrefix(msg, "json: unknown field "), `"`), "is not a recognized field"
	}
	return "window", "is not valid JSON"
}

type objectEntry struct {
	key   string
	value json.RawMessage
}

// decodeObject reads a JSON object keeping duplicate keys, which
// encoding/json would silently collapse.
func decodeObject(raw []byte) ([]objectEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, errors.New("is not valid JSON")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("must be an object keyed by weekday")
	}

	var entries []objectEntry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.New("is not valid JSON")
		}
		key, _ := tok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, errors.New("is not valid JSON")
		}
		entries = append(entries, objectEntry{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, errors.New("is not valid JSON")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("has trailing data")
	}
	return entries, nil
}
