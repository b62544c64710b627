package scheduling

import (
	"math/rand"
	"net/http"
	"testing"
	"time"

	apperrors "slotguard/pkg/errors"
	"slotguard/pkg/model"
)

func readyProvider(tz string, duration int, availability model.WeeklyAvailability) *model.Provider {
	return &model.Provider{
		ID:                     "prov-1",
		Timezone:               tz,
		SessionDurationMinutes: duration,
		Status:                 model.ProviderReady,
		WeeklyAvailability:     availability,
	}
}

func weekdays(start, end int) model.WeeklyAvailability {
	wa := model.WeeklyAvailability{}
	for _, d := range []model.Weekday{model.Monday, model.Tuesday, model.Wednesday, model.Thursday, model.Friday} {
		wa[d] = model.AvailabilityWindow{Enabled: true, StartMinute: start, EndMinute: end}
	}
	return wa
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("zoneinfo unavailable: %v", err)
	}
	return loc
}

func TestSlotValidator_Validate(t *testing.T) {
	loc := newYork(t)
	v := NewSlotValidator(NewNormalizer())

	availability := model.WeeklyAvailability{
		model.Monday:    {Enabled: true, StartMinute: 9 * 60, EndMinute: 17 * 60},
		model.Wednesday: {Enabled: false, StartMinute: 9 * 60, EndMinute: 17 * 60},
	}
	provider := readyProvider("America/New_York", 60, availability)

	tests := []struct {
		name       string
		provider   *model.Provider
		instant    time.Time
		wantCode   string
		wantReason RejectionReason
	}{
		{
			name:     "window start is bookable",
			provider: provider,
			instant:  time.Date(2030, 1, 7, 9, 0, 0, 0, loc),
		},
		{
			name:     "window end is bookable",
			provider: provider,
			instant:  time.Date(2030, 1, 7, 17, 0, 0, 0, loc),
		},
		{
			name:       "one minute before start",
			provider:   provider,
			instant:    time.Date(2030, 1, 7, 8, 59, 0, 0, loc),
			wantCode:   apperrors.CodeOutsideAvailability,
			wantReason: ReasonTimeNotOffered,
		},
		{
			name:       "one minute after end",
			provider:   provider,
			instant:    time.Date(2030, 1, 7, 17, 1, 0, 0, loc),
			wantCode:   apperrors.CodeOutsideAvailability,
			wantReason: ReasonTimeNotOffered,
		},
		{
			name:       "day without window",
			provider:   provider,
			instant:    time.Date(2030, 1, 8, 10, 0, 0, 0, loc),
			wantCode:   apperrors.CodeOutsideAvailability,
			wantReason: ReasonDayNotOffered,
		},
		{
			name:       "disabled window",
			provider:   provider,
			instant:    time.Date(2030, 1, 9, 10, 0, 0, 0, loc),
			wantCode:   apperrors.CodeOutsideAvailability,
			wantReason: ReasonDayNotOffered,
		},
		{
			name: "pending provider with windows",
			provider: &model.Provider{
				ID:                     "prov-2",
				Timezone:               "America/New_York",
				SessionDurationMinutes: 60,
				Status:                 model.ProviderPending,
				WeeklyAvailability:     availability,
			},
			instant:    time.Date(2030, 1, 7, 10, 0, 0, 0, loc),
			wantCode:   apperrors.CodeProviderNotReady,
			wantReason: ReasonProviderNotReady,
		},
		{
			name:       "unresolvable timezone",
			provider:   readyProvider("Nowhere/Void", 60, availability),
			instant:    time.Date(2030, 1, 7, 10, 0, 0, 0, loc),
			wantCode:   apperrors.CodeInternal,
			wantReason: ReasonInvalidTimezone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rejection := v.Validate(tt.provider, tt.instant.UTC())
			if tt.wantCode == "" {
				if rejection != nil {
					t.Fatalf("expected bookable, got %v", rejection)
				}
				return
			}
			if rejection == nil {
				t.Fatalf("expected rejection %s", tt.wantReason)
			}
			if rejection.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", rejection.Code, tt.wantCode)
			}
			if rejection.Reason != tt.wantReason {
				t.Errorf("reason = %s, want %s", rejection.Reason, tt.wantReason)
			}
		})
	}
}

func TestRejection_AppErrorCarriesWindowBounds(t *testing.T) {
	loc := newYork(t)
	v := NewSlotValidator(NewNormalizer())
	provider := readyProvider("America/New_York", 60, weekdays(9*60, 17*60))

	rejection := v.Validate(provider, time.Date(2030, 1, 7, 8, 59, 0, 0, loc))
	if rejection == nil {
		t.Fatal("expected rejection")
	}

	appErr := rejection.AppError()
	if appErr.Code != apperrors.CodeOutsideAvailability {
		t.Errorf("code = %s", appErr.Code)
	}
	if appErr.HTTPStatus != http.StatusBadRequest {
		t.Errorf("status = %d", appErr.HTTPStatus)
	}
	if appErr.Details["windowStart"] != "09:00" || appErr.Details["windowEnd"] != "17:00" {
		t.Errorf("window bounds missing from details: %v", appErr.Details)
	}
	if appErr.Details["requestedTime"] != "08:59" {
		t.Errorf("requestedTime = %v", appErr.Details["requestedTime"])
	}
	if appErr.Details["weekday"] != "monday" {
		t.Errorf("weekday = %v", appErr.Details["weekday"])
	}
}

func TestRejection_UnresolvableTimezoneIsInternal(t *testing.T) {
	v := NewSlotValidator(NewNormalizer())
	provider := readyProvider("Nowhere/Void", 60, weekdays(9*60, 17*60))

	rejection := v.Validate(provider, time.Date(2030, 1, 7, 14, 0, 0, 0, time.UTC))
	if rejection == nil {
		t.Fatal("expected rejection")
	}

	appErr := rejection.AppError()
	if appErr.Code != apperrors.CodeInternal {
		t.Errorf("code = %s, want %s", appErr.Code, apperrors.CodeInternal)
	}
	if appErr.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", appErr.HTTPStatus)
	}
}

// Every accepted instant must sit inside an enabled window, both ends
// inclusive, in the provider's own zone.
func TestSlotValidator_WindowInclusionProperty(t *testing.T) {
	zones := []string{"America/New_York", "Europe/London", "Asia/Kolkata", "Australia/Sydney", "UTC"}
	rng := rand.New(rand.NewSource(42))
	n := NewNormalizer()
	v := NewSlotValidator(n)
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 2000; i++ {
		zone := zones[rng.Intn(len(zones))]
		loc, err := time.LoadLocation(zone)
		if err != nil {
			t.Skipf("zoneinfo unavailable: %v", err)
		}

		wa := model.WeeklyAvailability{}
		for _, d := range model.Weekdays {
			start := rng.Intn(model.MinutesPerDay)
			end := start + rng.Intn(model.MinutesPerDay-start)
			wa[d] = model.AvailabilityWindow{Enabled: rng.Intn(4) != 0, StartMinute: start, EndMinute: end}
		}
		provider := readyProvider(zone, 30, wa)
		instant := base.Add(time.Duration(rng.Int63n(int64(365 * 24 * time.Hour))))

		local := instant.In(loc)
		day := model.WeekdayOf(local.Weekday())
		minute := local.Hour()*60 + local.Minute()
		w := wa[day]
		want := w.Enabled && w.StartMinute <= minute && minute <= w.EndMinute

		got := v.Validate(provider, instant) == nil
		if got != want {
			t.Fatalf("instant %s in %s (day %s minute %d, window %+v): accepted=%v want %v",
				instant, zone, day, minute, w, got, want)
		}
	}
}
