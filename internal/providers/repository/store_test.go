package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	providerserrors "slotguard/internal/providers/errors"
	"slotguard/internal/storetest"
	"slotguard/pkg/model"
)

func TestProviderRepository_LiveStores(t *testing.T) {
	for _, driver := range storetest.Drivers() {
		t.Run(driver.Name, func(t *testing.T) {
			cfg := driver.Open(t)
			repo := NewProviderRepository(cfg, nil)
			ctx := context.Background()
			created := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

			p := &model.Provider{
				ID:                     "prov-1",
				Timezone:               "America/New_York",
				SessionDurationMinutes: 45,
				Status:                 model.ProviderPending,
				CreatedAt:              created,
				UpdatedAt:              created,
			}
			if err := repo.Create(ctx, p); err != nil {
				t.Fatalf("create: %v", err)
			}
			if err := repo.Create(ctx, p); !errors.Is(err, providerserrors.ErrAlreadyExists) {
				t.Fatalf("duplicate create: expected ErrAlreadyExists, got %v", err)
			}
			if _, err := repo.FindByID(ctx, "prov-missing"); !errors.Is(err, providerserrors.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			wa := model.WeeklyAvailability{
				model.Monday:  {Enabled: true, StartMinute: 9 * 60, EndMinute: 17 * 60},
				model.Tuesday: {Enabled: false},
			}.Complete()
			saved, err := repo.SaveAvailability(ctx, "prov-1", wa, created.Add(time.Hour))
			if err != nil {
				t.Fatalf("save availability: %v", err)
			}
			if saved.Status != model.ProviderReady {
				t.Errorf("status = %s, want ready", saved.Status)
			}

			got, err := repo.FindByID(ctx, "prov-1")
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			if got.Status != model.ProviderReady || got.SessionDurationMinutes != 45 || got.Timezone != "America/New_York" {
				t.Errorf("provider = %+v", got)
			}
			for _, day := range model.Weekdays {
				if got.WeeklyAvailability[day] != wa[day] {
					t.Errorf("%s = %+v, want %+v", day, got.WeeklyAvailability[day], wa[day])
				}
			}

			if _, err := repo.SaveAvailability(ctx, "prov-missing", wa, created); !errors.Is(err, providerserrors.ErrNotFound) {
				t.Errorf("save for unknown provider: expected ErrNotFound, got %v", err)
			}
		})
	}
}
