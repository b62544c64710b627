package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "slotguard/pkg/errors"
	"slotguard/pkg/logger"
	"slotguard/pkg/middleware"
	"slotguard/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockBookingService struct {
	reserveFunc        func(ctx context.Context, userID string, req *model.ReserveRequest) (*model.Booking, error)
	rescheduleFunc     func(ctx context.Context, userID, bookingID string, req *model.RescheduleRequest) (*model.Booking, error)
	cancelFunc         func(ctx context.Context, userID, bookingID string, req *model.CancelRequest) (*model.Booking, error)
	getByIDFunc        func(ctx context.Context, id string) (*model.Booking, error)
	listByUserFunc     func(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error)
	listByProviderFunc func(ctx context.Context, providerID string) (*model.ProviderSchedule, error)
	suggestFunc        func(ctx context.Context, providerID string, anchor time.Time, excludingID string) ([]time.Time, error)
}

func (m *mockBookingService) Reserve(ctx context.Context, userID string, req *model.ReserveRequest) (*model.Booking, error) {
	if m.reserveFunc != nil {
		return m.reserveFunc(ctx, userID, req)
	}
	return &model.Booking{ID: "b-1", UserID: userID, AppointmentInstant: req.AppointmentInstant}, nil
}

func (m *mockBookingService) Reschedule(ctx context.Context, userID, bookingID string, req *model.RescheduleRequest) (*model.Booking, error) {
	if m.rescheduleFunc != nil {
		return m.rescheduleFunc(ctx, userID, bookingID, req)
	}
	return &model.Booking{ID: bookingID, AppointmentInstant: req.NewAppointmentInstant}, nil
}

func (m *mockBookingService) Cancel(ctx context.Context, userID, bookingID string, req *model.CancelRequest) (*model.Booking, error) {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, userID, bookingID, req)
	}
	return &model.Booking{ID: bookingID, Status: model.BookingCancelled}, nil
}

func (m *mockBookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, apperrors.NotFoundWithID("Booking", id)
}

func (m *mockBookingService) ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if m.listByUserFunc != nil {
		return m.listByUserFunc(ctx, userID, limit, offset)
	}
	return []*model.Booking{}, 0, nil
}

func (m *mockBookingService) ListByProvider(ctx context.Context, providerID string) (*model.ProviderSchedule, error) {
	if m.listByProviderFunc != nil {
		return m.listByProviderFunc(ctx, providerID)
	}
	return model.NewProviderSchedule(providerID), nil
}

func (m *mockBookingService) Suggest(ctx context.Context, providerID string, anchor time.Time, excludingID string) ([]time.Time, error) {
	if m.suggestFunc != nil {
		return m.suggestFunc(ctx, providerID, anchor, excludingID)
	}
	return []time.Time{}, nil
}

func (m *mockBookingService) CompleteDue(context.Context) (int, error) {
	return 0, nil
}

func newRouter(svc *mockBookingService) *httprouter.Router {
	log := logger.New(logger.Config{Level: "error", Output: io.Discard, Service: "test"})
	router := httprouter.New()
	NewBookingHandler(svc, log).RegisterRoutes(router)
	return router
}

func serve(router http.Handler, method, target, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if user != "" {
		req.Header.Set(middleware.UserIDHeader, user)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorResponse {
	t.Helper()
	var resp apperrors.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return resp
}

func TestReserve(t *testing.T) {
	slot := time.Date(2030, 1, 7, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		user       string
		body       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "created",
			user:       "user-a",
			body:       `{"providerId":"prov-1","appointmentInstant":"2030-01-07T09:00:00-05:00","sessionType":"consultation"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing user header",
			body:       `{"providerId":"prov-1","appointmentInstant":"2030-01-07T09:00:00-05:00","sessionType":"consultation"}`,
			wantStatus: http.StatusUnauthorized,
			wantCode:   apperrors.CodeUnauthorized,
		},
		{
			name:       "malformed body",
			user:       "user-a",
			body:       `{"providerId":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.CodeInvalidInput,
		},
		{
			name:       "slot taken",
			user:       "user-a",
			body:       `{"providerId":"prov-1","appointmentInstant":"2030-01-07T09:00:00-05:00","sessionType":"consultation"}`,
			serviceErr: apperrors.SlotConflict([]time.Time{slot.Add(time.Hour)}),
			wantStatus: http.StatusConflict,
			wantCode:   apperrors.CodeSlotConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var received *model.ReserveRequest
			router := newRouter(&mockBookingService{
				reserveFunc: func(ctx context.Context, userID string, req *model.ReserveRequest) (*model.Booking, error) {
					received = req
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return &model.Booking{ID: "b-1", UserID: userID, AppointmentInstant: req.AppointmentInstant.UTC()}, nil
				},
			})

			rec := serve(router, http.MethodPost, "/api/v1/bookings", tt.user, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode != "" {
				if resp := decodeError(t, rec); resp.Code != tt.wantCode {
					t.Errorf("code = %s, want %s", resp.Code, tt.wantCode)
				}
				return
			}

			if !received.AppointmentInstant.Equal(slot) {
				t.Errorf("instant not decoded: %s", received.AppointmentInstant)
			}
			var receipt model.BookingReceipt
			if err := json.Unmarshal(rec.Body.Bytes(), &receipt); err != nil {
				t.Fatalf("decode receipt: %v", err)
			}
			if receipt.BookingID != "b-1" || !receipt.AppointmentInstant.Equal(slot) {
				t.Errorf("unexpected receipt: %+v", receipt)
			}
		})
	}
}

func TestCancel(t *testing.T) {
	var gotID, gotUser, gotReason string
	router := newRouter(&mockBookingService{
		cancelFunc: func(ctx context.Context, userID, bookingID string, req *model.CancelRequest) (*model.Booking, error) {
			gotID, gotUser, gotReason = bookingID, userID, req.Reason
			return &model.Booking{ID: bookingID, Status: model.BookingCancelled}, nil
		},
	})

	rec := serve(router, http.MethodPost, "/api/v1/bookings/b-1/cancel", "user-a", `{"reason":"Schedule changed at work"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if gotID != "b-1" || gotUser != "user-a" || gotReason != "Schedule changed at work" {
		t.Errorf("unexpected call: %q %q %q", gotID, gotUser, gotReason)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["bookingId"] != "b-1" || resp["status"] != "cancelled" {
		t.Errorf("unexpected body: %v", resp)
	}
}

func TestCancel_NotActive(t *testing.T) {
	router := newRouter(&mockBookingService{
		cancelFunc: func(ctx context.Context, userID, bookingID string, req *model.CancelRequest) (*model.Booking, error) {
			return nil, apperrors.BookingNotActive(bookingID, "cancelled")
		},
	})

	rec := serve(router, http.MethodPost, "/api/v1/bookings/b-1/cancel", "user-a", `{"reason":"Schedule changed at work"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeError(t, rec); resp.Code != apperrors.CodeBookingNotActive {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestReschedule(t *testing.T) {
	router := newRouter(&mockBookingService{
		rescheduleFunc: func(ctx context.Context, userID, bookingID string, req *model.RescheduleRequest) (*model.Booking, error) {
			if userID != "user-a" {
				return nil, apperrors.Forbidden("only the booking's user may reschedule it")
			}
			return &model.Booking{ID: bookingID, AppointmentInstant: req.NewAppointmentInstant.UTC()}, nil
		},
	})
	body := `{"newAppointmentInstant":"2030-01-08T15:00:00Z"}`

	rec := serve(router, http.MethodPost, "/api/v1/bookings/b-1/reschedule", "user-a", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var receipt model.BookingReceipt
	if err := json.Unmarshal(rec.Body.Bytes(), &receipt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !receipt.AppointmentInstant.Equal(time.Date(2030, 1, 8, 15, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected receipt: %+v", receipt)
	}

	rec = serve(router, http.MethodPost, "/api/v1/bookings/b-1/reschedule", "user-b", body)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestGetByID_HidesOtherUsersBookings(t *testing.T) {
	router := newRouter(&mockBookingService{
		getByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: id, UserID: "user-a"}, nil
		},
	})

	if rec := serve(router, http.MethodGet, "/api/v1/bookings/b-1", "user-a", ""); rec.Code != http.StatusOK {
		t.Errorf("owner status = %d", rec.Code)
	}
	if rec := serve(router, http.MethodGet, "/api/v1/bookings/b-1", "user-b", ""); rec.Code != http.StatusNotFound {
		t.Errorf("stranger status = %d, want 404", rec.Code)
	}
}

func TestListMine_Pagination(t *testing.T) {
	var gotLimit int
	var gotOffset int64
	router := newRouter(&mockBookingService{
		listByUserFunc: func(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error) {
			gotLimit, gotOffset = limit, offset
			return []*model.Booking{{ID: "b-1", UserID: userID}}, 7, nil
		},
	})

	rec := serve(router, http.MethodGet, "/api/v1/bookings?limit=5&offset=2", "user-a", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if gotLimit != 5 || gotOffset != 2 {
		t.Errorf("limit = %d offset = %d", gotLimit, gotOffset)
	}
	var resp struct {
		TotalCount int64 `json:"totalCount"`
		Limit      int   `json:"limit"`
		Offset     int   `json:"offset"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalCount != 7 || resp.Limit != 5 || resp.Offset != 2 {
		t.Errorf("unexpected page: %+v", resp)
	}

	if rec := serve(router, http.MethodGet, "/api/v1/bookings?limit=abc", "user-a", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}
}

func TestAlternatives(t *testing.T) {
	suggestion := time.Date(2030, 1, 7, 15, 0, 0, 0, time.UTC)
	var gotAnchor time.Time
	var gotExcluding string
	router := newRouter(&mockBookingService{
		suggestFunc: func(ctx context.Context, providerID string, anchor time.Time, excludingID string) ([]time.Time, error) {
			gotAnchor, gotExcluding = anchor, excludingID
			return []time.Time{suggestion}, nil
		},
	})

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{name: "valid anchor", target: "/api/v1/providers/prov-1/alternatives?anchor=2030-01-07T14:00:00Z&excluding=b-9", wantStatus: http.StatusOK},
		{name: "missing anchor", target: "/api/v1/providers/prov-1/alternatives", wantStatus: http.StatusBadRequest},
		{name: "unparseable anchor", target: "/api/v1/providers/prov-1/alternatives?anchor=monday", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, http.MethodGet, tt.target, "", "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}

	if !gotAnchor.Equal(time.Date(2030, 1, 7, 14, 0, 0, 0, time.UTC)) || gotExcluding != "b-9" {
		t.Errorf("anchor = %s excluding = %q", gotAnchor, gotExcluding)
	}
}

func TestProviderSchedule(t *testing.T) {
	router := newRouter(&mockBookingService{
		listByProviderFunc: func(ctx context.Context, providerID string) (*model.ProviderSchedule, error) {
			if providerID != "prov-1" {
				return nil, apperrors.NotFoundWithID("Provider", providerID)
			}
			s := model.NewProviderSchedule(providerID)
			s.Upsert(model.ScheduleEntry{BookingID: "b-1"})
			return s, nil
		},
	})

	rec := serve(router, http.MethodGet, "/api/v1/providers/prov-1/schedule", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var schedule model.ProviderSchedule
	if err := json.Unmarshal(rec.Body.Bytes(), &schedule); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(schedule.Entries) != 1 {
		t.Errorf("entries = %d", len(schedule.Entries))
	}

	if rec := serve(router, http.MethodGet, "/api/v1/providers/other/schedule", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown provider status = %d", rec.Code)
	}
}
