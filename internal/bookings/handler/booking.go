package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"slotguard/internal/bookings/service"
	apperrors "slotguard/pkg/errors"
	httputil "slotguard/pkg/http"
	"slotguard/pkg/logger"
	"slotguard/pkg/middleware"
	"slotguard/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

type cancelResponse struct {
	BookingID string              `json:"bookingId"`
	Status    model.BookingStatus `json:"status"`
}

type alternativesResponse struct {
	Alternatives []time.Time `json:"alternatives"`
}

func (h *BookingHandler) Reserve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := h.requireUser(w, r, "Reserve")
	if !ok {
		return
	}

	var req model.ReserveRequest
	if !h.decode(w, r, "Reserve", &req) {
		return
	}

	booking, err := h.service.Reserve(r.Context(), userID, &req)
	if err != nil {
		h.writeError(w, "Reserve", err)
		return
	}

	if err := httputil.WriteCreated(w, model.BookingReceipt{
		BookingID:          booking.ID,
		AppointmentInstant: booking.AppointmentInstant,
	}); err != nil {
		h.log.Error("failed to write created response", "handler", "Reserve", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := h.requireUser(w, r, "Reschedule")
	if !ok {
		return
	}

	var req model.RescheduleRequest
	if !h.decode(w, r, "Reschedule", &req) {
		return
	}

	booking, err := h.service.Reschedule(r.Context(), userID, ps.ByName("id"), &req)
	if err != nil {
		h.writeError(w, "Reschedule", err)
		return
	}

	if err := httputil.WriteSuccess(w, model.BookingReceipt{
		BookingID:          booking.ID,
		AppointmentInstant: booking.AppointmentInstant,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "Reschedule", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := h.requireUser(w, r, "Cancel")
	if !ok {
		return
	}

	var req model.CancelRequest
	if !h.decode(w, r, "Cancel", &req) {
		return
	}

	booking, err := h.service.Cancel(r.Context(), userID, ps.ByName("id"), &req)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteSuccess(w, cancelResponse{BookingID: booking.ID, Status: booking.Status}); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := h.requireUser(w, r, "GetByID")
	if !ok {
		return
	}

	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}
	if booking.UserID != userID {
		h.writeError(w, "GetByID", apperrors.NotFoundWithID("Booking", booking.ID))
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := h.requireUser(w, r, "ListMine")
	if !ok {
		return
	}

	page, err := httputil.ParsePage(r)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	bookings, total, err := h.service.ListByUser(r.Context(), userID, page.Limit, page.Offset)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, page); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListMine", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) ProviderSchedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	schedule, err := h.service.ListByProvider(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "ProviderSchedule", err)
		return
	}

	if err := httputil.WriteSuccess(w, schedule); err != nil {
		h.log.Error("failed to write success response", "handler", "ProviderSchedule", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Alternatives(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	query := r.URL.Query()
	raw := query.Get("anchor")
	if raw == "" {
		h.writeError(w, "Alternatives", apperrors.InvalidInput("anchor query parameter is required"))
		return
	}
	anchor, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		h.writeError(w, "Alternatives", apperrors.InvalidInput("anchor must be an RFC 3339 instant: "+raw))
		return
	}

	alternatives, err := h.service.Suggest(r.Context(), ps.ByName("id"), anchor, query.Get("excluding"))
	if err != nil {
		h.writeError(w, "Alternatives", err)
		return
	}

	if err := httputil.WriteSuccess(w, alternativesResponse{Alternatives: alternatives}); err != nil {
		h.log.Error("failed to write success response", "handler", "Alternatives", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) requireUser(w http.ResponseWriter, r *http.Request, handler string) (string, bool) {
	userID := middleware.UserID(r)
	if userID == "" {
		h.writeError(w, handler, apperrors.Unauthorized("missing "+middleware.UserIDHeader+" header"))
		return "", false
	}
	return userID, true
}

func (h *BookingHandler) decode(w http.ResponseWriter, r *http.Request, handler string, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, handler, apperrors.InvalidInput("Invalid request body"))
		return false
	}
	return true
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Reserve)
	router.GET("/api/v1/bookings", h.ListMine)
	router.GET("/api/v1/bookings/:id", h.GetByID)
	router.POST("/api/v1/bookings/:id/reschedule", h.Reschedule)
	router.POST("/api/v1/bookings/:id/cancel", h.Cancel)
	router.GET("/api/v1/providers/:id/schedule", h.ProviderSchedule)
	router.GET("/api/v1/providers/:id/alternatives", h.Alternatives)
}
