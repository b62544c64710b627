package handler

import (
	"encoding/json"
	"net/http"

	"slotguard/internal/providers/service"
	apperrors "slotguard/pkg/errors"
	httputil "slotguard/pkg/http"
	"slotguard/pkg/logger"
	"slotguard/pkg/middleware"
	"slotguard/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ProviderHandler struct {
	service service.ProviderService
	log     *logger.Logger
}

func NewProviderHandler(service service.ProviderService, log *logger.Logger) *ProviderHandler {
	return &ProviderHandler{
		service: service,
		log:     log,
	}
}

type availabilityRequest struct {
	WeeklyAvailability json.RawMessage `json:"weeklyAvailability"`
}

type availabilityResponse struct {
	ProviderID string               `json:"providerId"`
	Status     model.ProviderStatus `json:"status"`
}

func (h *ProviderHandler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req service.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Register", apperrors.InvalidInput("Invalid request body"))
		return
	}

	provider, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, "Register", err)
		return
	}

	if err := httputil.WriteCreated(w, provider); err != nil {
		h.log.Error("failed to write created response", "handler", "Register", "operation", "WriteCreated", "error", err)
	}
}

func (h *ProviderHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	provider, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, provider); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ProviderHandler) GetAvailability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	view, err := h.service.GetAvailability(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetAvailability", err)
		return
	}

	if err := httputil.WriteSuccess(w, view); err != nil {
		h.log.Error("failed to write success response", "handler", "GetAvailability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ProviderHandler) PutAvailability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	callerID := middleware.ProviderID(r)
	if callerID == "" {
		h.writeError(w, "PutAvailability", apperrors.Unauthorized("missing "+middleware.ProviderIDHeader+" header"))
		return
	}

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "PutAvailability", apperrors.InvalidAvailability(map[string]any{
			"body": "is not a valid JSON object",
		}))
		return
	}

	provider, err := h.service.PutAvailability(r.Context(), callerID, ps.ByName("id"), req.WeeklyAvailability)
	if err != nil {
		h.writeError(w, "PutAvailability", err)
		return
	}

	if err := httputil.WriteSuccess(w, availabilityResponse{
		ProviderID: provider.ID,
		Status:     provider.Status,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "PutAvailability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ProviderHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ProviderHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/providers", h.Register)
	router.GET("/api/v1/providers/:id", h.GetByID)
	router.GET("/api/v1/providers/:id/availability", h.GetAvailability)
	router.PUT("/api/v1/providers/:id/availability", h.PutAvailability)
}
