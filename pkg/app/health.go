package app

import (
	"context"
	"net/http"
	"sort"
	"time"

	"slotguard/pkg/client"
	"slotguard/pkg/contracts"
	httputil "slotguard/pkg/http"
	"slotguard/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

const readinessTimeout = 2 * time.Second

type HealthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

type HealthHandler struct {
	pingers map[string]contracts.Pinger
	log     *logger.Logger
}

func NewHealthHandler(pingers map[string]contracts.Pinger, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		pingers: pingers,
		log:     log,
	}
}

// ClientPingers returns a readiness check for every connected client.
func ClientPingers(c *client.Client) map[string]contracts.Pinger {
	pingers := map[string]contracts.Pinger{}
	if c == nil {
		return pingers
	}
	if c.Mongo != nil {
		pingers["mongo"] = func(ctx context.Context) error { return c.Mongo.Ping(ctx, nil) }
	}
	if c.Postgres != nil {
		pingers["postgres"] = c.Postgres.Ping
	}
	if c.Redis != nil {
		pingers["redis"] = func(ctx context.Context) error { return c.Redis.Ping(ctx).Err() }
	}
	return pingers
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	names := make([]string, 0, len(h.pingers))
	for name := range h.pingers {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	resp := HealthResponse{Status: "ready", Dependencies: make(map[string]string, len(names))}
	for _, name := range names {
		if err := h.pingers[name](ctx); err != nil {
			h.log.Error("Dependency health check failed",
				"dependency", name,
				"error", err,
				"path", r.URL.Path,
			)
			resp.Dependencies[name] = "error"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Dependencies[name] = "ok"
	}

	if err := httputil.WriteJSON(w, status, resp); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
