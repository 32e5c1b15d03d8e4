package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HealthChecker is anything the readiness check can ping.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler reports whether the session store is reachable. The business
// backend is not checked; a down backend shows up on the pages themselves.
type HealthHandler struct {
	Store    HealthChecker
	Sessions interface{ Len() int }
}

func (h HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
}

func (h HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]any{"status": "ok", "session_store": "ok"}
	code := http.StatusOK
	if err := h.Store.Health(ctx); err != nil {
		body["status"] = "degraded"
		body["session_store"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	if h.Sessions != nil {
		body["live_sessions"] = h.Sessions.Len()
	}
	writeRawJSON(w, code, body)
}
