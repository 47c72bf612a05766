// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"
)

// ReadinessChecker reports whether an optional dependency is usable.
type ReadinessChecker interface {
	IsConnected() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	events ReadinessChecker
}

// NewHealthHandler creates a new health handler. events may be nil when
// transcript publishing is disabled.
func NewHealthHandler(events ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		events: events,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.events != nil && !h.events.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
