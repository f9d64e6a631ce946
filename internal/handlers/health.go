package handlers

import (
	"net/http"
	"time"
)

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	started time.Time
	ready   func() bool
}

// NewHealthHandlers constructs health handlers. A nil readiness check reports
// ready unconditionally.
func NewHealthHandlers(ready func() bool) *HealthHandlers {
	return &HealthHandlers{
		started: time.Now(),
		ready:   ready,
	}
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(h.started).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readyz reports whether downstream dependencies are reachable.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, _ *http.Request) {
	if h.ready != nil && !h.ready() {
		writeJSONResponse(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"status": "ready"})
}
