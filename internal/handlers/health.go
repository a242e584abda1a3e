package handlers

import (
	"net/http"
	"time"
)

// HealthCheck reports service and storage health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := h.storage.Health(); err != nil {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, map[string]string{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
