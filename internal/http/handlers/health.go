package handlers

import "net/http"

// HealthHandler serves the worker's liveness probe (§6): plain "ok", nothing else.
type HealthHandler struct{}

// NewHealthHandler builds a HealthHandler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Health reports process liveness. It does not check session health — a
// worker can be "alive" while every session is reconnecting.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
