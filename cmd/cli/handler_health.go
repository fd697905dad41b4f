package main

import (
	"net/http"

	"go.uber.org/zap"
)

// healthHandler returns server health status. A store that does not answer
// a ping turns the status into "degraded" with 503.
func (rm *RouteManager) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := rm.service.Ping(r.Context()); err != nil {
		rm.log.Warn("Health check failed", zap.Error(err))
		status, code = "degraded", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]string{
		"status":  status,
		"backend": rm.service.Backend(),
	})
}

// pingHandler answers the legacy liveness check
func (rm *RouteManager) pingHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// statusHandler returns the latest reading, its alerts, the arbitration
// state and the effective configuration
func (rm *RouteManager) statusHandler(w http.ResponseWriter, r *http.Request) {
	status, err := rm.service.Status(r.Context())
	if err != nil {
		rm.log.Error("Failed to build status", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}
