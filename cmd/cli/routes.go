package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sguter90/heatmaestro/pkg/decoder"
	"github.com/sguter90/heatmaestro/pkg/ingest"
	"github.com/sguter90/heatmaestro/pkg/metrics"
	"github.com/sguter90/heatmaestro/pkg/settings"
	"go.uber.org/zap"
)

// maxBodySize bounds request bodies of the write endpoints
const maxBodySize = 64 << 10

// RouteManager handles all API routes
type RouteManager struct {
	service  *ingest.Service
	decoders *decoder.Registry
	metrics  *metrics.Metrics
	server   settings.ServerConfig
	log      *zap.Logger
	Router   *mux.Router
}

// NewRouteManager creates a new RouteManager instance
func NewRouteManager(service *ingest.Service, decoders *decoder.Registry, m *metrics.Metrics, server settings.ServerConfig, log *zap.Logger) *RouteManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &RouteManager{
		service:  service,
		decoders: decoders,
		metrics:  m,
		server:   server,
		log:      log,
		Router:   mux.NewRouter(),
	}
}

// Setup configures all API routes
func (rm *RouteManager) Setup() {
	r := rm.Router
	r.Use(rm.corsMiddleware)
	r.Use(rm.loggingMiddleware)

	// Global OPTIONS handler - catches all preflight requests
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rm.handle(r, "/health", "health", rm.healthHandler, "GET")
	r.Handle("/metrics", rm.metrics.Handler()).Methods("GET")

	// API v1 routes
	api := r.PathPrefix("/api/v1").Subrouter()
	rm.setupAPIRoutes(api)

	// Routes used by deployed device firmware and the first dashboard
	rm.setupLegacyRoutes(r)
}

// setupAPIRoutes configures all API v1 routes
func (rm *RouteManager) setupAPIRoutes(api *mux.Router) {
	// Readings
	rm.handle(api, "/readings", "readings_create", rm.postReadingHandler, "POST")
	rm.handle(api, "/readings/latest", "readings_latest", rm.latestReadingsHandler, "GET")

	// Configuration
	rm.handle(api, "/config", "config_save", rm.saveConfigHandler, "POST")
	rm.handle(api, "/config/active", "config_active", rm.activeConfigHandler, "GET")
	rm.handle(api, "/config/history", "config_history", rm.configHistoryHandler, "GET")
	rm.handle(api, "/config/interval", "config_interval", rm.intervalHandler, "GET")

	rm.handle(api, "/status", "status", rm.statusHandler, "GET")
}

func (rm *RouteManager) setupLegacyRoutes(r *mux.Router) {
	rm.handle(r, "/api", "legacy_ping", rm.pingHandler, "GET")
	rm.handle(r, "/api/lecturas", "readings_create", rm.postReadingHandler, "POST")
	rm.handle(r, "/api/lecturas/ultimas", "legacy_readings_latest", rm.legacyLatestReadingsHandler, "GET")
	rm.handle(r, "/api/config", "config_save", rm.legacySaveConfigHandler, "POST")
	rm.handle(r, "/api/config/activa", "config_active", rm.activeConfigHandler, "GET")
	rm.handle(r, "/api/config/intervalo", "config_interval", rm.legacyIntervalHandler, "GET")
}

// handle registers h under path, instrumented as route
func (rm *RouteManager) handle(r *mux.Router, path, route string, h http.HandlerFunc, methods ...string) {
	r.Handle(path, rm.metrics.WrapHandler(route, h)).Methods(methods...)
}

// Handler returns the router wrapped with panic recovery
func (rm *RouteManager) Handler() http.Handler {
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(rm.log)),
		handlers.PrintRecoveryStack(true),
	)
	return recovery(rm.Router)
}

// errorResponse is the JSON body of every non-2xx response
type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeJSON encodes before writing the header so an unencodable value turns
// into a 500 instead of a 200 with an empty body
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(errorResponse{Error: "failed to encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
