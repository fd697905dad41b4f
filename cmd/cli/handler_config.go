package main

import (
	"errors"
	"io"
	"net/http"

	"github.com/sguter90/heatmaestro/pkg/models"
	"go.uber.org/zap"
)

// activeConfigHandler returns the active configuration or 404 while none was saved
func (rm *RouteManager) activeConfigHandler(w http.ResponseWriter, r *http.Request) {
	cfg, found, err := rm.service.ActiveConfig(r.Context())
	if err != nil {
		rm.log.Error("Failed to load active config", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load config")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no config found")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// saveConfigHandler stores a new active configuration and returns it
func (rm *RouteManager) saveConfigHandler(w http.ResponseWriter, r *http.Request) {
	saved, ok := rm.saveConfig(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// legacySaveConfigHandler answers with {"ok": true} like the first dashboard expects
func (rm *RouteManager) legacySaveConfigHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := rm.saveConfig(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// saveConfig parses and stores the body. On failure the error response is
// already written.
func (rm *RouteManager) saveConfig(w http.ResponseWriter, r *http.Request) (models.EnvironmentalConfig, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return models.EnvironmentalConfig{}, false
	}

	cfg, err := models.ParseConfigJSON(body)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid config", Fields: verr.Fields})
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return models.EnvironmentalConfig{}, false
	}

	saved, err := rm.service.SaveConfig(r.Context(), cfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save config")
		return models.EnvironmentalConfig{}, false
	}
	return saved, true
}

// configHistoryHandler returns saved configurations, newest first
// Query params:
//   - limit: number of configurations (default: all)
func (rm *RouteManager) configHistoryHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	history, err := rm.service.ConfigHistory(r.Context(), limit)
	if err != nil {
		rm.log.Error("Failed to load config history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load config history")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// intervalHandler returns the sample interval in seconds, polled by devices
func (rm *RouteManager) intervalHandler(w http.ResponseWriter, r *http.Request) {
	secs, ok := rm.intervalSeconds(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"interval": secs})
}

func (rm *RouteManager) legacyIntervalHandler(w http.ResponseWriter, r *http.Request) {
	secs, ok := rm.intervalSeconds(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"intervalo": secs})
}

func (rm *RouteManager) intervalSeconds(w http.ResponseWriter, r *http.Request) (int, bool) {
	interval, err := rm.service.Interval(r.Context())
	if err != nil {
		rm.log.Error("Failed to load interval", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load interval")
		return 0, false
	}
	return int(interval.Seconds()), true
}
