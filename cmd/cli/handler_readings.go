package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sguter90/heatmaestro/pkg/decoder"
	"github.com/sguter90/heatmaestro/pkg/models"
	"go.uber.org/zap"
)

// readingResponse is returned after a reading was stored
type readingResponse struct {
	OK      bool                 `json:"ok"`
	Reading models.SensorReading `json:"reading"`
	Alerts  models.Alerts        `json:"alerts"`
}

// postReadingHandler ingests one reading from the device or any client.
// JSON and form bodies are accepted, with English or legacy field names.
func (rm *RouteManager) postReadingHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	in, err := rm.decoders.Decode(r.Header.Get("Content-Type"), r.Body)
	if err != nil {
		rm.writeDecodeError(w, err)
		return
	}

	result, err := rm.service.Ingest(r.Context(), in)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store reading")
		return
	}

	writeJSON(w, http.StatusOK, readingResponse{
		OK:      true,
		Reading: result.Reading,
		Alerts:  result.Alerts,
	})
}

// latestReadingsHandler returns the most recent readings, newest first
// Query params:
//   - limit: number of readings (default: 20, max: 100)
func (rm *RouteManager) latestReadingsHandler(w http.ResponseWriter, r *http.Request) {
	readings, ok := rm.latestReadings(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

// legacyReading is the row shape the original dashboard reads from /api/lecturas/ultimas
type legacyReading struct {
	IdLectura     int64     `json:"IdLectura"`
	FechaHora     time.Time `json:"FechaHora"`
	Temperatura   float64   `json:"Temperatura"`
	Humedad       float64   `json:"Humedad"`
	IndiceTermico float64   `json:"IndiceTermico"`
	Origen        string    `json:"Origen"`
}

func (rm *RouteManager) legacyLatestReadingsHandler(w http.ResponseWriter, r *http.Request) {
	readings, ok := rm.latestReadings(w, r)
	if !ok {
		return
	}

	rows := make([]legacyReading, 0, len(readings))
	for _, reading := range readings {
		rows = append(rows, legacyReading{
			IdLectura:     reading.ID,
			FechaHora:     reading.Timestamp,
			Temperatura:   reading.Temperature,
			Humedad:       reading.Humidity,
			IndiceTermico: reading.HeatIndex,
			Origen:        reading.Origin,
		})
	}
	writeJSON(w, http.StatusOK, rows)
}

// latestReadings runs the limit-bounded query, writing the error response itself on failure
func (rm *RouteManager) latestReadings(w http.ResponseWriter, r *http.Request) ([]models.SensorReading, bool) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	readings, err := rm.service.Latest(r.Context(), limit)
	if err != nil {
		rm.log.Error("Failed to query readings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to query readings")
		return nil, false
	}
	return readings, true
}

// writeDecodeError maps payload errors to client error responses
func (rm *RouteManager) writeDecodeError(w http.ResponseWriter, err error) {
	rm.log.Debug("Rejected payload", zap.Error(err))

	var verr *models.ValidationError
	switch {
	case errors.Is(err, decoder.ErrUnsupportedMediaType):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload", Fields: verr.Fields})
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

// parseLimit reads the optional limit query parameter; 0 means "not given"
func parseLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	return limit, nil
}
