package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration
	a := NewMetrics()
	b := NewMetrics()

	a.ConfigSaved()

	assert.Contains(t, scrape(t, a), "heatmaestro_config_saves_total 1")
	assert.Contains(t, scrape(t, b), "heatmaestro_config_saves_total 0")
}

func TestMetrics_ReadingStored(t *testing.T) {
	m := NewMetrics()

	m.ReadingStored("device", 25, 50, 35.85)
	m.ReadingStored("simulator", 26, 51, 36.1)
	m.AlertRaised("heat_index")
	m.SetSimulatorActive(true)
	m.IngestFailed()
	m.MirrorFailed()

	body := scrape(t, m)
	assert.Contains(t, body, `heatmaestro_readings_ingested_total{source="device"} 1`)
	assert.Contains(t, body, `heatmaestro_readings_ingested_total{source="simulator"} 1`)
	assert.Contains(t, body, "heatmaestro_temperature_celsius 26")
	assert.Contains(t, body, "heatmaestro_heat_index 36.1")
	assert.Contains(t, body, `heatmaestro_alerts_total{limit="heat_index"} 1`)
	assert.Contains(t, body, "heatmaestro_simulator_active 1")
	assert.Contains(t, body, "heatmaestro_ingest_failures_total 1")
	assert.Contains(t, body, "heatmaestro_mirror_errors_total 1")
}

func TestMetrics_WrapHandler(t *testing.T) {
	m := NewMetrics()
	h := m.WrapHandler("/api/v1/readings", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/readings", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Contains(t, scrape(t, m), `heatmaestro_http_requests_total{route="/api/v1/readings",status="400"} 1`)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ReadingStored("device", 1, 2, 3)
		m.IngestFailed()
		m.AlertRaised("temperature")
		m.ConfigSaved()
		m.MirrorFailed()
		m.SetSimulatorActive(false)
	})

	h := m.WrapHandler("/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
