package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sguter90/heatmaestro/pkg/arbiter"
	"github.com/sguter90/heatmaestro/pkg/database"
	"github.com/sguter90/heatmaestro/pkg/decoder"
	"github.com/sguter90/heatmaestro/pkg/ingest"
	"github.com/sguter90/heatmaestro/pkg/metrics"
	"github.com/sguter90/heatmaestro/pkg/models"
	"github.com/sguter90/heatmaestro/pkg/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenStore fails every call
type brokenStore struct {
	*database.MemoryStore
}

func (brokenStore) InsertReading(context.Context, models.SensorReading) (models.SensorReading, error) {
	return models.SensorReading{}, database.ErrStoreUnavailable
}

func (brokenStore) GetLatestReadings(context.Context, int) ([]models.SensorReading, error) {
	return nil, database.ErrStoreUnavailable
}

func (brokenStore) GetActiveConfig(context.Context) (models.EnvironmentalConfig, error) {
	return models.EnvironmentalConfig{}, database.ErrStoreUnavailable
}

func (brokenStore) SaveConfig(context.Context, models.EnvironmentalConfig) (models.EnvironmentalConfig, error) {
	return models.EnvironmentalConfig{}, database.ErrStoreUnavailable
}

func (brokenStore) Ping(context.Context) error { return database.ErrStoreUnavailable }

type testServer struct {
	handler http.Handler
	service *ingest.Service
	store   database.Store
}

func setupTestServer(t *testing.T, store database.Store) *testServer {
	t.Helper()
	if store == nil {
		store = database.NewMemoryStore(database.ReadingCapacity)
	}

	service := ingest.NewService(ingest.Options{
		Store:   store,
		Arbiter: arbiter.New(arbiter.Options{SimulatorEnabled: true}),
		Metrics: metrics.NewMetrics(),
	})
	server := settings.Defaults().Server
	server.AllowedOrigins = []string{"http://dashboard.local"}

	rm := NewRouteManager(service, decoder.DefaultRegistry(), metrics.NewMetrics(), server, nil)
	rm.Setup()

	return &testServer{handler: rm.Handler(), service: service, store: store}
}

func (ts *testServer) do(t *testing.T, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealthHandler(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(t, "GET", "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, database.BackendMemory, body["backend"])
}

func TestHealthHandler_Degraded(t *testing.T) {
	ts := setupTestServer(t, brokenStore{database.NewMemoryStore(10)})

	rec := ts.do(t, "GET", "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestPostReadingHandler(t *testing.T) {
	testCases := []struct {
		name         string
		path         string
		contentType  string
		body         string
		expectedCode int
	}{
		{"JSON", "/api/v1/readings", "application/json", `{"temperature": 25, "humidity": 50, "origin": "simulator"}`, http.StatusOK},
		{"Legacy keys on legacy path", "/api/lecturas", "application/json", `{"temperatura": 25, "humedad": 50, "origen": "raspberry-picoW"}`, http.StatusOK},
		{"Form body", "/api/v1/readings", "application/x-www-form-urlencoded", "temperature=25&humidity=50", http.StatusOK},
		{"No content type", "/api/v1/readings", "", `{"temperature": 25, "humidity": 50}`, http.StatusOK},
		{"Missing humidity", "/api/v1/readings", "application/json", `{"temperature": 25}`, http.StatusBadRequest},
		{"Broken JSON", "/api/v1/readings", "application/json", `{"temperature":`, http.StatusBadRequest},
		{"Unsupported media type", "/api/v1/readings", "text/csv", "25,50", http.StatusUnsupportedMediaType},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts := setupTestServer(t, nil)

			rec := ts.do(t, "POST", tc.path, tc.contentType, tc.body)
			assert.Equal(t, tc.expectedCode, rec.Code, rec.Body.String())

			if tc.expectedCode != http.StatusOK {
				var body errorResponse
				decodeBody(t, rec, &body)
				assert.NotEmpty(t, body.Error)
				return
			}

			var body readingResponse
			decodeBody(t, rec, &body)
			assert.True(t, body.OK)
			assert.Equal(t, int64(1), body.Reading.ID)
			assert.Equal(t, 25.0, body.Reading.Temperature)
			assert.Greater(t, body.Reading.HeatIndex, 0.0)
		})
	}
}

func TestPostReadingHandler_MissingFieldsReported(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(t, "POST", "/api/v1/readings", "application/json", `{"origin": "x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorResponse
	decodeBody(t, rec, &body)
	assert.Contains(t, body.Fields, "temperature")
	assert.Contains(t, body.Fields, "humidity")
}

func TestPostReadingHandler_RejectedReadingLeavesNoTrace(t *testing.T) {
	ts := setupTestServer(t, nil)

	bodies := []string{
		`{"temperature": 25, "origen": "raspberry"}`,
		`{"temperature": "NaN", "humidity": 50, "origin": "raspberry"}`,
		`{"temperatura": 25, "humedad": "Inf", "origen": "raspberry"}`,
	}
	for _, body := range bodies {
		rec := ts.do(t, "POST", "/api/v1/readings", "application/json", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec := ts.do(t, "GET", "/api/v1/readings/latest", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = ts.do(t, "GET", "/api/v1/status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status ingest.Status
	decodeBody(t, rec, &status)
	assert.Equal(t, arbiter.StateSimulating, status.Source.State)
	assert.True(t, status.Source.SimulatorActive)
	assert.Nil(t, status.LatestReading)
}

func TestWriteJSON_UnencodableValue(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]float64{"temperature": math.NaN()})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body errorResponse
	decodeBody(t, rec, &body)
	assert.NotEmpty(t, body.Error)
}

func TestPostReadingHandler_StoreFailure(t *testing.T) {
	ts := setupTestServer(t, brokenStore{database.NewMemoryStore(10)})

	rec := ts.do(t, "POST", "/api/v1/readings", "application/json", `{"temperature": 25, "humidity": 50}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPostReadingHandler_RealDeviceDisablesSimulator(t *testing.T) {
	ts := setupTestServer(t, nil)
	require.True(t, ts.service.SimulatorActive())

	rec := ts.do(t, "POST", "/api/lecturas", "application/json", `{"temperatura": 24, "humedad": 40, "origen": "Raspberry-PicoW"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, ts.service.SimulatorActive())

	rec = ts.do(t, "GET", "/api/v1/status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status ingest.Status
	decodeBody(t, rec, &status)
	assert.Equal(t, arbiter.StateRealDevice, status.Source.State)
	require.NotNil(t, status.LatestReading)
	assert.Equal(t, "Raspberry-PicoW", status.LatestReading.Origin)
}

func TestLatestReadingsHandler(t *testing.T) {
	ts := setupTestServer(t, nil)
	for i := 0; i < 30; i++ {
		rec := ts.do(t, "POST", "/api/v1/readings", "application/json", `{"temperature": 25, "humidity": 50}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	testCases := []struct {
		path         string
		expectedCode int
		expectedLen  int
	}{
		{"/api/v1/readings/latest", http.StatusOK, models.DefaultLatestLimit},
		{"/api/v1/readings/latest?limit=5", http.StatusOK, 5},
		{"/api/v1/readings/latest?limit=500", http.StatusOK, 30},
		{"/api/v1/readings/latest?limit=abc", http.StatusBadRequest, 0},
	}

	for _, tc := range testCases {
		rec := ts.do(t, "GET", tc.path, "", "")
		require.Equal(t, tc.expectedCode, rec.Code, tc.path)
		if tc.expectedCode != http.StatusOK {
			continue
		}

		var readings []models.SensorReading
		decodeBody(t, rec, &readings)
		assert.Len(t, readings, tc.expectedLen, tc.path)
		assert.Equal(t, int64(30), readings[0].ID, tc.path)
	}
}

func TestLegacyLatestReadingsHandler(t *testing.T) {
	ts := setupTestServer(t, nil)
	for i := 0; i < 4; i++ {
		rec := ts.do(t, "POST", "/api/lecturas", "application/json", `{"temperatura": 26.5, "humedad": 41, "origen": "raspberry-picoW"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := ts.do(t, "GET", "/api/lecturas/ultimas?limit=3", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []map[string]interface{}
	decodeBody(t, rec, &rows)
	require.Len(t, rows, 3)

	row := rows[0]
	assert.Equal(t, 4.0, row["IdLectura"])
	assert.Equal(t, 26.5, row["Temperatura"])
	assert.Equal(t, 41.0, row["Humedad"])
	assert.Equal(t, "raspberry-picoW", row["Origen"])
	assert.Contains(t, row, "IndiceTermico")
	assert.NotEmpty(t, row["FechaHora"])
	assert.NotContains(t, row, "temperature")

	rec = ts.do(t, "GET", "/api/lecturas/ultimas?limit=abc", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLatestReadingsHandler_EmptyIsArray(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(t, "GET", "/api/v1/readings/latest", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestConfigHandlers(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(t, "GET", "/api/v1/config/active", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var notFound errorResponse
	decodeBody(t, rec, &notFound)
	assert.Equal(t, "no config found", notFound.Error)

	rec = ts.do(t, "GET", "/api/v1/config/interval", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"interval": 2}`, rec.Body.String())

	body := `{"width": "6", "length": 10, "height": 3, "peopleMin": 1, "peopleMax": 4,
		"materialType": "Paper", "materialCount": 20, "materialWidth": 0.5, "materialLength": 0.5,
		"materialHeight": 0.5, "tempLimit": 30, "humidityLimit": 60, "heatIndexLimit": 35, "interval": 5}`
	rec = ts.do(t, "POST", "/api/v1/config", "application/json", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var saved models.EnvironmentalConfig
	decodeBody(t, rec, &saved)
	assert.True(t, saved.Active)
	assert.Equal(t, models.MaterialPaper, saved.MaterialType)
	assert.Equal(t, 6.0, saved.Width)

	rec = ts.do(t, "GET", "/api/v1/config/active", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var active models.EnvironmentalConfig
	decodeBody(t, rec, &active)
	assert.Equal(t, saved.ID, active.ID)

	rec = ts.do(t, "GET", "/api/config/intervalo", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"intervalo": 5}`, rec.Body.String())

	rec = ts.do(t, "POST", "/api/config", "application/json", `{"interval": 3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok": true}`, rec.Body.String())

	rec = ts.do(t, "GET", "/api/v1/config/history?limit=1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []models.EnvironmentalConfig
	decodeBody(t, rec, &history)
	require.Len(t, history, 1)
	assert.Equal(t, 3, history[0].IntervalSeconds)
}

func TestSaveConfigHandler_Invalid(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(t, "POST", "/api/v1/config", "application/json", `{"width": "wide", "peopleMin": -2}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorResponse
	decodeBody(t, rec, &body)
	assert.Contains(t, body.Fields, "width")

	rec = ts.do(t, "POST", "/api/v1/config", "application/json", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveConfigHandler_NotifiesInterval(t *testing.T) {
	ts := setupTestServer(t, nil)

	got := make(chan time.Duration, 1)
	ts.service.OnIntervalChange(func(d time.Duration) { got <- d })

	rec := ts.do(t, "POST", "/api/v1/config", "application/json", `{"interval": 7}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 7*time.Second, <-got)
}

func TestCORS(t *testing.T) {
	ts := setupTestServer(t, nil)

	req := httptest.NewRequest("OPTIONS", "/api/v1/readings", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://dashboard.local", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://evil.local")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.do(t, "GET", "/health", "", "")

	rec := ts.do(t, "GET", "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "heatmaestro_http_requests_total")
}

func TestLegacyPing(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(t, "GET", "/api", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok": true}`, rec.Body.String())
}

func TestPostReadingHandler_BodyTooLarge(t *testing.T) {
	ts := setupTestServer(t, nil)

	body := `{"temperature": 25, "humidity": 50, "origin": "` + string(bytes.Repeat([]byte("a"), maxBodySize)) + `"}`
	rec := ts.do(t, "POST", "/api/v1/readings", "application/json", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
