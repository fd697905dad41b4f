package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "heatmaestro"

// Metrics holds the Prometheus collectors of the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	readingsTotal     *prometheus.CounterVec
	ingestFailures    prometheus.Counter
	alertsTotal       *prometheus.CounterVec
	configSaves       prometheus.Counter
	mirrorErrors      prometheus.Counter
	temperature       prometheus.Gauge
	humidity          prometheus.Gauge
	heatIndex         prometheus.Gauge
	simulatorActive   prometheus.Gauge
}

// NewMetrics creates the collectors on a dedicated registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		readingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_ingested_total",
			Help:      "Readings stored, by source kind.",
		}, []string{"source"}),
		ingestFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_failures_total",
			Help:      "Readings that could not be stored.",
		}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Readings above a configured limit, by limit.",
		}, []string{"limit"}),
		configSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_saves_total",
			Help:      "Environmental configurations saved.",
		}),
		mirrorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_errors_total",
			Help:      "Readings that could not be copied to the mirror.",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Temperature of the last stored reading.",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "humidity_percent",
			Help:      "Relative humidity of the last stored reading.",
		}),
		heatIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heat_index",
			Help:      "Heat index of the last stored reading.",
		}),
		simulatorActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "simulator_active",
			Help:      "1 while simulated readings are authoritative.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.readingsTotal,
		m.ingestFailures,
		m.alertsTotal,
		m.configSaves,
		m.mirrorErrors,
		m.temperature,
		m.humidity,
		m.heatIndex,
		m.simulatorActive,
	)

	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests and observes latency for route
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		duration := time.Since(start).Seconds()
		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(duration)
		}
	})
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ReadingStored records a stored reading and its values
func (m *Metrics) ReadingStored(source string, temperature, humidity, heatIndex float64) {
	if m == nil {
		return
	}
	m.readingsTotal.WithLabelValues(source).Inc()
	m.temperature.Set(temperature)
	m.humidity.Set(humidity)
	m.heatIndex.Set(heatIndex)
}

func (m *Metrics) IngestFailed() {
	if m == nil {
		return
	}
	m.ingestFailures.Inc()
}

// AlertRaised counts a reading above the named limit
func (m *Metrics) AlertRaised(limit string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(limit).Inc()
}

func (m *Metrics) ConfigSaved() {
	if m == nil {
		return
	}
	m.configSaves.Inc()
}

func (m *Metrics) MirrorFailed() {
	if m == nil {
		return
	}
	m.mirrorErrors.Inc()
}

func (m *Metrics) SetSimulatorActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.simulatorActive.Set(1)
	} else {
		m.simulatorActive.Set(0)
	}
}
