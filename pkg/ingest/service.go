package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sguter90/heatmaestro/pkg/arbiter"
	"github.com/sguter90/heatmaestro/pkg/database"
	"github.com/sguter90/heatmaestro/pkg/heatindex"
	"github.com/sguter90/heatmaestro/pkg/metrics"
	"github.com/sguter90/heatmaestro/pkg/models"
	"go.uber.org/zap"
)

const mirrorTimeout = 5 * time.Second

// Options configures a Service. Store and Arbiter are required.
type Options struct {
	Store   database.Store
	Arbiter *arbiter.Arbiter
	// Mirror receives a copy of every stored reading, optional
	Mirror  database.ReadingMirror
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Result is the outcome of one ingestion
type Result struct {
	Reading models.SensorReading `json:"reading"`
	Alerts  models.Alerts        `json:"alerts"`
	Source  arbiter.Snapshot     `json:"source"`
}

// Status summarizes the service for the dashboard
type Status struct {
	Backend       string                     `json:"backend"`
	Breaker       string                     `json:"breaker,omitempty"`
	StoreHealthy  bool                       `json:"store_healthy"`
	Source        arbiter.Snapshot           `json:"source"`
	Config        models.EnvironmentalConfig `json:"config"`
	ConfigSaved   bool                       `json:"config_saved"`
	LatestReading *models.SensorReading      `json:"latest_reading,omitempty"`
	Alerts        *models.Alerts             `json:"alerts,omitempty"`
}

// breakerState is implemented by stores guarded by a circuit breaker
type breakerState interface {
	State() string
}

// IntervalListener is notified with the new sample interval after a config save
type IntervalListener func(time.Duration)

// Service is the single write path for readings and the read path for the
// dashboard. Every reading, simulated or real, goes through Ingest.
type Service struct {
	// mu serializes arbitration, config snapshot and insert per reading
	mu      sync.Mutex
	store   database.Store
	arbiter *arbiter.Arbiter
	mirror  database.ReadingMirror
	metrics *metrics.Metrics
	log     *zap.Logger

	listenersMu sync.RWMutex
	listeners   []IntervalListener
}

// NewService creates a Service
func NewService(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:   opts.Store,
		arbiter: opts.Arbiter,
		mirror:  opts.Mirror,
		metrics: opts.Metrics,
		log:     log,
	}
}

// Ingest arbitrates, enriches and stores a validated reading. The heat index
// is computed against the configuration active at this moment and never
// recomputed afterwards. Readings without an origin are tagged as simulated.
func (s *Service) Ingest(ctx context.Context, in models.ReadingInput) (Result, error) {
	if in.Origin == "" {
		in.Origin = models.OriginSimulator
	}

	stored, cfg, snap, err := s.arbitrateAndStore(ctx, in)

	s.metrics.SetSimulatorActive(snap.SimulatorActive)
	if err != nil {
		s.metrics.IngestFailed()
		s.log.Error("Failed to store reading",
			zap.String("origin", in.Origin),
			zap.String("backend", s.store.Backend()),
			zap.Error(err))
		return Result{Source: snap}, fmt.Errorf("failed to store reading: %w", err)
	}

	alerts := models.EvaluateAlerts(stored, cfg)
	s.record(stored, alerts)
	s.mirrorReading(stored)

	s.log.Debug("Reading stored",
		zap.Int64("id", stored.ID),
		zap.String("origin", stored.Origin),
		zap.Float64("temperature", stored.Temperature),
		zap.Float64("humidity", stored.Humidity),
		zap.Float64("heat_index", stored.HeatIndex),
		zap.String("state", string(snap.State)))

	return Result{Reading: stored, Alerts: alerts, Source: snap}, nil
}

// arbitrateAndStore is the ingestion critical section: arbiter update, config snapshot,
// heat index and insert happen atomically with respect to other readings
func (s *Service) arbitrateAndStore(ctx context.Context, in models.ReadingInput) (models.SensorReading, models.EnvironmentalConfig, arbiter.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.arbiter.Observe(in.Origin)
	cfg := s.configSnapshot(ctx)

	reading := models.SensorReading{
		Temperature: in.Temperature,
		Humidity:    in.Humidity,
		Origin:      in.Origin,
		Timestamp:   in.Timestamp,
	}
	reading.HeatIndex = heatindex.Compute(heatindex.Sensor{
		Temperature: in.Temperature,
		Humidity:    in.Humidity,
	}, cfg)

	stored, err := s.store.InsertReading(ctx, reading)
	return stored, cfg, snap, err
}

// configSnapshot returns the active configuration, or the default one when
// none was saved or the store cannot be read
func (s *Service) configSnapshot(ctx context.Context) models.EnvironmentalConfig {
	cfg, err := s.store.GetActiveConfig(ctx)
	switch {
	case err == nil:
		return cfg
	case errors.Is(err, database.ErrConfigNotFound):
		return models.DefaultConfig()
	default:
		s.log.Warn("Failed to read active config, using default", zap.Error(err))
		return models.DefaultConfig()
	}
}

func (s *Service) record(r models.SensorReading, alerts models.Alerts) {
	source := "other"
	switch {
	case s.arbiter.IsRealDevice(r.Origin):
		source = "device"
	case r.Origin == models.OriginSimulator:
		source = models.OriginSimulator
	}
	s.metrics.ReadingStored(source, r.Temperature, r.Humidity, r.HeatIndex)

	if alerts.Temperature {
		s.metrics.AlertRaised("temperature")
	}
	if alerts.Humidity {
		s.metrics.AlertRaised("humidity")
	}
	if alerts.HeatIndex {
		s.metrics.AlertRaised("heat_index")
	}
	if alerts.Any() {
		s.log.Warn("Reading above configured limits",
			zap.Int64("id", r.ID),
			zap.Bool("temperature", alerts.Temperature),
			zap.Bool("humidity", alerts.Humidity),
			zap.Bool("heat_index", alerts.HeatIndex))
	}
}

func (s *Service) mirrorReading(r models.SensorReading) {
	if s.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	if err := s.mirror.MirrorReading(ctx, r); err != nil {
		s.metrics.MirrorFailed()
		s.log.Warn("Failed to mirror reading", zap.Int64("id", r.ID), zap.Error(err))
	}
}

// Latest returns the most recent readings, newest first. limit is clamped
// to the default and maximum of models.LatestQuery.
func (s *Service) Latest(ctx context.Context, limit int) ([]models.SensorReading, error) {
	q := models.LatestQuery{Limit: limit}.Normalize()
	readings, err := s.store.GetLatestReadings(ctx, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load readings: %w", err)
	}
	return readings, nil
}

// ActiveConfig returns the saved active configuration. found is false while
// nothing has been saved yet, which is not an error.
func (s *Service) ActiveConfig(ctx context.Context) (cfg models.EnvironmentalConfig, found bool, err error) {
	cfg, err = s.store.GetActiveConfig(ctx)
	if errors.Is(err, database.ErrConfigNotFound) {
		return models.EnvironmentalConfig{}, false, nil
	}
	if err != nil {
		return cfg, false, fmt.Errorf("failed to load active config: %w", err)
	}
	return cfg, true, nil
}

// EffectiveConfig returns the configuration heat indices are computed with
func (s *Service) EffectiveConfig(ctx context.Context) (models.EnvironmentalConfig, error) {
	cfg, found, err := s.ActiveConfig(ctx)
	if err != nil {
		return models.DefaultConfig(), err
	}
	if !found {
		return models.DefaultConfig(), nil
	}
	return cfg, nil
}

// SaveConfig stores cfg as the new active configuration and notifies the
// interval listeners
func (s *Service) SaveConfig(ctx context.Context, cfg models.EnvironmentalConfig) (models.EnvironmentalConfig, error) {
	saved, err := s.store.SaveConfig(ctx, cfg)
	if err != nil {
		s.log.Error("Failed to save config", zap.Error(err))
		return saved, fmt.Errorf("failed to save config: %w", err)
	}

	s.metrics.ConfigSaved()
	s.log.Info("Configuration saved",
		zap.String("id", saved.ID.String()),
		zap.String("material", string(saved.MaterialType)),
		zap.Int("interval", saved.IntervalSeconds))

	interval := saved.SampleInterval()
	s.listenersMu.RLock()
	listeners := append([]IntervalListener(nil), s.listeners...)
	s.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(interval)
	}

	return saved, nil
}

// ConfigHistory returns saved configurations, newest first
func (s *Service) ConfigHistory(ctx context.Context, limit int) ([]models.EnvironmentalConfig, error) {
	history, err := s.store.GetConfigHistory(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load config history: %w", err)
	}
	return history, nil
}

// Interval returns the sample interval devices should use
func (s *Service) Interval(ctx context.Context) (time.Duration, error) {
	cfg, err := s.EffectiveConfig(ctx)
	return cfg.SampleInterval(), err
}

// OnIntervalChange registers fn to be called after every config save
func (s *Service) OnIntervalChange(fn IntervalListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SimulatorActive reports whether the generator should emit readings
func (s *Service) SimulatorActive() bool {
	return s.arbiter.SimulatorActive()
}

// Backend names the store in use
func (s *Service) Backend() string {
	return s.store.Backend()
}

// Ping checks the store connection
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Status collects arbitration state, store health, the effective config and
// the latest reading with its alerts
func (s *Service) Status(ctx context.Context) (Status, error) {
	st := Status{
		Backend:      s.store.Backend(),
		StoreHealthy: s.store.Ping(ctx) == nil,
		Source:       s.arbiter.Snapshot(),
	}
	if b, ok := s.store.(breakerState); ok {
		st.Breaker = b.State()
	}

	cfg, found, err := s.ActiveConfig(ctx)
	if err != nil {
		return st, err
	}
	st.ConfigSaved = found
	if !found {
		cfg = models.DefaultConfig()
	}
	st.Config = cfg

	latest, err := s.Latest(ctx, 1)
	if err != nil {
		return st, err
	}
	if len(latest) > 0 {
		r := latest[0]
		alerts := models.EvaluateAlerts(r, cfg)
		st.LatestReading = &r
		st.Alerts = &alerts
	}

	return st, nil
}
