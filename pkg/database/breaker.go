package database

import (
	"context"
	"errors"
	"time"

	"github.com/sguter90/heatmaestro/pkg/models"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerSettings configures BreakerStore
type BreakerSettings struct {
	// Failures is the number of consecutive failures that opens the breaker
	Failures uint32
	// OpenTimeout is how long the breaker stays open before probing again
	OpenTimeout time.Duration
	// Interval resets the failure counts while closed; 0 never resets
	Interval time.Duration
}

// DefaultBreakerSettings returns the settings used for the durable backends
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Failures:    5,
		OpenTimeout: 10 * time.Second,
		Interval:    time.Minute,
	}
}

// BreakerStore wraps a Store with a circuit breaker so a failing backend is
// not hammered by the simulator and dashboard polling. While open, calls fail
// fast with ErrStoreUnavailable.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

var _ Store = (*BreakerStore)(nil)

// NewBreakerStore wraps next
func NewBreakerStore(next Store, s BreakerSettings, log *zap.Logger) *BreakerStore {
	if log == nil {
		log = zap.NewNop()
	}
	if s.Failures == 0 {
		s.Failures = DefaultBreakerSettings().Failures
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     next.Backend(),
		Interval: s.Interval,
		Timeout:  s.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.Failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrConfigNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Store circuit breaker changed state",
				zap.String("backend", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &BreakerStore{next: next, cb: cb}
}

// State returns the breaker state, exposed on the status endpoint
func (s *BreakerStore) State() string {
	return s.cb.State().String()
}

func (s *BreakerStore) InsertReading(ctx context.Context, r models.SensorReading) (models.SensorReading, error) {
	res, err := s.execute(func() (interface{}, error) {
		return s.next.InsertReading(ctx, r)
	})
	if err != nil {
		return r, err
	}
	return res.(models.SensorReading), nil
}

func (s *BreakerStore) GetLatestReadings(ctx context.Context, limit int) ([]models.SensorReading, error) {
	res, err := s.execute(func() (interface{}, error) {
		return s.next.GetLatestReadings(ctx, limit)
	})
	if err != nil {
		return []models.SensorReading{}, err
	}
	return res.([]models.SensorReading), nil
}

func (s *BreakerStore) GetActiveConfig(ctx context.Context) (models.EnvironmentalConfig, error) {
	res, err := s.execute(func() (interface{}, error) {
		return s.next.GetActiveConfig(ctx)
	})
	if err != nil {
		return models.EnvironmentalConfig{}, err
	}
	return res.(models.EnvironmentalConfig), nil
}

func (s *BreakerStore) SaveConfig(ctx context.Context, cfg models.EnvironmentalConfig) (models.EnvironmentalConfig, error) {
	res, err := s.execute(func() (interface{}, error) {
		return s.next.SaveConfig(ctx, cfg)
	})
	if err != nil {
		return cfg, err
	}
	return res.(models.EnvironmentalConfig), nil
}

func (s *BreakerStore) GetConfigHistory(ctx context.Context, limit int) ([]models.EnvironmentalConfig, error) {
	res, err := s.execute(func() (interface{}, error) {
		return s.next.GetConfigHistory(ctx, limit)
	})
	if err != nil {
		return []models.EnvironmentalConfig{}, err
	}
	return res.([]models.EnvironmentalConfig), nil
}

// Ping bypasses the breaker so health checks report the backend itself
func (s *BreakerStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func (s *BreakerStore) Backend() string { return s.next.Backend() }

func (s *BreakerStore) Close() error { return s.next.Close() }

// execute runs fn through the breaker and maps a rejected call to ErrStoreUnavailable
func (s *BreakerStore) execute(fn func() (interface{}, error)) (interface{}, error) {
	res, err := s.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrStoreUnavailable
	}
	return res, err
}
