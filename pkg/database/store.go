package database

import (
	"context"
	"errors"

	"github.com/sguter90/heatmaestro/pkg/models"
)

// ReadingCapacity is how many readings every backend retains
const ReadingCapacity = 1000

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

var (
	// ErrConfigNotFound is returned while no configuration has been saved yet
	ErrConfigNotFound = errors.New("no config found")
	// ErrStoreUnavailable is returned when the backing store cannot be reached
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Store persists sensor readings and the environmental configuration history.
// Readings are kept newest-last up to ReadingCapacity, the oldest being
// evicted first. Saving a configuration appends a new active record.
type Store interface {
	// InsertReading assigns an ID, and a UTC timestamp when absent, then appends
	InsertReading(ctx context.Context, r models.SensorReading) (models.SensorReading, error)
	// GetLatestReadings returns at most limit readings, newest first
	GetLatestReadings(ctx context.Context, limit int) ([]models.SensorReading, error)
	// GetActiveConfig returns ErrConfigNotFound when nothing was saved yet
	GetActiveConfig(ctx context.Context) (models.EnvironmentalConfig, error)
	SaveConfig(ctx context.Context, cfg models.EnvironmentalConfig) (models.EnvironmentalConfig, error)
	// GetConfigHistory returns saved configurations newest first; limit <= 0 means all
	GetConfigHistory(ctx context.Context, limit int) ([]models.EnvironmentalConfig, error)
	Ping(ctx context.Context) error
	Backend() string
	Close() error
}
