package database

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sguter90/heatmaestro/pkg/models"
)

// MemoryStore keeps readings in a fixed-size ring buffer and the config
// history in a slice. It is a complete backend, used when no durable store
// is configured or reachable.
type MemoryStore struct {
	mu       sync.RWMutex
	readings []models.SensorReading
	capacity int
	nextID   int64
	configs  []models.EnvironmentalConfig
	now      func() time.Time
}

// NewMemoryStore creates a store retaining at most capacity readings
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = ReadingCapacity
	}
	return &MemoryStore{
		readings: make([]models.SensorReading, 0, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

func (s *MemoryStore) InsertReading(_ context.Context, r models.SensorReading) (models.SensorReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	r.ID = s.nextID
	if r.Timestamp.IsZero() {
		r.Timestamp = s.now()
	}
	r.Timestamp = r.Timestamp.UTC()

	if len(s.readings) >= s.capacity {
		copy(s.readings, s.readings[1:])
		s.readings[len(s.readings)-1] = r
	} else {
		s.readings = append(s.readings, r)
	}
	return r, nil
}

func (s *MemoryStore) GetLatestReadings(_ context.Context, limit int) ([]models.SensorReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.readings)
	if limit < n {
		n = limit
	}
	if n <= 0 {
		return []models.SensorReading{}, nil
	}

	out := make([]models.SensorReading, 0, n)
	for i := len(s.readings) - 1; i >= len(s.readings)-n; i-- {
		out = append(out, s.readings[i])
	}
	return out, nil
}

func (s *MemoryStore) GetActiveConfig(_ context.Context) (models.EnvironmentalConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.configs) == 0 {
		return models.EnvironmentalConfig{}, ErrConfigNotFound
	}
	return s.configs[len(s.configs)-1], nil
}

func (s *MemoryStore) SaveConfig(_ context.Context, cfg models.EnvironmentalConfig) (models.EnvironmentalConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.configs) > 0 {
		s.configs[len(s.configs)-1].Active = false
	}

	cfg.ID = uuid.New()
	cfg.Active = true
	cfg.CreatedAt = s.now().UTC()
	s.configs = append(s.configs, cfg)
	return cfg, nil
}

func (s *MemoryStore) GetConfigHistory(_ context.Context, limit int) ([]models.EnvironmentalConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.configs)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]models.EnvironmentalConfig, 0, n)
	for i := len(s.configs) - 1; i >= len(s.configs)-n; i-- {
		out = append(out, s.configs[i])
	}
	return out, nil
}

// Len returns the number of readings currently retained
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.readings)
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Backend() string { return BackendMemory }

func (s *MemoryStore) Close() error { return nil }
