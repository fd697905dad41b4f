package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sguter90/heatmaestro/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// flakyStore fails every call while down is set
type flakyStore struct {
	*MemoryStore
	down  bool
	calls int
}

func (s *flakyStore) InsertReading(ctx context.Context, r models.SensorReading) (models.SensorReading, error) {
	s.calls++
	if s.down {
		return r, errors.New("connection refused")
	}
	return s.MemoryStore.InsertReading(ctx, r)
}

func (s *flakyStore) GetActiveConfig(ctx context.Context) (models.EnvironmentalConfig, error) {
	s.calls++
	if s.down {
		return models.EnvironmentalConfig{}, errors.New("connection refused")
	}
	return s.MemoryStore.GetActiveConfig(ctx)
}

func (s *flakyStore) Backend() string { return "flaky" }

func newFlakyBreaker(failures uint32) (*flakyStore, *BreakerStore) {
	inner := &flakyStore{MemoryStore: NewMemoryStore(10)}
	return inner, NewBreakerStore(inner, BreakerSettings{
		Failures:    failures,
		OpenTimeout: time.Hour,
	}, zap.NewNop())
}

func TestBreakerStore_PassesThrough(t *testing.T) {
	_, s := newFlakyBreaker(3)
	ctx := context.Background()

	r, err := s.InsertReading(ctx, models.SensorReading{Temperature: 21, Humidity: 40})
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.ID)

	readings, err := s.GetLatestReadings(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, readings, 1)

	saved, err := s.SaveConfig(ctx, models.DefaultConfig())
	require.NoError(t, err)
	history, err := s.GetConfigHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, saved.ID, history[0].ID)

	assert.Equal(t, "flaky", s.Backend())
	assert.Equal(t, "closed", s.State())
}

func TestBreakerStore_OpensAfterConsecutiveFailures(t *testing.T) {
	inner, s := newFlakyBreaker(3)
	inner.down = true
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.InsertReading(ctx, models.SensorReading{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrStoreUnavailable)
	}
	assert.Equal(t, "open", s.State())

	_, err := s.InsertReading(ctx, models.SensorReading{})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, 3, inner.calls, "open breaker must not reach the backend")
}

func TestBreakerStore_ConfigNotFoundIsNotAFailure(t *testing.T) {
	inner, s := newFlakyBreaker(2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.GetActiveConfig(ctx)
		assert.ErrorIs(t, err, ErrConfigNotFound)
	}
	assert.Equal(t, "closed", s.State())
	assert.Equal(t, 5, inner.calls)
}
