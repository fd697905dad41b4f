package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sguter90/heatmaestro/pkg/models"
	"github.com/sguter90/heatmaestro/pkg/settings"
)

const (
	redisReadingsKey = "heatmaestro:readings"
	redisSequenceKey = "heatmaestro:readings:seq"
	redisConfigsKey  = "heatmaestro:configs"
)

// RedisStore keeps readings in a capped list (newest at the head) and the
// configuration history in a second list whose head is the active record
type RedisStore struct {
	client   *redis.Client
	capacity int64
	now      func() time.Time
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, cfg settings.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}

	return newRedisStore(client), nil
}

func newRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:   client,
		capacity: ReadingCapacity,
		now:      time.Now,
	}
}

func (s *RedisStore) InsertReading(ctx context.Context, r models.SensorReading) (models.SensorReading, error) {
	id, err := s.client.Incr(ctx, redisSequenceKey).Result()
	if err != nil {
		return r, fmt.Errorf("failed to allocate reading id: %w", err)
	}

	r.ID = id
	if r.Timestamp.IsZero() {
		r.Timestamp = s.now()
	}
	r.Timestamp = r.Timestamp.UTC()

	data, err := json.Marshal(r)
	if err != nil {
		return r, fmt.Errorf("failed to encode reading: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, redisReadingsKey, data)
		pipe.LTrim(ctx, redisReadingsKey, 0, s.capacity-1)
		return nil
	})
	if err != nil {
		return r, fmt.Errorf("failed to store reading: %w", err)
	}

	return r, nil
}

func (s *RedisStore) GetLatestReadings(ctx context.Context, limit int) ([]models.SensorReading, error) {
	readings := []models.SensorReading{}
	if limit <= 0 {
		return readings, nil
	}

	items, err := s.client.LRange(ctx, redisReadingsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return readings, fmt.Errorf("failed to read readings: %w", err)
	}

	for _, item := range items {
		var r models.SensorReading
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return readings, fmt.Errorf("failed to decode reading: %w", err)
		}
		r.Timestamp = r.Timestamp.UTC()
		readings = append(readings, r)
	}
	return readings, nil
}

func (s *RedisStore) GetActiveConfig(ctx context.Context) (models.EnvironmentalConfig, error) {
	item, err := s.client.LIndex(ctx, redisConfigsKey, 0).Result()
	if errors.Is(err, redis.Nil) {
		return models.EnvironmentalConfig{}, ErrConfigNotFound
	}
	if err != nil {
		return models.EnvironmentalConfig{}, fmt.Errorf("failed to read active config: %w", err)
	}

	cfg, err := decodeRedisConfig(item)
	if err != nil {
		return cfg, err
	}
	cfg.Active = true
	return cfg, nil
}

func (s *RedisStore) SaveConfig(ctx context.Context, cfg models.EnvironmentalConfig) (models.EnvironmentalConfig, error) {
	cfg.ID = uuid.New()
	cfg.Active = true
	cfg.CreatedAt = s.now().UTC()

	data, err := json.Marshal(cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to encode config: %w", err)
	}

	if err := s.client.LPush(ctx, redisConfigsKey, data).Err(); err != nil {
		return cfg, fmt.Errorf("failed to store config: %w", err)
	}
	return cfg, nil
}

func (s *RedisStore) GetConfigHistory(ctx context.Context, limit int) ([]models.EnvironmentalConfig, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	configs := []models.EnvironmentalConfig{}
	items, err := s.client.LRange(ctx, redisConfigsKey, 0, stop).Result()
	if err != nil {
		return configs, fmt.Errorf("failed to read config history: %w", err)
	}

	for i, item := range items {
		cfg, err := decodeRedisConfig(item)
		if err != nil {
			return configs, err
		}
		// only the head of the list is active
		cfg.Active = i == 0
		configs = append(configs, cfg)
	}
	return configs, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Backend() string { return BackendRedis }

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeRedisConfig(item string) (models.EnvironmentalConfig, error) {
	var cfg models.EnvironmentalConfig
	if err := json.Unmarshal([]byte(item), &cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.CreatedAt = cfg.CreatedAt.UTC()
	return cfg, nil
}
