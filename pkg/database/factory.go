package database

import (
	"context"
	"fmt"

	"github.com/sguter90/heatmaestro/pkg/settings"
	"go.uber.org/zap"
)

// Open returns the Store selected by cfg.Backend. A durable backend that
// cannot be reached at startup is replaced by a MemoryStore; durable
// backends are wrapped in a BreakerStore.
func Open(ctx context.Context, cfg settings.StorageConfig, log *zap.Logger) (Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	switch cfg.Backend {
	case BackendMemory, "":
		log.Info("Using in-memory store", zap.Int("capacity", ReadingCapacity))
		return NewMemoryStore(ReadingCapacity), nil

	case BackendPostgres:
		dm, err := NewDatabaseManager(ctx, cfg.Postgres, log)
		if err != nil {
			return fallback(log, BackendPostgres, err), nil
		}
		return NewBreakerStore(dm, DefaultBreakerSettings(), log), nil

	case BackendRedis:
		rs, err := NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return fallback(log, BackendRedis, err), nil
		}
		log.Info("Connected to redis", zap.String("addr", cfg.Redis.Addr))
		return NewBreakerStore(rs, DefaultBreakerSettings(), log), nil
	}

	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

func fallback(log *zap.Logger, backend string, err error) Store {
	log.Warn("Durable store unreachable, falling back to in-memory store",
		zap.String("backend", backend),
		zap.Error(err))
	return NewMemoryStore(ReadingCapacity)
}
