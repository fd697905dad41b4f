package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	defaultCheckInterval = 30 * time.Second
	checkTimeout         = 5 * time.Second
	ensureTimeout        = 2 * time.Second
	reconnectAttempts    = 2
)

// ConnectFunc opens a fresh connection, used to recover from a lost one
type ConnectFunc func(ctx context.Context) (*sql.DB, error)

// HealthChecker pings the connection on an interval. When a ping fails and a
// ConnectFunc is available the connection is replaced.
type HealthChecker struct {
	interval time.Duration
	connect  ConnectFunc
	log      *zap.Logger

	mu      sync.RWMutex
	db      *sql.DB
	healthy bool

	// guarded by mu
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHealthChecker creates a checker for db. connect may be nil, in which
// case a failed check only marks the connection unhealthy.
func NewHealthChecker(db *sql.DB, interval time.Duration, connect ConnectFunc, log *zap.Logger) *HealthChecker {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &HealthChecker{
		interval: interval,
		connect:  connect,
		log:      log,
		db:       db,
		healthy:  true,
	}
}

// Start launches the check loop. Starting a running checker is a no-op.
func (hc *HealthChecker) Start() {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if hc.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	hc.cancel = cancel
	hc.done = make(chan struct{})
	go hc.loop(ctx, hc.done)
}

// Stop ends the check loop and waits for it to return. Safe to call more than once.
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	cancel, done := hc.cancel, hc.done
	hc.cancel, hc.done = nil, nil
	hc.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (hc *HealthChecker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(hc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hc.check(ctx)
		}
	}
}

// DB returns the connection currently in use
func (hc *HealthChecker) DB() *sql.DB {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.db
}

// IsHealthy returns the result of the last check
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.healthy
}

func (hc *HealthChecker) setHealthy(healthy bool) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if healthy && !hc.healthy {
		hc.log.Info("Database connection restored")
	}
	hc.healthy = healthy
}

func (hc *HealthChecker) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	err := hc.DB().PingContext(pingCtx)
	cancel()

	if err == nil {
		hc.setHealthy(true)
		return
	}

	hc.log.Error("Database health check failed", zap.Error(err))
	hc.setHealthy(false)

	if hc.connect == nil {
		return
	}
	if err := hc.reconnect(ctx); err != nil {
		hc.log.Error("Failed to reconnect to database", zap.Error(err))
	}
}

// reconnect retries connect a few times with exponential backoff and swaps
// the new connection in. The old one is closed after the swap.
func (hc *HealthChecker) reconnect(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond

	var fresh *sql.DB
	err := backoff.Retry(func() error {
		db, err := hc.connect(ctx)
		if err != nil {
			return err
		}
		fresh = db
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, reconnectAttempts), ctx))
	if err != nil {
		return err
	}

	hc.mu.Lock()
	old := hc.db
	hc.db = fresh
	hc.healthy = true
	hc.mu.Unlock()

	if old != nil && old != fresh {
		old.Close()
	}
	hc.log.Info("Database connection re-established")
	return nil
}

// EnsureConnection fails fast with ErrStoreUnavailable when the last check
// failed, and otherwise pings before the caller runs a query.
func (hc *HealthChecker) EnsureConnection(ctx context.Context) error {
	if !hc.IsHealthy() {
		return fmt.Errorf("database connection is not healthy: %w", ErrStoreUnavailable)
	}

	pingCtx, cancel := context.WithTimeout(ctx, ensureTimeout)
	defer cancel()

	if err := hc.DB().PingContext(pingCtx); err != nil {
		hc.setHealthy(false)
		return fmt.Errorf("database connection check failed: %w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
