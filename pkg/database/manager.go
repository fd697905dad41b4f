package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/sguter90/heatmaestro/pkg/models"
	"github.com/sguter90/heatmaestro/pkg/settings"
	"go.uber.org/zap"
)

const configColumns = `
        id, active, created_at,
        width, length, height,
        people_min, people_max,
        material_type, material_count, material_width, material_length, material_height,
        temp_limit, humidity_limit, heat_index_limit,
        interval_seconds`

// DatabaseManager is the PostgreSQL Store
type DatabaseManager struct {
	healthChecker *HealthChecker
	log           *zap.Logger
	capacity      int
	now           func() time.Time
}

var _ Store = (*DatabaseManager)(nil)

// NewDatabaseManager connects with exponential backoff, runs the embedded
// migrations and starts health checking
func NewDatabaseManager(ctx context.Context, cfg settings.PostgresConfig, log *zap.Logger) (*DatabaseManager, error) {
	db, err := connectWithRetry(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	connect := func(ctx context.Context) (*sql.DB, error) {
		return connectDatabase(ctx, cfg)
	}
	dm := newDatabaseManager(db, connect, log)

	if err := dm.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}

	dm.healthChecker.Start()

	return dm, nil
}

func newDatabaseManager(db *sql.DB, connect ConnectFunc, log *zap.Logger) *DatabaseManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &DatabaseManager{
		healthChecker: NewHealthChecker(db, 30*time.Second, connect, log),
		log:           log,
		capacity:      ReadingCapacity,
		now:           time.Now,
	}
}

// GetDB returns the current database connection, which changes after a reconnect
func (dm *DatabaseManager) GetDB() *sql.DB {
	return dm.healthChecker.DB()
}

// Close closes the database connection and stops health checking
func (dm *DatabaseManager) Close() error {
	dm.healthChecker.Stop()
	if db := dm.GetDB(); db != nil {
		return db.Close()
	}
	return nil
}

func (dm *DatabaseManager) Backend() string { return BackendPostgres }

func (dm *DatabaseManager) Ping(ctx context.Context) error {
	return dm.healthChecker.EnsureConnection(ctx)
}

// QueryWithHealthCheck executes a query with connection health verification
func (dm *DatabaseManager) QueryWithHealthCheck(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if err := dm.healthChecker.EnsureConnection(ctx); err != nil {
		return nil, err
	}

	return dm.GetDB().QueryContext(ctx, query, args...)
}

// BeginWithHealthCheck starts a transaction with connection health verification
func (dm *DatabaseManager) BeginWithHealthCheck(ctx context.Context) (*sql.Tx, error) {
	if err := dm.healthChecker.EnsureConnection(ctx); err != nil {
		return nil, err
	}

	return dm.GetDB().BeginTx(ctx, nil)
}

// Init initializes the database with migrations
func (dm *DatabaseManager) Init(ctx context.Context) error {
	dm.log.Info("Running database migrations")

	runner, err := NewMigrationsRunner(dm.GetDB(), dm.log)
	if err != nil {
		return fmt.Errorf("failed to create migration runner: %w", err)
	}

	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	dm.log.Info("Database initialization completed")
	return nil
}

// InsertReading appends a reading and trims the table to the retention capacity
// in the same transaction
func (dm *DatabaseManager) InsertReading(ctx context.Context, r models.SensorReading) (models.SensorReading, error) {
	if r.Timestamp.IsZero() {
		r.Timestamp = dm.now()
	}
	r.Timestamp = r.Timestamp.UTC()

	tx, err := dm.BeginWithHealthCheck(ctx)
	if err != nil {
		return r, fmt.Errorf("failed to start transaction: %w", err)
	}

	insertQuery := `
        INSERT INTO sensor_readings (temperature, humidity, heat_index, origin, captured_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `
	if err := tx.QueryRowContext(ctx, insertQuery,
		r.Temperature,
		r.Humidity,
		r.HeatIndex,
		r.Origin,
		r.Timestamp,
	).Scan(&r.ID); err != nil {
		tx.Rollback()
		return r, fmt.Errorf("failed to insert reading: %w", err)
	}

	trimQuery := `
        DELETE FROM sensor_readings
        WHERE id <= (SELECT id FROM sensor_readings ORDER BY id DESC OFFSET $1 LIMIT 1)
    `
	if _, err := tx.ExecContext(ctx, trimQuery, dm.capacity); err != nil {
		tx.Rollback()
		return r, fmt.Errorf("failed to trim readings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return r, fmt.Errorf("failed to commit reading: %w", err)
	}

	return r, nil
}

// GetLatestReadings returns the most recent readings, newest first
func (dm *DatabaseManager) GetLatestReadings(ctx context.Context, limit int) ([]models.SensorReading, error) {
	readings := []models.SensorReading{}
	if limit <= 0 {
		return readings, nil
	}

	query := `
        SELECT id, temperature, humidity, heat_index, origin, captured_at
        FROM sensor_readings
        ORDER BY id DESC
        LIMIT $1
    `

	rows, err := dm.QueryWithHealthCheck(ctx, query, limit)
	if err != nil {
		return readings, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.SensorReading
		if err := rows.Scan(&r.ID, &r.Temperature, &r.Humidity, &r.HeatIndex, &r.Origin, &r.Timestamp); err != nil {
			return readings, fmt.Errorf("failed to scan reading: %w", err)
		}
		r.Timestamp = r.Timestamp.UTC()
		readings = append(readings, r)
	}

	return readings, rows.Err()
}

// GetActiveConfig returns the configuration flagged active
func (dm *DatabaseManager) GetActiveConfig(ctx context.Context) (models.EnvironmentalConfig, error) {
	query := `SELECT` + configColumns + `
        FROM environmental_configs
        WHERE active
        ORDER BY created_at DESC
        LIMIT 1
    `

	rows, err := dm.QueryWithHealthCheck(ctx, query)
	if err != nil {
		return models.EnvironmentalConfig{}, fmt.Errorf("failed to query active config: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return models.EnvironmentalConfig{}, fmt.Errorf("failed to query active config: %w", err)
		}
		return models.EnvironmentalConfig{}, ErrConfigNotFound
	}

	return scanConfig(rows)
}

// SaveConfig supersedes the active configuration and inserts cfg as the new one
func (dm *DatabaseManager) SaveConfig(ctx context.Context, cfg models.EnvironmentalConfig) (models.EnvironmentalConfig, error) {
	cfg.ID = uuid.New()
	cfg.Active = true
	cfg.CreatedAt = dm.now().UTC()

	tx, err := dm.BeginWithHealthCheck(ctx)
	if err != nil {
		return cfg, fmt.Errorf("failed to start transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE environmental_configs SET active = FALSE WHERE active`); err != nil {
		tx.Rollback()
		return cfg, fmt.Errorf("failed to supersede active config: %w", err)
	}

	insertQuery := `
        INSERT INTO environmental_configs (` + configColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
    `
	if _, err := tx.ExecContext(ctx, insertQuery,
		cfg.ID,
		cfg.Active,
		cfg.CreatedAt,
		cfg.Width,
		cfg.Length,
		cfg.Height,
		cfg.PeopleMin,
		cfg.PeopleMax,
		string(cfg.MaterialType),
		cfg.MaterialCount,
		cfg.MaterialWidth,
		cfg.MaterialLength,
		cfg.MaterialHeight,
		cfg.TempLimit,
		cfg.HumidityLimit,
		cfg.HeatIndexLimit,
		cfg.IntervalSeconds,
	); err != nil {
		tx.Rollback()
		return cfg, fmt.Errorf("failed to insert config: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return cfg, fmt.Errorf("failed to commit config: %w", err)
	}

	return cfg, nil
}

// GetConfigHistory returns saved configurations, newest first
func (dm *DatabaseManager) GetConfigHistory(ctx context.Context, limit int) ([]models.EnvironmentalConfig, error) {
	query := `SELECT` + configColumns + `
        FROM environmental_configs
        ORDER BY created_at DESC
    `
	var args []interface{}
	if limit > 0 {
		query += " LIMIT $" + strconv.Itoa(len(args)+1)
		args = append(args, limit)
	}

	configs := []models.EnvironmentalConfig{}

	rows, err := dm.QueryWithHealthCheck(ctx, query, args...)
	if err != nil {
		return configs, fmt.Errorf("failed to query config history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return configs, err
		}
		configs = append(configs, cfg)
	}

	return configs, rows.Err()
}

func scanConfig(rows *sql.Rows) (models.EnvironmentalConfig, error) {
	var cfg models.EnvironmentalConfig
	var materialType string
	err := rows.Scan(
		&cfg.ID,
		&cfg.Active,
		&cfg.CreatedAt,
		&cfg.Width,
		&cfg.Length,
		&cfg.Height,
		&cfg.PeopleMin,
		&cfg.PeopleMax,
		&materialType,
		&cfg.MaterialCount,
		&cfg.MaterialWidth,
		&cfg.MaterialLength,
		&cfg.MaterialHeight,
		&cfg.TempLimit,
		&cfg.HumidityLimit,
		&cfg.HeatIndexLimit,
		&cfg.IntervalSeconds,
	)
	if err != nil {
		return cfg, fmt.Errorf("failed to scan config: %w", err)
	}
	cfg.MaterialType = models.MaterialType(materialType)
	cfg.CreatedAt = cfg.CreatedAt.UTC()
	return cfg, nil
}

// connectWithRetry retries connectDatabase with exponential backoff, at most
// cfg.ConnectRetries attempts
func connectWithRetry(ctx context.Context, cfg settings.PostgresConfig, log *zap.Logger) (*sql.DB, error) {
	attempts := cfg.ConnectRetries
	if attempts < 1 {
		attempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	var db *sql.DB
	err := backoff.Retry(func() error {
		var err error
		db, err = connectDatabase(ctx, cfg)
		if err != nil {
			log.Warn("Database connection attempt failed",
				zap.String("host", cfg.Host),
				zap.Error(err))
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx))

	if err != nil {
		return nil, fmt.Errorf("could not connect to database after %d attempt(s): %w", attempts, err)
	}

	log.Info("Connected to database", zap.String("host", cfg.Host), zap.String("name", cfg.Name))
	return db, nil
}

// connectDatabase establishes a connection to the database
func connectDatabase(ctx context.Context, cfg settings.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Test the connection
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}
