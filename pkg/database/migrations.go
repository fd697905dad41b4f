package database

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

const (
	createMigrationsTable = `
        CREATE TABLE IF NOT EXISTS schema_migrations (
            version INTEGER PRIMARY KEY,
            name VARCHAR(255) NOT NULL,
            applied_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        )`
	selectAppliedMigrations = `SELECT version FROM schema_migrations ORDER BY version`
	recordMigration         = `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`
)

// Migration is one versioned schema change. Down is the matching rollback
// script and stays empty when none was shipped.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// MigrationsRunner applies the embedded schema migrations in version order
type MigrationsRunner struct {
	db         *sql.DB
	migrations []Migration
	log        *zap.Logger
}

// NewMigrationsRunner loads the embedded migrations for db
func NewMigrationsRunner(db *sql.DB, log *zap.Logger) (*MigrationsRunner, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dir, err := fs.Sub(migrationFiles, "sql")
	if err != nil {
		return nil, fmt.Errorf("failed to open migration directory: %w", err)
	}
	migrations, err := loadMigrations(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	return &MigrationsRunner{
		db:         db,
		migrations: migrations,
		log:        log.Named("migrations"),
	}, nil
}

// Migrations returns the loaded migrations sorted by version
func (r *MigrationsRunner) Migrations() []Migration {
	return slices.Clone(r.migrations)
}

// loadMigrations pairs every NNNNNN_name.up.sql in fsys with its .down.sql
func loadMigrations(fsys fs.FS) ([]Migration, error) {
	paths, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}

	byVersion := make(map[int]*Migration)
	for _, path := range paths {
		file, err := parseMigrationFilename(path)
		if err != nil {
			return nil, err
		}

		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", path, err)
		}

		m, ok := byVersion[file.Version]
		if !ok {
			m = &Migration{Version: file.Version, Name: file.Name}
			byVersion[file.Version] = m
		}
		if m.Name != file.Name {
			return nil, fmt.Errorf("migration %d has conflicting names %q and %q", file.Version, m.Name, file.Name)
		}
		if file.Up {
			m.Up = string(content)
		} else {
			m.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if strings.TrimSpace(m.Up) == "" {
			return nil, fmt.Errorf("migration %d (%s) has no up script", m.Version, m.Name)
		}
		migrations = append(migrations, *m)
	}
	slices.SortFunc(migrations, func(a, b Migration) int {
		return cmp.Compare(a.Version, b.Version)
	})
	return migrations, nil
}

type migrationFile struct {
	Version int
	Name    string
	Up      bool
}

// parseMigrationFilename splits 000001_name.up.sql into version, name and direction
func parseMigrationFilename(filename string) (migrationFile, error) {
	var f migrationFile
	base, isUp := strings.CutSuffix(filename, ".up.sql")
	if !isUp {
		var isDown bool
		if base, isDown = strings.CutSuffix(filename, ".down.sql"); !isDown {
			return f, fmt.Errorf("%s: expected an .up.sql or .down.sql suffix", filename)
		}
	}

	prefix, name, ok := strings.Cut(base, "_")
	if !ok || name == "" {
		return f, fmt.Errorf("%s: missing version prefix", filename)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return f, fmt.Errorf("%s: invalid version %q", filename, prefix)
	}

	f.Version, f.Name, f.Up = version, name, isUp
	return f, nil
}

func (r *MigrationsRunner) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := r.db.QueryContext(ctx, selectAppliedMigrations)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// Run applies every migration that is not yet recorded, each in its own transaction
func (r *MigrationsRunner) Run(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	var pending []Migration
	for _, m := range r.migrations {
		if !applied[m.Version] {
			pending = append(pending, m)
		}
	}
	if len(pending) == 0 {
		r.log.Info("No pending migrations")
		return nil
	}

	for _, m := range pending {
		if err := r.apply(ctx, m); err != nil {
			return err
		}
		r.log.Info("Applied migration", zap.Int("version", m.Version), zap.String("name", m.Name))
	}

	r.log.Info("All migrations completed", zap.Int("applied", len(pending)))
	return nil
}

func (r *MigrationsRunner) apply(ctx context.Context, m Migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, m.Up); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Name, err)
	}
	if _, err := tx.ExecContext(ctx, recordMigration, m.Version, m.Name); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
	}
	return nil
}
