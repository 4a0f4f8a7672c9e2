package storage

// Schema migrations live as embedded SQL files, one directory per driver:
//
//	migrations/<driver>/NNNN_name.up.sql
//	migrations/<driver>/NNNN_name.down.sql
//
// The applied version is tracked in schema_migrations. Each file runs in its
// own transaction together with its bookkeeping row.

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"slices"
	"strconv"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/**/*.sql
var migrationsFS embed.FS

var migrationName = regexp.MustCompile(`^(\d{4})_([^.]+)\.(up|down)\.sql$`)

// ErrSchemaCurrent is returned by Plan when the schema already sits at the target.
var ErrSchemaCurrent = errors.New("schema already at target version")

// Migration is one embedded SQL step.
type Migration struct {
	Version int
	Name    string
	Up      bool
	SQL     string
}

// MigrationRunner applies the embedded migrations for one driver.
type MigrationRunner struct {
	db     *sqlx.DB
	driver string
	logger *slog.Logger
}

func NewMigrationRunner(db *sqlx.DB, driver string) *MigrationRunner {
	return &MigrationRunner{
		db:     db,
		driver: driver,
		logger: slog.With("component", "migrations", "driver", driver),
	}
}

func migrationDir(driver string) (string, error) {
	switch driver {
	case sqliteDriver:
		return "migrations/sqlite3", nil
	case postgresDriver:
		return "migrations/postgres", nil
	}
	return "", fmt.Errorf("unsupported driver: %s", driver)
}

// available reads every well-formed migration file for the driver.
func (mr *MigrationRunner) available() ([]Migration, error) {
	dir, err := migrationDir(mr.driver)
	if err != nil {
		return nil, err
	}

	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var out []Migration
	for _, entry := range entries {
		m := migrationName.FindStringSubmatch(entry.Name())
		if entry.IsDir() || m == nil {
			continue
		}
		body, err := fs.ReadFile(migrationsFS, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		version, _ := strconv.Atoi(m[1])
		out = append(out, Migration{Version: version, Name: m[2], Up: m[3] == "up", SQL: string(body)})
	}
	return out, nil
}

// GetLatestMigrationVersion is the highest version with an up file.
func (mr *MigrationRunner) GetLatestMigrationVersion() (int, error) {
	all, err := mr.available()
	if err != nil {
		return -1, err
	}
	latest := 0
	for _, m := range all {
		if m.Up && m.Version > latest {
			latest = m.Version
		}
	}
	return latest, nil
}

// Plan lists the steps taking the schema from current to target, in the
// order they must run. A target of -1 means the latest version.
func (mr *MigrationRunner) Plan(current, target int) ([]Migration, error) {
	all, err := mr.available()
	if err != nil {
		return nil, err
	}
	if target == -1 {
		if target, err = mr.GetLatestMigrationVersion(); err != nil {
			return nil, err
		}
	}
	if current == target {
		return nil, ErrSchemaCurrent
	}

	up := target > current
	var steps []Migration
	for _, m := range all {
		switch {
		case up && m.Up && m.Version > current && m.Version <= target:
			steps = append(steps, m)
		case !up && !m.Up && m.Version <= current && m.Version > target:
			steps = append(steps, m)
		}
	}

	slices.SortFunc(steps, func(a, b Migration) int {
		if up {
			return a.Version - b.Version
		}
		return b.Version - a.Version
	})
	return steps, nil
}

const schemaTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL
)`

// Migrate brings the schema to target. -1 means the latest version.
func (mr *MigrationRunner) Migrate(ctx context.Context, target int) error {
	if _, err := mr.db.ExecContext(ctx, schemaTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := schemaVersion(ctx, mr.db)
	if err != nil {
		return err
	}

	steps, err := mr.Plan(current, target)
	if errors.Is(err, ErrSchemaCurrent) {
		mr.logger.Debug("Schema up to date", "version", current)
		return nil
	}
	if err != nil {
		return err
	}

	for _, m := range steps {
		if err := mr.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %04d_%s: %w", m.Version, m.Name, err)
		}
		mr.logger.Info("Applied migration", "version", m.Version, "name", m.Name, "up", m.Up)
	}
	return nil
}

func (mr *MigrationRunner) apply(ctx context.Context, m Migration) error {
	tx, err := mr.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return err
	}

	if m.Up {
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, CURRENT_TIMESTAMP)`),
			m.Version, m.Name)
	} else {
		_, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM schema_migrations WHERE version = ?`), m.Version)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func schemaVersion(ctx context.Context, db *sqlx.DB) (int, error) {
	var version sql.NullInt64
	if err := db.GetContext(ctx, &version, `SELECT MAX(version) FROM schema_migrations`); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(version.Int64), nil
}

func (p *SQLProvider) runMigrations(ctx context.Context) error {
	return NewMigrationRunner(p.db, p.driver).Migrate(ctx, -1)
}
