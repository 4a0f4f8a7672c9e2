package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"table-call/internal/config"
)

type SQLProvider struct {
	db     *sqlx.DB
	driver string

	config *config.Storage

	logger *slog.Logger
}

func NewSQLProvider(cfg *config.Storage, driverName string, dataSource string) (*SQLProvider, error) {
	db, err := sqlx.Open(driverName, dataSource)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}

	return &SQLProvider{
		db:     db,
		driver: driverName,
		config: cfg,
		logger: slog.With("component", "storage", "driver", driverName),
	}, nil
}

func (p *SQLProvider) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func (p *SQLProvider) GetSchemaVersion(ctx context.Context) (int, error) {
	return schemaVersion(ctx, p.db)
}

func (p *SQLProvider) ListLocations(ctx context.Context) ([]Location, error) {
	var locations []Location
	err := p.db.SelectContext(ctx, &locations,
		`SELECT id, name, table_count, created_at, deleted_at FROM locations WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return locations, nil
}

func (p *SQLProvider) GetLocation(ctx context.Context, id int) (*Location, error) {
	var loc Location
	err := p.db.GetContext(ctx, &loc, p.db.Rebind(
		`SELECT id, name, table_count, created_at, deleted_at FROM locations WHERE id = ? AND deleted_at IS NULL`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get location %d: %w", id, err)
	}
	return &loc, nil
}

// CreateLocation inserts loc, reviving a previously deleted row with the same id.
func (p *SQLProvider) CreateLocation(ctx context.Context, loc Location) error {
	if err := validLocation(loc); err != nil {
		return err
	}
	if loc.CreatedAt.IsZero() {
		loc.CreatedAt = time.Now().UTC()
	}

	_, err := p.db.NamedExecContext(ctx, `
		INSERT INTO locations (id, name, table_count, created_at, deleted_at)
		VALUES (:id, :name, :table_count, :created_at, NULL)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			table_count = excluded.table_count,
			deleted_at = NULL`, loc)
	if err != nil {
		return fmt.Errorf("create location %d: %w", loc.ID, err)
	}
	p.logger.Info("Location saved", "id", loc.ID, "name", loc.Name, "tables", loc.TableCount)
	return nil
}

func (p *SQLProvider) UpdateLocation(ctx context.Context, loc Location) error {
	if err := validLocation(loc); err != nil {
		return err
	}
	res, err := p.db.NamedExecContext(ctx,
		`UPDATE locations SET name = :name, table_count = :table_count WHERE id = :id AND deleted_at IS NULL`, loc)
	if err != nil {
		return fmt.Errorf("update location %d: %w", loc.ID, err)
	}
	return expectRow(res, loc.ID)
}

// DeleteLocation soft deletes the location so its history stays queryable.
func (p *SQLProvider) DeleteLocation(ctx context.Context, id int) error {
	res, err := p.db.ExecContext(ctx, p.db.Rebind(
		`UPDATE locations SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("delete location %d: %w", id, err)
	}
	return expectRow(res, id)
}

func expectRow(res sql.Result, id int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

func validLocation(loc Location) error {
	switch {
	case loc.ID <= 0:
		return fmt.Errorf("%w: id must be positive", ErrInvalidLocation)
	case strings.TrimSpace(loc.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidLocation)
	case loc.TableCount < 0:
		return fmt.Errorf("%w: table count must not be negative", ErrInvalidLocation)
	}
	return nil
}
