package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"table-call/internal/config"
)

var (
	ErrNotFound        = errors.New("location not found")
	ErrInvalidLocation = errors.New("invalid location")
)

type Provider interface {
	Close() error
	GetSchemaVersion(ctx context.Context) (int, error)

	ListLocations(ctx context.Context) ([]Location, error)
	GetLocation(ctx context.Context, id int) (*Location, error)
	CreateLocation(ctx context.Context, loc Location) error
	UpdateLocation(ctx context.Context, loc Location) error
	DeleteLocation(ctx context.Context, id int) error
}

// NewProvider opens the configured store and migrates it to the latest schema.
func NewProvider(ctx context.Context, cfg *config.Storage) (Provider, error) {
	var provider *SQLProvider
	var err error

	switch cfg.Type {
	case config.StorageSQLite, "":
		provider, err = NewSQLiteProvider(cfg)
	case config.StoragePostgres:
		provider, err = NewPostgresProvider(cfg)
	default:
		slog.Error("Unsupported storage configuration", "type", cfg.Type)
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := provider.runMigrations(ctx); err != nil {
		provider.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return provider, nil
}
