package storage

import (
	_ "github.com/jackc/pgx/v5/stdlib"

	"table-call/internal/config"
)

const postgresDriver = "pgx"

func NewPostgresProvider(cfg *config.Storage) (*SQLProvider, error) {
	return NewSQLProvider(cfg, postgresDriver, cfg.Postgres.DSN)
}
