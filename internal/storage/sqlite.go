package storage

import (
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"table-call/internal/config"
)

const sqliteDriver = "sqlite3"

func NewSQLiteProvider(cfg *config.Storage) (*SQLProvider, error) {
	path := cfg.Local.Path
	if path == "" {
		path = ":memory:"
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create storage folder: %w", err)
		}
	}

	p, err := NewSQLProvider(cfg, sqliteDriver, path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// every connection would get its own empty database
		p.db.SetMaxOpenConns(1)
	}
	return p, nil
}
