package storage

import (
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"smart-stay/internal/config"
)

func NewSQLiteProvider(cfg *config.SQLiteStorage) (*SQLProvider, error) {
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	provider, err := NewSQLProvider("sqlite3", cfg.Path+"?_foreign_keys=on&_busy_timeout=5000", "sqlite3")
	if err != nil {
		return nil, err
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under concurrent requests
	provider.db.SetMaxOpenConns(1)
	return provider, nil
}
