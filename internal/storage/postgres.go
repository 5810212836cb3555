package storage

import (
	"time"

	_ "github.com/lib/pq"

	"smart-stay/internal/config"
)

func NewPostgresProvider(cfg *config.PostgresStorage) (*SQLProvider, error) {
	provider, err := NewSQLProvider("postgres", cfg.DSN, "postgres")
	if err != nil {
		return nil, err
	}
	provider.db.SetMaxOpenConns(10)
	provider.db.SetMaxIdleConns(5)
	provider.db.SetConnMaxLifetime(5 * time.Minute)
	return provider, nil
}
