package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"smart-stay/internal/config"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrPersistence = errors.New("persistence failure")
)

type Provider interface {
	Close() error
	Ping(ctx context.Context) error
	GetSchemaVersion(ctx context.Context) (int, error)

	// Credential store
	GetCredential(ctx context.Context, name string) (string, error)
	PutCredential(ctx context.Context, name string, value string) error

	// Power history
	AppendPowerHistory(ctx context.Context, entry PowerHistoryEntry) error
	ListPowerHistory(ctx context.Context, since time.Time, limit int) ([]PowerHistoryEntry, error)
	LatestPowerHistory(ctx context.Context) (*PowerHistoryEntry, error)

	// Reservations
	CreateBooking(ctx context.Context, booking Booking) (int64, error)
	GetBooking(ctx context.Context, id int64) (*Booking, error)
	ListBookings(ctx context.Context, limit int) ([]Booking, error)
	DeleteBooking(ctx context.Context, id int64) error
	ListCheckIns(ctx context.Context, from time.Time, to time.Time) ([]Booking, error)
	ListCheckOuts(ctx context.Context, from time.Time, to time.Time) ([]Booking, error)
	UpdateBookingPowerStatus(ctx context.Context, id int64, status string, at time.Time) error
}

// NewProvider opens the configured backend and brings its schema up to date.
func NewProvider(cfg *config.Storage) (Provider, error) {
	var (
		provider *SQLProvider
		err      error
	)

	switch cfg.Type {
	case "sqlite", "sqlite3":
		if cfg.SQLite == nil || cfg.SQLite.Path == "" {
			return nil, fmt.Errorf("storage.sqlite.path is required")
		}
		provider, err = NewSQLiteProvider(cfg.SQLite)
	case "postgres", "postgresql":
		if cfg.Postgres == nil || cfg.Postgres.DSN == "" {
			return nil, fmt.Errorf("storage.postgres.dsn is required")
		}
		provider, err = NewPostgresProvider(cfg.Postgres)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := provider.runMigrations(context.Background()); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		_ = provider.Close()
		return nil, err
	}
	return provider, nil
}
