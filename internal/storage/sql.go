package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

const queryCreateSchemaMigrations = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMP NOT NULL
)`

// SQLProvider implements Provider on top of any sqlx driver. Queries are written with
// "?" placeholders and rebound for the driver in use.
type SQLProvider struct {
	db *sqlx.DB

	// Name of the migrations directory for this backend
	migrations string

	logger *slog.Logger
}

func NewSQLProvider(driverName string, dataSource string, migrations string) (*SQLProvider, error) {
	db, err := sqlx.Open(driverName, dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driverName, err)
	}
	return newSQLProvider(db, migrations), nil
}

func newSQLProvider(db *sqlx.DB, migrations string) *SQLProvider {
	return &SQLProvider{
		db:         db,
		migrations: migrations,
		logger:     slog.With("component", "storage", "driver", db.DriverName()),
	}
}

func (p *SQLProvider) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func (p *SQLProvider) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *SQLProvider) GetSchemaVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	if err := p.db.GetContext(ctx, &version, "SELECT MAX(version) FROM schema_migrations"); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}

func (p *SQLProvider) runMigrations(ctx context.Context) error {
	return p.Migrate(ctx, -1)
}

// Migrate moves the schema to target. -1 is the latest version, 0 the empty schema.
func (p *SQLProvider) Migrate(ctx context.Context, target int) error {
	if _, err := p.db.ExecContext(ctx, queryCreateSchemaMigrations); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	current, err := p.GetSchemaVersion(ctx)
	if err != nil {
		return err
	}

	runner := NewMigrationRunner(p.migrations)
	migrations, err := runner.LoadMigrations(current, target)
	if errors.Is(err, ErrMigrateCurrentVersionSameAsTarget) {
		p.logger.Debug("Schema is up to date", "version", current)
		return nil
	}
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if err := p.applyMigration(ctx, m); err != nil {
			return err
		}
		p.logger.Info("Applied migration", "name", m.Name, "from", m.Before(), "to", m.After())
	}
	return nil
}

func (p *SQLProvider) applyMigration(ctx context.Context, m SchemaMigration) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %04d: %w", m.Version, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("migration %04d_%s failed: %w", m.Version, m.Name, err)
	}
	if m.Up {
		_, err = tx.ExecContext(ctx, p.db.Rebind("INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)"),
			m.Version, m.Name, time.Now().UTC())
	} else {
		_, err = tx.ExecContext(ctx, p.db.Rebind("DELETE FROM schema_migrations WHERE version = ?"), m.Version)
	}
	if err != nil {
		return fmt.Errorf("failed to record migration %04d: %w", m.Version, err)
	}
	return tx.Commit()
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
