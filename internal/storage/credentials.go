package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	queryGetCredential = `SELECT value FROM credentials WHERE name = ?`
	queryPutCredential = `INSERT INTO credentials (name, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
)

// GetCredential returns the stored value for name, or ErrNotFound.
func (p *SQLProvider) GetCredential(ctx context.Context, name string) (string, error) {
	var value string
	err := p.db.GetContext(ctx, &value, p.db.Rebind(queryGetCredential), name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read credential %s: %w", name, err)
	}
	return value, nil
}

// PutCredential inserts or replaces the value stored under name.
func (p *SQLProvider) PutCredential(ctx context.Context, name string, value string) error {
	if _, err := p.db.ExecContext(ctx, p.db.Rebind(queryPutCredential), name, value, time.Now().UTC()); err != nil {
		return persistenceError("put credential", err)
	}
	return nil
}
