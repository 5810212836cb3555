package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	queryInsertPowerHistory = `INSERT INTO power_history (id, is_on, source, timestamp, battery, booking_id) VALUES (?, ?, ?, ?, ?, ?)`
	queryListPowerHistory   = `SELECT id, is_on, source, timestamp, battery, booking_id FROM power_history
WHERE timestamp >= ? ORDER BY timestamp DESC, id DESC LIMIT ?`
	queryLatestPowerHistory = `SELECT id, is_on, source, timestamp, battery, booking_id FROM power_history
ORDER BY timestamp DESC, id DESC LIMIT 1`
)

func (p *SQLProvider) AppendPowerHistory(ctx context.Context, entry PowerHistoryEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("%w: history entry without id", ErrPersistence)
	}
	_, err := p.db.ExecContext(ctx, p.db.Rebind(queryInsertPowerHistory),
		entry.ID, entry.IsOn, entry.Source, entry.Timestamp.UTC(), entry.Battery, entry.BookingID)
	if err != nil {
		return persistenceError("append power history", err)
	}
	return nil
}

// ListPowerHistory returns entries newer than since, newest first.
func (p *SQLProvider) ListPowerHistory(ctx context.Context, since time.Time, limit int) ([]PowerHistoryEntry, error) {
	entries := []PowerHistoryEntry{}
	if err := p.db.SelectContext(ctx, &entries, p.db.Rebind(queryListPowerHistory), since.UTC(), limit); err != nil {
		return nil, fmt.Errorf("failed to list power history: %w", err)
	}
	return entries, nil
}

func (p *SQLProvider) LatestPowerHistory(ctx context.Context) (*PowerHistoryEntry, error) {
	var entry PowerHistoryEntry
	err := p.db.GetContext(ctx, &entry, queryLatestPowerHistory)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest power history: %w", err)
	}
	return &entry, nil
}
