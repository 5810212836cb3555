package power

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"smart-stay/internal/ids"
	"smart-stay/internal/obs"
	"smart-stay/internal/storage"
)

// Well-known transition sources.
const (
	SourceTasker            = "tasker_direct"
	SourceRemoteCommand     = "remote_command"
	SourceSchedulerCheckIn  = "scheduler_checkin"
	SourceSchedulerCheckOut = "scheduler_checkout"
)

type HistoryStore interface {
	AppendPowerHistory(ctx context.Context, entry storage.PowerHistoryEntry) error
}

type Transition struct {
	IsOn      bool
	Source    string
	At        time.Time // zero means acceptance time
	Battery   *int64
	BookingID *string
}

// Recorder applies transitions to the power state and appends them to the history log.
type Recorder struct {
	state   *State
	history HistoryStore
	now     func() time.Time
	logger  *slog.Logger
}

func NewRecorder(state *State, history HistoryStore, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{
		state:   state,
		history: history,
		now:     now,
		logger:  slog.With("component", "power"),
	}
}

func (r *Recorder) Current() Snapshot {
	return r.state.Current()
}

// RecordTransition updates the state and appends a history entry. A failed append is
// returned but the state change stands.
func (r *Recorder) RecordTransition(ctx context.Context, t Transition) (storage.PowerHistoryEntry, error) {
	entry := r.entry(t)
	r.state.Set(entry.IsOn, entry.Source, entry.Timestamp)
	obs.PowerTransitions.WithLabelValues(entry.Source).Inc()
	r.logger.Info("Power transition", "is_on", entry.IsOn, "source", entry.Source, "id", entry.ID)

	if err := r.history.AppendPowerHistory(ctx, entry); err != nil {
		r.logger.Error("Failed to log power transition", "id", entry.ID, "error", err)
		return entry, fmt.Errorf("power state updated but not logged: %w", err)
	}
	return entry, nil
}

// Restore sets the state from a logged entry without writing history.
func (r *Recorder) Restore(entry storage.PowerHistoryEntry) Snapshot {
	return r.state.Set(entry.IsOn, entry.Source, entry.Timestamp)
}

// RecordAudit appends a history entry without touching the state.
func (r *Recorder) RecordAudit(ctx context.Context, t Transition) (storage.PowerHistoryEntry, error) {
	entry := r.entry(t)
	if err := r.history.AppendPowerHistory(ctx, entry); err != nil {
		r.logger.Error("Failed to log audit entry", "id", entry.ID, "error", err)
		return entry, fmt.Errorf("audit entry not logged: %w", err)
	}
	return entry, nil
}

func (r *Recorder) entry(t Transition) storage.PowerHistoryEntry {
	at := t.At
	if at.IsZero() {
		at = r.now()
	}
	source := t.Source
	if source == "" {
		source = SourceSystem
	}
	return storage.PowerHistoryEntry{
		ID:        ids.NewAt(at),
		IsOn:      t.IsOn,
		Source:    source,
		Timestamp: at.UTC(),
		Battery:   t.Battery,
		BookingID: t.BookingID,
	}
}
