package power

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"smart-stay/internal/obs"
	"smart-stay/internal/storage"
)

// Report is a raw status report as posted by a reporting device.
type Report map[string]any

// Keys checked for the reported state, in order of precedence.
var stateKeys = []string{"is_on", "isOn", "status", "state"}

type Outcome string

const (
	OutcomeAccepted   Outcome = "accepted"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeRejected   Outcome = "rejected"
)

type ReportOutcome struct {
	Outcome      Outcome                    `json:"outcome"`
	IsOn         bool                       `json:"is_on"`
	Source       string                     `json:"source"`
	Battery      *int64                     `json:"battery"`
	BookingID    string                     `json:"booking_id"`
	ForceLog     bool                       `json:"force_log"`
	StateChanged bool                       `json:"state_changed"`
	Logged       bool                       `json:"logged"`
	LogError     string                     `json:"log_error,omitempty"`
	Entry        *storage.PowerHistoryEntry `json:"entry,omitempty"`
}

// Intake turns status reports into transitions, suppressing periodic repeats.
type Intake struct {
	recorder *Recorder
	filter   *NoiseFilter
	now      func() time.Time
	logger   *slog.Logger
}

func NewIntake(recorder *Recorder, filter *NoiseFilter, now func() time.Time) *Intake {
	if now == nil {
		now = time.Now
	}
	return &Intake{
		recorder: recorder,
		filter:   filter,
		now:      now,
		logger:   slog.With("component", "intake"),
	}
}

// Accept validates and applies a report. An invalid state is rejected with
// ErrInvalidInput before anything is changed.
func (i *Intake) Accept(ctx context.Context, r Report) (ReportOutcome, error) {
	raw, _ := r.first(stateKeys...)
	isOn, err := Normalize(raw)
	if err != nil {
		obs.StatusReports.WithLabelValues(string(OutcomeRejected)).Inc()
		i.logger.Warn("Rejected status report", "state", raw)
		return ReportOutcome{Outcome: OutcomeRejected}, err
	}

	out := ReportOutcome{
		IsOn:     isOn,
		Source:   r.stringValue("source", SourceTasker),
		Battery:  r.battery(),
		ForceLog: r.forceLog(),
	}
	out.BookingID = r.stringValue("booking_id", out.Source)

	now := i.now()
	prev := i.recorder.Current()
	t := Transition{
		IsOn:      isOn,
		Source:    out.Source,
		At:        now,
		Battery:   out.Battery,
		BookingID: &out.BookingID,
	}

	var entry storage.PowerHistoryEntry
	if !out.ForceLog && i.filter.IsDuplicate(ctx, out.Source, isOn, now) {
		out.Outcome = OutcomeSuppressed
		entry, err = i.recorder.RecordAudit(ctx, t)
	} else {
		out.Outcome = OutcomeAccepted
		out.StateChanged = prev.IsOn != isOn
		entry, err = i.recorder.RecordTransition(ctx, t)
	}
	i.filter.Observe(ctx, out.Source, isOn, now)

	out.Entry = &entry
	out.Logged = err == nil
	if err != nil {
		out.LogError = err.Error()
	}

	obs.StatusReports.WithLabelValues(string(out.Outcome)).Inc()
	i.logger.Info("Status report", "source", out.Source, "is_on", isOn, "outcome", out.Outcome, "logged", out.Logged)
	return out, nil
}

func (r Report) first(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (r Report) stringValue(key string, fallback string) string {
	switch v := r[key].(type) {
	case string:
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return fallback
}

func (r Report) battery() *int64 {
	var n int64
	switch v := r["battery"].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		n = int64(v)
	case int:
		n = int64(v)
	case int64:
		n = v
	case json.Number:
		parsed, err := strconv.ParseInt(v.String(), 10, 64)
		if err != nil {
			return nil
		}
		n = parsed
	case string:
		parsed, err := strconv.ParseInt(leadingInt(strings.TrimSpace(v)), 10, 64)
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	return &n
}

func (r Report) forceLog() bool {
	switch v := r["force_log"].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	}
	return false
}

// leadingInt returns the optional sign and digits at the start of s, so "85%" reads as 85.
func leadingInt(s string) string {
	end := 0
	for end < len(s) {
		c := s[end]
		if (c == '-' || c == '+') && end == 0 {
			end++
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		end++
	}
	return s[:end]
}
