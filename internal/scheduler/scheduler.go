package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"smart-stay/internal/devices"
	"smart-stay/internal/power"
	"smart-stay/internal/storage"
)

// ReservationSource is the part of storage the reconciler reads and annotates.
type ReservationSource interface {
	ListCheckIns(ctx context.Context, from time.Time, to time.Time) ([]storage.Booking, error)
	ListCheckOuts(ctx context.Context, from time.Time, to time.Time) ([]storage.Booking, error)
	UpdateBookingPowerStatus(ctx context.Context, id int64, status string, at time.Time) error
}

type Controller interface {
	ControlByAction(ctx context.Context, action devices.Action) devices.ActionResult
}

type Alerter interface {
	Alert(ctx context.Context, subject string, body string) error
}

type Kind string

const (
	KindCheckIn  Kind = "checkin"
	KindCheckOut Kind = "checkout"
)

// Step is one action taken during a pass.
type Step struct {
	Kind            Kind                 `json:"kind"`
	BookingID       int64                `json:"booking_id"`
	ReservationCode string               `json:"reservation_code"`
	Command         devices.ActionResult `json:"command"`
	Error           string               `json:"error,omitempty"`
}

type Summary struct {
	At            time.Time `json:"at"`
	CheckIns      int       `json:"checkin_count"`
	CheckOuts     int       `json:"checkout_count"`
	Steps         []Step    `json:"steps"`
	SkippedReason string    `json:"skipped_reason,omitempty"`
}

type Option func(*Reconciler)

func WithWindows(checkInLead time.Duration, checkOutLag time.Duration) Option {
	return func(r *Reconciler) {
		r.checkInLead = checkInLead
		r.checkOutLag = checkOutLag
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// Reconciler drives the power state towards the reservation policy: on ahead of a
// check-in, off after a check-out. It keeps no state between passes.
type Reconciler struct {
	bookings    ReservationSource
	recorder    *power.Recorder
	controller  Controller
	alerter     Alerter
	checkInLead time.Duration
	checkOutLag time.Duration
	now         func() time.Time
	logger      *slog.Logger

	// serializes passes from the ticker and on-demand triggers
	mu sync.Mutex
}

func NewReconciler(bookings ReservationSource, recorder *power.Recorder, controller Controller, alerter Alerter, opts ...Option) *Reconciler {
	r := &Reconciler{
		bookings:    bookings,
		recorder:    recorder,
		controller:  controller,
		alerter:     alerter,
		checkInLead: 2 * time.Hour,
		checkOutLag: time.Hour,
		now:         time.Now,
		logger:      slog.With("component", "scheduler"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Pass runs one reconciliation. A reservation already reconciled produces no action.
func (r *Reconciler) Pass(ctx context.Context) (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	summary := Summary{At: now, Steps: []Step{}}

	checkIns, err := r.bookings.ListCheckIns(ctx, now, now.Add(r.checkInLead))
	if err != nil {
		return summary, fmt.Errorf("failed to list check-ins: %w", err)
	}
	summary.CheckIns = len(checkIns)

	for _, b := range checkIns {
		if b.Cancelled() || r.recorder.Current().IsOn {
			continue
		}
		r.logger.Info("Check-in window open, powering on", "booking_id", b.ID, "guest", b.GuestName)
		summary.Steps = append(summary.Steps, r.apply(ctx, b, KindCheckIn, now))
	}

	checkOuts, err := r.bookings.ListCheckOuts(ctx, now.Add(-r.checkOutLag), now)
	if err != nil {
		// Check-ins above are already applied; the summary still reports them.
		r.logger.Error("Check-out lookup failed", "error", err, "steps_applied", len(summary.Steps))
		return summary, fmt.Errorf("failed to list check-outs: %w", err)
	}
	summary.CheckOuts = len(checkOuts)

	if len(checkIns) > 0 && len(checkOuts) > 0 {
		// Same-day turnover: the arriving guest keeps the power on.
		summary.SkippedReason = "check-in pending, check-out not applied"
		r.logger.Info("Skipping check-out during turnover", "checkins", len(checkIns), "checkouts", len(checkOuts))
		return summary, nil
	}

	for _, b := range checkOuts {
		if b.Cancelled() || !r.recorder.Current().IsOn {
			continue
		}
		r.logger.Info("Check-out window open, powering off", "booking_id", b.ID, "guest", b.GuestName)
		summary.Steps = append(summary.Steps, r.apply(ctx, b, KindCheckOut, now))
	}

	return summary, nil
}

func (r *Reconciler) apply(ctx context.Context, b storage.Booking, kind Kind, now time.Time) Step {
	action, source := devices.ActionOn, power.SourceSchedulerCheckIn
	if kind == KindCheckOut {
		action, source = devices.ActionOff, power.SourceSchedulerCheckOut
	}
	step := Step{Kind: kind, BookingID: b.ID, ReservationCode: b.ReservationCode}

	bookingID := strconv.FormatInt(b.ID, 10)
	if _, err := r.recorder.RecordTransition(ctx, power.Transition{
		IsOn:      action.IsOn(),
		Source:    source,
		At:        now,
		BookingID: &bookingID,
	}); err != nil {
		step.Error = err.Error()
	}

	if err := r.bookings.UpdateBookingPowerStatus(ctx, b.ID, string(action), now); err != nil {
		r.logger.Error("Failed to update booking power status", "booking_id", b.ID, "error", err)
	}

	step.Command = r.controller.ControlByAction(ctx, action)
	if !step.Command.Success {
		r.logger.Error("Scheduled command failed", "booking_id", b.ID, "action", action, "error", step.Command.Err)
		subject := fmt.Sprintf("Power %s failed for reservation %s", action, b.ReservationCode)
		body := fmt.Sprintf("The %s command for %s (%s) was not confirmed by SmartThings: %v. Power state is recorded as %s; check the meter.",
			action, b.GuestName, kind, step.Command.Err, action)
		if err := r.alerter.Alert(ctx, subject, body); err != nil {
			r.logger.Error("Failed to send alert", "error", err)
		}
	}
	return step
}

// Run starts a pass every interval until ctx is cancelled. A zero interval returns immediately.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		r.logger.Info("Scheduler loop disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("Scheduler started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			if _, err := r.Pass(ctx); err != nil {
				r.logger.Error("Reconciliation pass failed", "error", err)
			}
		}
	}
}
