package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"smart-stay/internal/devices"
	"smart-stay/internal/power"
	"smart-stay/internal/scheduler"
	"smart-stay/internal/storage"
	"smart-stay/internal/token"
)

// Controller turns a logical action into a device command.
type Controller interface {
	ControlByAction(ctx context.Context, action devices.Action) devices.ActionResult
}

type HistoryReader interface {
	ListPowerHistory(ctx context.Context, since time.Time, limit int) ([]storage.PowerHistoryEntry, error)
}

type Reconciler interface {
	Pass(ctx context.Context) (scheduler.Summary, error)
}

type Alerter interface {
	Alert(ctx context.Context, subject string, body string) error
}

type TokenState interface {
	State() token.State
}

// Handlers holds the collaborators the HTTP routes act on.
type Handlers struct {
	Recorder   *power.Recorder
	Intake     *power.Intake
	Controller Controller
	History    HistoryReader
	Reconciler Reconciler
	Alerter    Alerter
	Tokens     TokenState // optional
	Guard      *Guard

	StartedAt time.Time
	Version   string
	Now       func() time.Time
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Register mounts all routes on r. Mutating routes pass through the guard.
func (h *Handlers) Register(r gin.IRouter) {
	Health(r, h)

	api := r.Group("/api")
	api.GET("/power-status", h.powerStatus)
	api.GET("/power-history", h.powerHistory)

	guarded := api.Group("")
	if h.Guard != nil {
		guarded.Use(h.Guard.RateLimit(), h.Guard.RequireKey())
	}
	PowerRoutes(guarded, h)
	ReservationRoutes(guarded, h)
	AlertRoutes(guarded, h)
}
