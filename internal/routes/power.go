package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"smart-stay/internal/devices"
	"smart-stay/internal/power"
	"smart-stay/internal/storage"
)

const (
	historyDefaultDays = 30
	historyLimit       = 500
)

func PowerRoutes(r gin.IRouter, h *Handlers) {
	r.POST("/power/status", h.statusReport)
	r.POST("/power-status", h.statusReport)

	r.POST("/meter", func(c *gin.Context) {
		var req struct {
			Action string `json:"action" form:"action"`
		}
		if err := c.ShouldBind(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		action, err := devices.ParseAction(req.Action)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		h.meter(c, action)
	})
	r.POST("/meter/on", func(c *gin.Context) {
		h.meter(c, devices.ActionOn)
	})
	r.POST("/meter/off", func(c *gin.Context) {
		h.meter(c, devices.ActionOff)
	})
}

func (h *Handlers) powerStatus(c *gin.Context) {
	snap := h.Recorder.Current()
	c.JSON(http.StatusOK, gin.H{
		"online":     true,
		"isOn":       snap.IsOn,
		"lastUpdate": snap.LastUpdate.UTC().Format(time.RFC3339Nano),
		"source":     snap.Source,
	})
}

// readReport accepts JSON bodies and urlencoded forms, as phone automation apps send either.
func readReport(c *gin.Context) (power.Report, error) {
	report := power.Report{}
	if c.ContentType() == binding.MIMEPOSTForm {
		if err := c.Request.ParseForm(); err != nil {
			return nil, err
		}
		for k := range c.Request.PostForm {
			report[k] = c.Request.PostForm.Get(k)
		}
		return report, nil
	}
	if err := c.ShouldBindJSON(&report); err != nil {
		return nil, err
	}
	return report, nil
}

func (h *Handlers) statusReport(c *gin.Context) {
	report, err := readReport(c)
	if err != nil {
		slog.Debug("Unreadable status report", "error", err)
		AbortWithError(c, power.ErrInvalidInput)
		return
	}

	outcome, err := h.Intake.Accept(c.Request.Context(), report)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	message := "Status received"
	if outcome.Outcome == power.OutcomeSuppressed {
		message = "Duplicate status suppressed"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  message,
		"received": outcome,
	})
}

// meter sends the command and records a remote_command transition only once the
// provider accepted it.
func (h *Handlers) meter(c *gin.Context, action devices.Action) {
	result := h.Controller.ControlByAction(c.Request.Context(), action)
	if !result.Success {
		AbortWithHTTPError(c, http.StatusInternalServerError,
			fmt.Errorf("%w: %s: %v", ErrCommandFailed, action, result.Err),
			"SmartThings did not accept the command", "COMMAND_FAILED")
		return
	}

	source := power.SourceRemoteCommand
	entry, err := h.Recorder.RecordTransition(c.Request.Context(), power.Transition{
		IsOn:      action.IsOn(),
		Source:    source,
		BookingID: &source,
	})

	resp := gin.H{
		"success":   true,
		"action":    action,
		"command":   result.Command,
		"device_id": result.DeviceID,
		"logged":    err == nil,
	}
	if result.Rebound != nil {
		resp["rebound"] = result.Rebound
	}
	if err != nil {
		resp["log_error"] = err.Error()
	} else {
		resp["entry"] = entry
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) powerHistory(c *gin.Context) {
	days := historyDefaultDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			AbortWithError(c, ErrInvalidParameter)
			return
		}
		days = n
	}

	until := h.now().UTC()
	since := until.Add(-time.Duration(days) * 24 * time.Hour)
	entries, err := h.History.ListPowerHistory(c.Request.Context(), since, historyLimit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if entries == nil {
		entries = []storage.PowerHistoryEntry{}
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(entries),
		"data":  entries,
		"period": gin.H{
			"since": since,
			"until": until,
		},
	})
}
