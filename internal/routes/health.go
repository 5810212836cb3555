package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func Health(r gin.IRouter, h *Handlers) {
	r.GET("/health", func(c *gin.Context) {
		msg := c.Query("ping")
		if msg == "" {
			msg = "pong"
		}

		c.JSON(http.StatusOK, gin.H{
			"message": msg,
		})
	})

	r.GET("/status", h.systemStatus)
}

func (h *Handlers) systemStatus(c *gin.Context) {
	now := h.now()
	state := "off"
	if h.Recorder.Current().IsOn {
		state = "on"
	}

	status := gin.H{
		"online":     true,
		"timestamp":  now.UTC().Format(time.RFC3339),
		"uptime":     int64(now.Sub(h.StartedAt).Seconds()),
		"powerState": state,
		"version":    h.Version,
	}
	if h.Tokens != nil {
		status["token"] = h.Tokens.State()
	}
	c.JSON(http.StatusOK, status)
}
