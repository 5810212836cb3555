package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type alertRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message" binding:"required"`
}

func AlertRoutes(r gin.IRouter, h *Handlers) {
	r.POST("/alert", func(c *gin.Context) {
		var req alertRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		if req.Subject == "" {
			req.Subject = "Alert"
		}

		if err := h.Alerter.Alert(c.Request.Context(), req.Subject, req.Message); err != nil {
			AbortWithHTTPError(c, http.StatusBadGateway, err, "Failed to deliver alert")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
}
