package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func ReservationRoutes(r gin.IRouter, h *Handlers) {
	r.POST("/reservations/sync", func(c *gin.Context) {
		summary, err := h.Reconciler.Pass(c.Request.Context())
		if err != nil && len(summary.Steps) > 0 {
			// Part of the pass was applied before the failure; report what was done.
			c.Error(err)
			c.AbortWithStatusJSON(GetErrorStatus(err), gin.H{
				"success": false,
				"status":  "error",
				"message": GetErrorInfo(err).Message,
				"summary": summary,
			})
			return
		}
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"summary": summary,
		})
	})
}
