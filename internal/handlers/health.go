package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health reports liveness and process uptime.
func Health(startedAt time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(startedAt).Round(time.Second).String(),
		})
	}
}
