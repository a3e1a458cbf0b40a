package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-gateway/internal/observability"
	"chat-gateway/internal/telemetry"
)

var auditLevels = map[string]bool{"INFO": true, "WARN": true, "ERROR": true}

// RegisterDebugRoutes wires debug-only endpoints.
//
// GET /debug/audit-test publishes one audit record on behalf of the session
// named by X-Session-ID and echoes the identifiers it was stamped with, so an
// operator can find the record downstream. Optional query parameters: level
// (INFO, WARN or ERROR) and text.
func RegisterDebugRoutes(router gin.IRoutes, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}

		level := strings.ToUpper(c.DefaultQuery("level", "INFO"))
		if !auditLevels[level] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "level must be INFO, WARN or ERROR"})
			return
		}
		text := strings.TrimSpace(c.Query("text"))
		if text == "" {
			text = "audit test"
		}

		requestID := requestIDFromContext(c)
		sessionID := sessionIDFromContext(c)
		emitter.Emit(c.Request.Context(), level, text, requestID, sessionID)

		resp := gin.H{"status": "ok", "level": level, "request_id": requestID, "session_id": nil}
		session := "-"
		if sessionID != nil {
			resp["session_id"] = *sessionID
			session = *sessionID
		}
		log.Printf("debug audit emitted level=%s session=%s request_id=%s ip=%s", level, session, requestID, observability.IPFromRequest(c.Request))
		c.JSON(http.StatusOK, resp)
	})
}
