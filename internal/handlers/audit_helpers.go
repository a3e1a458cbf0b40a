package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-gateway/internal/middleware"
	"chat-gateway/internal/observability"
)

func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}

	requestID := c.GetHeader(observability.RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}

// sessionIDFromContext returns the chat session a request claims to act for.
func sessionIDFromContext(c *gin.Context) *string {
	if header := c.GetHeader(observability.SessionIDHeader); header != "" {
		if _, err := uuid.Parse(header); err == nil {
			return &header
		}
	}
	return nil
}
