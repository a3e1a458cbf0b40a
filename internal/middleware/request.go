package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-gateway/internal/observability"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// RequestID reuses the caller's X-Request-ID or generates one, and echoes it
// on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(observability.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			c.Request.Header.Set(observability.RequestIDHeader, id)
		}
		c.Set(RequestIDKey, id)
		c.Writer.Header().Set(observability.RequestIDHeader, id)
		c.Next()
	}
}

// AccessLog logs every request and flags the ones slower than slowThreshold.
func AccessLog(slowThreshold time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		requestID := c.GetString(RequestIDKey)
		log.Printf("http request method=%s path=%s status=%d latency=%s ip=%s request_id=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), elapsed, c.ClientIP(), requestID)
		if slowThreshold > 0 && elapsed > slowThreshold {
			log.Printf("http slow request method=%s path=%s latency=%s threshold=%s request_id=%s",
				c.Request.Method, c.Request.URL.Path, elapsed, slowThreshold, requestID)
		}
	}
}
