package receiver

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goliatone/go-whatsflow/core"
	"github.com/google/uuid"
)

const requestIDContext = "request_id"

// RequestID echoes X-Request-ID, generating one when the caller sent none.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(core.HeaderRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(core.HeaderRequestID, requestID)
		c.Set(requestIDContext, requestID)
		c.Next()
	}
}

func AccessLog(logger core.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startedAt := time.Now()
		c.Next()
		level := "info"
		if c.Writer.Status() >= 500 {
			level = "error"
		}
		core.Log(c.Request.Context(), logger, level, "http request", map[string]any{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(startedAt).Milliseconds(),
			"client_ip":  c.ClientIP(),
			"request_id": c.GetString(requestIDContext),
		})
	}
}
