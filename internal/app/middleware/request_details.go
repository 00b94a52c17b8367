package middleware

import (
	"log/slog"
	"time"

	"shg-finance/internal/pkg/consts"
	"shg-finance/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AttachRequestDetails gives every request a trace id, taken from X-Request-ID when the caller sent one,
// and logs the outcome once the handler returns.
func AttachRequestDetails() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		traceID := c.GetHeader(consts.RequestIDHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}
		c.Set(consts.TraceIDContextKey, traceID)
		c.Header(consts.RequestIDHeader, traceID)
		c.Request = c.Request.WithContext(logger.WithTraceID(c.Request.Context(), traceID))

		c.Next()

		logger.CtxInfo(c.Request.Context(), "Request completed",
			slog.String("method", c.Request.Method),
			slog.String("route", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Int64("latency_ms", time.Since(start).Milliseconds()),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}
