package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

func NewMetricMiddleware(meter metric.Meter) gin.HandlerFunc {
	durationHistogram, _ := meter.Int64Histogram(
		"http.server.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("The latency of HTTP requests."),
	)

	requestCounter, _ := meter.Int64Counter(
		"http.server.requests_total",
		metric.WithDescription("The total number of HTTP requests."),
	)

	errorCounter, _ := meter.Int64Counter(
		"http.server.error_requests_total",
		metric.WithDescription("The total number of failed HTTP requests."),
	)

	domainErrorCounter, _ := meter.Int64Counter(
		"shg.domain_errors_total",
		metric.WithDescription("Requests rejected with a 4xx domain error, by route and status."),
	)

	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		statusCode := c.Writer.Status()
		attributes := metric.WithAttributes(
			semconv.HTTPRouteKey.String(c.FullPath()),
			semconv.HTTPMethodKey.String(c.Request.Method),
			semconv.HTTPStatusCodeKey.Int(statusCode),
		)
		ctx := c.Request.Context()

		durationHistogram.Record(ctx, time.Since(startTime).Milliseconds(), attributes)
		requestCounter.Add(ctx, 1, attributes)
		switch {
		case statusCode >= 500:
			errorCounter.Add(ctx, 1, attributes)
		case statusCode >= 400:
			domainErrorCounter.Add(ctx, 1, attributes)
		}
	}
}
