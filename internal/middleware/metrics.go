package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mall/internal/monitor"
)

// Metrics records request count and latency per route
func Metrics(mc *monitor.MetricsCollector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		mc.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Tracing opens a server span per request and hands its context to the handlers
func Tracing(t *monitor.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx, span := t.StartHTTPSpan(c.Request.Context(), route, c.Request)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		t.EndHTTPSpan(span, c.Writer.Status())
	}
}
