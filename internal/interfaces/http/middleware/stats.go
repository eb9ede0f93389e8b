package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vectorcraft/tuner/internal/application/monitoring"
)

// RequestStats returns a middleware that feeds per-request latency and
// outcome into the monitoring collector's rolling window. The collector
// drains the window once per sampling cycle to derive response time and
// error rate readings, so this middleware must sit on every route whose
// traffic should count toward those metrics.
func RequestStats(stats *monitoring.RequestStats) gin.HandlerFunc {
	if stats == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		stats.Observe(time.Since(start), c.Writer.Status())
	}
}
