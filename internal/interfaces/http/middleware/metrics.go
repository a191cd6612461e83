package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPObserver records served requests
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, d time.Duration)
	InFlight(delta float64)
}

// HTTPMetrics returns a middleware recording request count, latency and
// in-flight requests. A nil observer disables it.
func HTTPMetrics(observer HTTPObserver) gin.HandlerFunc {
	if observer == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		observer.InFlight(1)
		defer observer.InFlight(-1)

		c.Next()

		observer.ObserveHTTP(c.Request.Method, routePattern(c), c.Writer.Status(), time.Since(start))
	}
}

// routePattern returns the matched route (e.g. "/api/v1/obligations/contracts/:id/materialize")
// so raw IDs never become label values
func routePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
