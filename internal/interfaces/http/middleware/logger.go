package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"vaultswap.backend/pkg/logger"
)

// LoggerMiddleware writes one structured line per request. Paths listed in
// quiet (health checks, scrapes) are only logged when they fail.
func LoggerMiddleware(quiet ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(quiet))
	for _, p := range quiet {
		skip[p] = struct{}{}
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if _, ok := skip[c.Request.URL.Path]; ok && status < 500 {
			return
		}
		target := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			target += "?" + q
		}
		logger.LogRequest(c.Request.Context(), c.Request.Method, target, status, time.Since(start), c.ClientIP())
	}
}
