package metrics

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// GinMiddleware records request counts and latency per matched route
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := NewTimer()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		APIRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		timer.ObserveDurationVec(APIRequestDuration, c.Request.Method, path)
	}
}
