package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"mall/pkg/limiter"
	"mall/pkg/log"
	"mall/pkg/utils"
)

// KeyFunc derives the rate limit key of a request
type KeyFunc func(c *gin.Context) string

// KeyByIP limits per client ip
func KeyByIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// KeyByUser limits per authenticated user, falling back to the client ip
func KeyByUser(c *gin.Context) string {
	if userID, ok := GetUserID(c); ok {
		return fmt.Sprintf("user:%d", userID)
	}
	return KeyByIP(c)
}

// RateLimit rejects requests the limiter refuses. A limiter error lets the
// request through so a redis outage does not take the api down.
func RateLimit(l limiter.RateLimiter, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		k := key(c)
		allowed, err := l.Allow(c.Request.Context(), k)
		if err != nil {
			log.WithFields(log.Fields{
				"key":   k,
				"error": err.Error(),
			}).Warn("Rate limiter unavailable")
			c.Next()
			return
		}
		if !allowed {
			log.WithFields(log.Fields{
				"key":    k,
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Warn("Rate limit exceeded")
			c.Header("Retry-After", "1")
			utils.Error(c, utils.CodeRateLimit, "Too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
