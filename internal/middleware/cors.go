package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"mall/internal/config"
)

// CORS Cross-Origin Resource Sharing middleware built from the security config
func CORS(cfg config.SecurityConfig) gin.HandlerFunc {
	c := cors.DefaultConfig()

	if len(cfg.CORS.AllowOrigins) == 0 || (len(cfg.CORS.AllowOrigins) == 1 && cfg.CORS.AllowOrigins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.CORS.AllowOrigins
	}
	if len(cfg.CORS.AllowMethods) > 0 {
		c.AllowMethods = cfg.CORS.AllowMethods
	}
	c.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	if len(cfg.CORS.AllowHeaders) > 0 {
		c.AllowHeaders = cfg.CORS.AllowHeaders
	}
	c.ExposeHeaders = cfg.CORS.ExposeHeaders
	// credentials cannot be combined with a wildcard origin
	c.AllowCredentials = cfg.CORS.AllowCredentials && !c.AllowAllOrigins
	if cfg.CORS.MaxAge > 0 {
		c.MaxAge = time.Duration(cfg.CORS.MaxAge) * time.Second
	}
	return cors.New(c)
}
