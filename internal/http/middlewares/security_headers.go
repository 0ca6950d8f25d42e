package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
)

var baseSecurityHeaders = map[string]string{
	"X-Content-Type-Options": "nosniff",
	"X-Frame-Options":        "DENY",
	"Referrer-Policy":        "no-referrer",
	"Permissions-Policy":     "camera=(), microphone=(), geolocation=()",
}

const (
	apiCSP = "default-src 'none'; frame-ancestors 'none'"
	// the docs page pulls swagger-ui from unpkg and boots it inline
	docsCSP = "default-src 'self'; base-uri 'none'; frame-ancestors 'none'; object-src 'none'; connect-src 'self'; img-src 'self' data: https:; font-src 'self' https://unpkg.com data:; style-src 'self' 'unsafe-inline' https://unpkg.com; script-src 'self' 'unsafe-inline' https://unpkg.com"
)

// SecurityHeaders hardens every response. Auth responses carry tokens and
// must never be stored.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		for k, v := range baseSecurityHeaders {
			h.Set(k, v)
		}

		path := c.Request.URL.Path
		switch {
		case strings.HasPrefix(path, "/docs"):
			h.Set("Content-Security-Policy", docsCSP)
		default:
			h.Set("Content-Security-Policy", apiCSP)
		}
		if strings.HasPrefix(path, "/auth/") {
			h.Set("Cache-Control", "no-store")
		}

		c.Next()
	}
}
