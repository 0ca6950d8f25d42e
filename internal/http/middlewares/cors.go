package middlewares

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type corsPolicy struct {
	origins map[string]struct{}
	methods string
	headers string
	expose  string
	maxAge  string
}

// CORSMiddleware admits browser calls from the configured origins only.
// Preflights from any other origin are refused.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	p := corsPolicy{
		origins: make(map[string]struct{}, len(allowedOrigins)),
		methods: strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions}, ","),
		headers: "Authorization,Content-Type,If-None-Match,X-Request-Id",
		expose:  "ETag,X-Request-Id,Retry-After",
		maxAge:  strconv.Itoa(600),
	}
	for _, o := range allowedOrigins {
		p.origins[strings.TrimRight(o, "/")] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		c.Writer.Header().Add("Vary", "Origin")

		_, allowed := p.origins[origin]
		if origin != "" && allowed {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Expose-Headers", p.expose)
		}

		if c.Request.Method != http.MethodOptions {
			c.Next()
			return
		}

		if origin != "" && !allowed {
			abortWithError(c, http.StatusForbidden, "origin_not_allowed", "Origin is not allowed")
			return
		}
		c.Header("Access-Control-Allow-Methods", p.methods)
		c.Header("Access-Control-Allow-Headers", p.headers)
		c.Header("Access-Control-Max-Age", p.maxAge)
		c.AbortWithStatus(http.StatusNoContent)
	}
}
