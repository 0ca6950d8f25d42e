package middlewares

import (
	"net/http"
	"strings"

	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// RequireRole must run after RequireAuth. Accounts whose profile was never
// written carry no role and are refused like any other mismatch.
func (m *AuthMiddleware) RequireRole(allowed ...user.Role) gin.HandlerFunc {
	names := make([]string, len(allowed))
	for i, r := range allowed {
		names[i] = string(r)
	}
	msg := strings.Join(names, " or ") + " role required"

	return func(c *gin.Context) {
		if _, ok := UserIDFromContext(c); !ok {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Missing identity context")
			return
		}

		role, _ := RoleFromContext(c)
		for _, r := range allowed {
			if role == r {
				c.Next()
				return
			}
		}
		abortWithError(c, http.StatusForbidden, "forbidden", msg)
	}
}
