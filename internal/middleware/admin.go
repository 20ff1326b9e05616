package middleware

import (
	"net/http" // HTTP status codes

	"labour_connect/internal/domain" // Identity model

	"github.com/gin-gonic/gin" // Gin web framework
)

// RequireRole lets the request through only when the caller has one of roles
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c) // Get identity from context
		// Check if the identity exists in context
		if !ok {
			abort(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		// Check the role against the allowed set
		for _, r := range roles {
			if user.Role == r {
				c.Next() // Allowed, proceed to the next handler
				return
			}
		}
		abort(c, http.StatusForbidden, "Role "+string(user.Role)+" may not access this resource")
	}
}
