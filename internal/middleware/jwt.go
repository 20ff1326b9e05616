package middleware

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"labour_connect/internal/domain" // Identity model
	"labour_connect/internal/utils"  // JWT utility functions

	"github.com/gin-gonic/gin" // Gin web framework
)

// userKey is the gin context key holding the caller identity
const userKey = "user"

// JWTAuthMiddleware validates JWT tokens and extracts the caller identity
func JWTAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		// Check if the Authorization header is present and properly formatted
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			// If not, abort with unauthorized status
			abort(c, http.StatusUnauthorized, "Missing or invalid Authorization header")
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ") // Extract the token string and parse it
		claims, err := utils.ParseJWT(tokenStr, secret)       // Parse the JWT token
		if err != nil {
			// If parsing fails, abort with unauthorized status
			abort(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		user, err := claims.Identity() // Resolve identity from claims
		if err != nil {
			abort(c, http.StatusUnauthorized, "Token carries no valid identity")
			return
		}
		c.Set(userKey, user) // Store identity in context
		c.Next()             // Proceed to the next handler
	}
}

// CurrentUser returns the identity stored by JWTAuthMiddleware
func CurrentUser(c *gin.Context) (domain.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := v.(domain.User)
	return user, ok
}

// SetUser stores an identity in the context; tests use it to bypass JWT
func SetUser(c *gin.Context, user domain.User) {
	c.Set(userKey, user)
}

func abort(c *gin.Context, status int, message string) {
	code := domain.CodeForbidden
	if status == http.StatusUnauthorized {
		code = "unauthorized"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}
