package utils

import (
	"errors" // Claim errors
	"time"   // Time for token expiration

	"labour_connect/internal/domain" // Identity model

	"github.com/golang-jwt/jwt/v5" // JWT library
	"github.com/google/uuid"       // UUID identifiers
)

// Claims issued by the identity provider
type Claims struct {
	UserID               string `json:"user_id"`  // Subject user ID
	Role                 string `json:"role"`     // employer, employee or admin
	Verified             bool   `json:"verified"` // Identity verified
	jwt.RegisteredClaims        // Standard JWT claims
}

// ErrInvalidClaims is returned for tokens carrying an unusable identity
var ErrInvalidClaims = errors.New("token carries no valid identity")

// GenerateJWT creates a token for user; the identity provider does this in
// production, local runs and tests use it directly
func GenerateJWT(user domain.User, secret string, ttl time.Duration) (string, error) {
	// Set token claims
	claims := Claims{
		UserID:   user.ID.String(),  // Subject
		Role:     string(user.Role), // Role
		Verified: user.Verified,     // Verification flag
		// Standard claims
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)), // Token expiry
			IssuedAt:  jwt.NewNumericDate(time.Now()),          // Issued at current time
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims) // Create token with claims
	return token.SignedString([]byte(secret))                  // Sign the token with the secret
}

// ParseJWT parses and validates a JWT token string
func ParseJWT(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil // Return the secret key for validation
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	// Check for parsing errors
	if err != nil {
		return nil, err // Return error if parsing fails
	}
	// Validate token and extract claims
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil // Return claims if valid
	}
	// Return error if token is invalid
	return nil, jwt.ErrSignatureInvalid
}

// Identity converts the claims into the caller identity
func (c *Claims) Identity() (domain.User, error) {
	id, err := uuid.Parse(c.UserID)
	if err != nil {
		return domain.User{}, ErrInvalidClaims
	}
	role, ok := domain.ParseRole(c.Role)
	if !ok {
		return domain.User{}, ErrInvalidClaims
	}
	return domain.User{ID: id, Role: role, Verified: c.Verified}, nil
}
