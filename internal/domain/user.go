package domain

import (
	"strings" // String normalization

	"github.com/google/uuid" // UUID identifiers
)

// Role is the closed set of roles the identity provider may assert
type Role string

const (
	RoleEmployer Role = "employer" // Posts jobs and hires workers
	RoleEmployee Role = "employee" // Works jobs
	RoleAdmin    Role = "admin"    // Platform operator
)

// ParseRole converts a raw claim into a Role, rejecting anything outside the enum
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleEmployer:
		return RoleEmployer, true
	case RoleEmployee:
		return RoleEmployee, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// User is the verified identity supplied by the identity collaborator.
// It is referenced by the core and never persisted or mutated here.
type User struct {
	ID       uuid.UUID `json:"id"`       // User ID issued by the identity provider
	Role     Role      `json:"role"`     // Asserted role
	Verified bool      `json:"verified"` // Identity verification flag
}

// IsAdmin reports whether the user holds the admin role
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
