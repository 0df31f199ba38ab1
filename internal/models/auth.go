package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleLearner UserRole = "LEARNER"
	RoleTutor   UserRole = "TUTOR"
	RoleAdmin   UserRole = "ADMIN"
)

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// CanReadAll reports whether the role may read timetables owned by other learners.
func (c *JWTClaims) CanReadAll() bool {
	return c != nil && (c.Role == RoleAdmin || c.Role == RoleTutor)
}
