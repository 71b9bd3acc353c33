package user

import (
	"time"

	"github.com/google/uuid"
)

// Provider identifies who owns the credential for an account.
type Provider string

const (
	ProviderLocal    Provider = "LOCAL"
	ProviderGoogle   Provider = "GOOGLE"
	ProviderFacebook Provider = "FACEBOOK"
)

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderLocal, ProviderGoogle, ProviderFacebook:
		return true
	}
	return false
}

// Role is the closed set of authorization levels. Gate logic matches on it
// exhaustively rather than comparing strings.
type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// ParseRole validates a role supplied from outside (e.g. an admin request).
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return Role(s), true
	}
	return "", false
}

// IsAdmin reports whether the role carries admin privileges.
func (r Role) IsAdmin() bool {
	switch r {
	case RoleAdmin, RoleSuperAdmin:
		return true
	case RoleUser:
		return false
	}
	return false
}

type User struct {
	ID                     uuid.UUID  `json:"id"`
	Name                   string     `json:"name"`
	Email                  string     `json:"email"`
	PasswordHash           *string    `json:"-"` // Never expose password hash in JSON
	Provider               Provider   `json:"provider"`
	ProviderID             *string    `json:"-"`
	Role                   Role       `json:"role"`
	EmailVerified          bool       `json:"email_verified"`
	EmailVerificationToken *string    `json:"-"`
	EmailVerificationExp   *time.Time `json:"-"`
	PasswordResetToken     *string    `json:"-"`
	PasswordResetExp       *time.Time `json:"-"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// IsLocal reports whether the account authenticates with a password owned by
// this system.
func (u *User) IsLocal() bool {
	return u.Provider == ProviderLocal
}
