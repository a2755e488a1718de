package models

import (
	"time"
)

// Role is the access level of a user.
type Role string

const (
	RoleSalesperson Role = "salesperson"
	RoleAdmin       Role = "admin"
	RoleUser        Role = "user"
)

// Valid reports whether r is one of the assignable roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSalesperson, RoleAdmin, RoleUser:
		return true
	}
	return false
}

// UserRole assigns a role to an identity-provider user. A user without a row
// falls back to the configured default role.
type UserRole struct {
	UserID    string    `gorm:"primaryKey;size:64" json:"user_id"`
	Role      Role      `gorm:"size:16;not null;default:salesperson" json:"role"`
	Email     *string   `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Screen is the landing view a caller is routed to.
type Screen string

const (
	ScreenLogin Screen = "login"
	ScreenAdmin Screen = "admin"
	ScreenMain  Screen = "main"
)

// HomeFor returns the screen an authenticated user with the given role lands on.
func HomeFor(role Role) Screen {
	if role == RoleAdmin {
		return ScreenAdmin
	}
	return ScreenMain
}

// Principal is the authenticated caller extracted from a bearer token.
type Principal struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// RevokedToken records a signed-out token until it expires.
type RevokedToken struct {
	TokenID   string    `gorm:"primaryKey;size:64"`
	UserID    string    `gorm:"index"`
	ExpiresAt time.Time `gorm:"index"`
	RevokedAt time.Time `gorm:"autoCreateTime"`
}
