package models

import (
	"time"
)

// User represents a bank customer.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // never sent to client
	FirstName    string    `json:"firstName" db:"first_name"`
	LastName     string    `json:"lastName" db:"last_name"`
	MFASecret    *string   `json:"-" db:"mfa_secret"`
	MFAEnabled   bool      `json:"mfaEnabled" db:"mfa_enabled"`
	IsActive     bool      `json:"isActive" db:"is_active"`
	IsAdmin      bool      `json:"-" db:"is_admin"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// HasMFASecret reports whether an enrolled TOTP secret is present.
func (u *User) HasMFASecret() bool {
	return u.MFASecret != nil && *u.MFASecret != ""
}
