package models

import "time"

// Session is the server-side record backing every bearer token.
// Rows are soft-deactivated and never deleted.
type Session struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"userId" db:"user_id"`
	SessionID    string    `json:"sessionId" db:"session_id"`
	DeviceInfo   string    `json:"deviceInfo" db:"device_info"`
	IPAddress    string    `json:"ipAddress" db:"ip_address"`
	IsActive     bool      `json:"isActive" db:"is_active"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	LastActiveAt time.Time `json:"lastActiveAt" db:"last_active_at"`
	ExpiresAt    time.Time `json:"expiresAt" db:"expires_at"`
}

// IsExpired reports whether the session expiry is at or before now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
