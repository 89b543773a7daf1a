package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/finsec-io/finsec-api/internal/models"
	"github.com/finsec-io/finsec-api/internal/store"
	"github.com/rs/zerolog"
)

const sessionIDBytes = 32

// Column widths of sessions.device_info and sessions.ip_address.
const (
	maxDeviceInfoLen = 255
	maxIPAddressLen  = 45
)

// SessionManager owns the lifecycle of server-side sessions.
type SessionManager struct {
	store  *store.Store
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

func NewSessionManager(st *store.Store, ttl time.Duration, logger zerolog.Logger) *SessionManager {
	return &SessionManager{
		store:  st,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With().Str("component", "sessions").Logger(),
	}
}

// generateSessionID returns 256 bits of randomness, URL-safe encoded.
func generateSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// clip drops invalid UTF-8 and cuts s to at most n bytes on a rune boundary.
func clip(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Create opens a new active session. A zero ttl uses the configured default.
func (m *SessionManager) Create(ctx context.Context, userID, deviceInfo, ipAddress string, ttl time.Duration) (*models.Session, error) {
	if ttl <= 0 {
		ttl = m.ttl
	}
	sid, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		UserID:     userID,
		SessionID:  sid,
		DeviceInfo: clip(deviceInfo, maxDeviceInfoLen),
		IPAddress:  clip(ipAddress, maxIPAddressLen),
		ExpiresAt:  m.now().Add(ttl),
	}
	if err := m.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Resolve returns the active session, or nil when none matches.
func (m *SessionManager) Resolve(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	session, err := m.store.GetActiveSession(ctx, userID, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return session, err
}

// Find returns the session whatever its active flag, or nil when none matches.
func (m *SessionManager) Find(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	session, err := m.store.GetSession(ctx, userID, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return session, err
}

// Touch refreshes last-active. Failures are logged and never block the request.
func (m *SessionManager) Touch(ctx context.Context, session *models.Session) {
	at, err := m.store.TouchSession(ctx, session.ID)
	if err != nil {
		m.logger.Warn().Err(err).Str("user_id", session.UserID).Msg("failed to touch session")
		return
	}
	session.LastActiveAt = at
}

// Deactivate is idempotent.
func (m *SessionManager) Deactivate(ctx context.Context, session *models.Session) error {
	if err := m.store.DeactivateSession(ctx, session.ID); err != nil {
		return err
	}
	session.IsActive = false
	return nil
}

func (m *SessionManager) IsExpired(session *models.Session, now time.Time) bool {
	return session.IsExpired(now)
}

// SweepExpired deactivates every active session past its expiry.
func (m *SessionManager) SweepExpired(ctx context.Context) (int64, error) {
	return m.store.DeactivateExpiredSessions(ctx, m.now())
}
