package store

import (
	"context"
	"fmt"
	"time"

	"github.com/finsec-io/finsec-api/internal/models"
)

const sessionColumns = `id, user_id, session_id, device_info, ip_address, is_active,
	created_at, last_active_at, expires_at`

func scanSession(row interface{ Scan(...any) error }) (*models.Session, error) {
	session := &models.Session{}
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.SessionID,
		&session.DeviceInfo,
		&session.IPAddress,
		&session.IsActive,
		&session.CreatedAt,
		&session.LastActiveAt,
		&session.ExpiresAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return session, nil
}

// CreateSession inserts an active session. The caller supplies SessionID and ExpiresAt.
func (s *Store) CreateSession(ctx context.Context, session *models.Session) error {
	now := s.now()
	session.ID = generateID()
	session.IsActive = true
	session.CreatedAt = now
	session.LastActiveAt = now
	session.ExpiresAt = session.ExpiresAt.UTC()

	_, err := s.exec(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.SessionID, session.DeviceInfo, session.IPAddress,
		session.IsActive, session.CreatedAt, session.LastActiveAt, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession returns the session regardless of its active flag.
func (s *Store) GetSession(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	return scanSession(s.queryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? AND session_id = ?`,
		userID, sessionID))
}

// GetActiveSession returns the session only while it is active.
func (s *Store) GetActiveSession(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	return scanSession(s.queryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? AND session_id = ? AND is_active = ?`,
		userID, sessionID, true))
}

func (s *Store) TouchSession(ctx context.Context, id string) (time.Time, error) {
	now := s.now()
	_, err := s.exec(ctx, `UPDATE sessions SET last_active_at = ? WHERE id = ?`, now, id)
	return now, err
}

// DeactivateSession marks a session inactive. Deactivating an inactive session is a no-op.
func (s *Store) DeactivateSession(ctx context.Context, id string) error {
	_, err := s.exec(ctx, `UPDATE sessions SET is_active = ? WHERE id = ?`, false, id)
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	return nil
}

// DeactivateExpiredSessions soft-deactivates every active session past its expiry.
func (s *Store) DeactivateExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return s.execAffected(ctx,
		`UPDATE sessions SET is_active = ? WHERE is_active = ? AND expires_at <= ?`,
		false, true, now.UTC())
}

func (s *Store) CountActiveSessions(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.queryRow(ctx,
		`SELECT COUNT(*) FROM sessions WHERE user_id = ? AND is_active = ?`, userID, true).Scan(&count)
	return count, err
}
