package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/finsec-io/finsec-api/internal/models"
)

var ErrEmailTaken = errors.New("email already taken")

const userColumns = `id, email, password_hash, first_name, last_name, mfa_secret,
	mfa_enabled, is_active, is_admin, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	var secret sql.NullString
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&secret,
		&user.MFAEnabled,
		&user.IsActive,
		&user.IsAdmin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	if secret.Valid {
		user.MFASecret = &secret.String
	}
	return user, nil
}

// CreateUser inserts a user. ID and timestamps are assigned here.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	now := s.now()
	user.ID = generateID()
	user.Email = normalizeEmail(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := s.FindUserByEmail(ctx, user.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	_, err := s.exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.MFASecret,
		user.MFAEnabled, user.IsActive, user.IsAdmin, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindUserByEmail looks a user up by email, case-insensitively.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.queryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, normalizeEmail(email)))
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// EnableMFA stores a freshly generated TOTP secret and turns MFA on.
func (s *Store) EnableMFA(ctx context.Context, userID, secret string) error {
	n, err := s.execAffected(ctx,
		`UPDATE users SET mfa_secret = ?, mfa_enabled = ?, updated_at = ? WHERE id = ?`,
		secret, true, s.now(), userID)
	if err != nil {
		return fmt.Errorf("enable mfa: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
