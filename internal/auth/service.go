package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/finsec-io/finsec-api/internal/apperr"
	"github.com/finsec-io/finsec-api/internal/events"
	"github.com/finsec-io/finsec-api/internal/models"
	"github.com/finsec-io/finsec-api/internal/store"
	"github.com/rs/zerolog"
)

const invalidCredentials = "Invalid credentials"

// Client describes where a login came from.
type Client struct {
	DeviceInfo string
	IPAddress  string
}

// LoginResult is either a completed login or an MFA challenge.
type LoginResult struct {
	RequireMFA  bool
	UserID      string
	AccessToken string
	ExpiresAt   time.Time
	SessionID   string
	User        *models.User
}

// MFAChallenge carries the second login step.
type MFAChallenge struct {
	UserID   string
	Code     string
	Email    string
	Password string
}

// SessionRef names a session by owner and session id.
type SessionRef struct {
	UserID    string
	SessionID string
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID    string
	SessionID string
	Session   *models.Session
}

// Service drives the login state machine and token authentication.
type Service struct {
	store     *store.Store
	sessions  *SessionManager
	tokens    *TokenIssuer
	events    events.Publisher
	mfaIssuer string
	now       func() time.Time
	logger    zerolog.Logger
}

func NewService(st *store.Store, sessions *SessionManager, tokens *TokenIssuer, publisher events.Publisher, mfaIssuer string, logger zerolog.Logger) *Service {
	return &Service{
		store:     st,
		sessions:  sessions,
		tokens:    tokens,
		events:    publisher,
		mfaIssuer: mfaIssuer,
		now:       time.Now,
		logger:    logger.With().Str("component", "auth").Logger(),
	}
}

func internalErr(err error) error {
	return apperr.Wrap(apperr.KindInternal, "", err)
}

// Login checks email and password. Users with MFA enabled get a challenge
// and no session.
func (s *Service) Login(ctx context.Context, email, password string, client Client) (*LoginResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperr.InvalidRequest("email and password are required")
	}

	user, err := s.store.FindUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		VerifyPassword(nil, password)
		s.logger.Info().Str("reason", "unknown email").Msg("login rejected")
		return nil, apperr.Unauthorized(invalidCredentials)
	}
	if err != nil {
		return nil, internalErr(err)
	}

	if !VerifyPassword(user, password) {
		s.logger.Info().Str("user_id", user.ID).Str("reason", "wrong password").Msg("login rejected")
		return nil, apperr.Unauthorized(invalidCredentials)
	}
	if !user.IsActive {
		return nil, apperr.Forbidden("account is inactive")
	}

	if user.MFAEnabled {
		s.logger.Info().Str("user_id", user.ID).Msg("mfa required")
		return &LoginResult{RequireMFA: true, UserID: user.ID}, nil
	}
	return s.startSession(ctx, user, client)
}

// VerifyMFA completes a challenged login. Email and password are checked
// again alongside the TOTP code.
func (s *Service) VerifyMFA(ctx context.Context, challenge MFAChallenge, client Client) (*LoginResult, error) {
	if challenge.UserID == "" || challenge.Code == "" || challenge.Email == "" || challenge.Password == "" {
		return nil, apperr.InvalidRequest("userId, otpCode, email and password are required")
	}

	user, err := s.store.FindUserByID(ctx, challenge.UserID)
	if errors.Is(err, store.ErrNotFound) {
		VerifyPassword(nil, challenge.Password)
		s.logger.Info().Str("reason", "unknown user").Msg("mfa rejected")
		return nil, apperr.Unauthorized(invalidCredentials)
	}
	if err != nil {
		return nil, internalErr(err)
	}

	passwordOK := VerifyPassword(user, challenge.Password)
	if !passwordOK || !strings.EqualFold(user.Email, strings.TrimSpace(challenge.Email)) {
		s.logger.Info().Str("user_id", user.ID).Str("reason", "credential mismatch").Msg("mfa rejected")
		return nil, apperr.Unauthorized(invalidCredentials)
	}
	if !user.IsActive {
		return nil, apperr.Forbidden("account is inactive")
	}
	if !user.MFAEnabled || !user.HasMFASecret() {
		return nil, apperr.NotFound("no MFA enrollment for this account")
	}
	if !VerifyTOTP(*user.MFASecret, challenge.Code, s.now()) {
		s.logger.Info().Str("user_id", user.ID).Str("reason", "wrong code").Msg("mfa rejected")
		return nil, apperr.Unauthorized(invalidCredentials)
	}

	return s.startSession(ctx, user, client)
}

func (s *Service) startSession(ctx context.Context, user *models.User, client Client) (*LoginResult, error) {
	session, err := s.sessions.Create(ctx, user.ID, client.DeviceInfo, client.IPAddress, 0)
	if err != nil {
		return nil, internalErr(err)
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, session.SessionID)
	if err != nil {
		if derr := s.sessions.Deactivate(ctx, session); derr != nil {
			s.logger.Error().Err(derr).Msg("failed to deactivate orphaned session")
		}
		return nil, internalErr(err)
	}

	if err := s.events.PublishSessionCreated(ctx, events.SessionCreated{
		UserID:     user.ID,
		DeviceInfo: session.DeviceInfo,
		IPAddress:  session.IPAddress,
		ExpiresAt:  session.ExpiresAt,
		Timestamp:  session.CreatedAt,
	}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish session.created")
	}

	evt := s.logger.Info().Str("user_id", user.ID)
	if n, err := s.store.CountActiveSessions(ctx, user.ID); err == nil {
		evt = evt.Int("active_sessions", n)
	}
	evt.Msg("login successful")
	return &LoginResult{
		UserID:      user.ID,
		AccessToken: token,
		ExpiresAt:   expiresAt,
		SessionID:   session.SessionID,
		User:        user,
	}, nil
}

// Authenticate resolves a bearer token to an active, unexpired session and
// refreshes its last-active time. Missing and expired sessions look the same
// to the caller.
func (s *Service) Authenticate(ctx context.Context, token string) (*Identity, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		s.logger.Debug().Err(err).Msg("token rejected")
		return nil, apperr.Unauthorized("invalid or expired token")
	}

	session, err := s.sessions.Resolve(ctx, claims.UserID, claims.SessionID)
	if err != nil {
		return nil, internalErr(err)
	}
	if session == nil {
		s.logger.Info().Str("user_id", claims.UserID).Str("reason", "no such session").Msg("token rejected")
		return nil, apperr.Unauthorized("session expired or invalid")
	}
	if s.sessions.IsExpired(session, s.now()) {
		if err := s.sessions.Deactivate(ctx, session); err != nil {
			s.logger.Error().Err(err).Msg("failed to deactivate expired session")
		}
		s.logger.Info().Str("user_id", claims.UserID).Str("reason", "session expired").Msg("token rejected")
		return nil, apperr.Unauthorized("session expired or invalid")
	}

	s.sessions.Touch(ctx, session)
	return &Identity{UserID: claims.UserID, SessionID: claims.SessionID, Session: session}, nil
}

// Logout deactivates the caller's session. An override naming another
// session is honoured only for admin callers and ignored otherwise.
func (s *Service) Logout(ctx context.Context, id *Identity, override *SessionRef) error {
	target := SessionRef{UserID: id.UserID, SessionID: id.SessionID}

	if override != nil && override.UserID != "" && override.SessionID != "" && *override != target {
		caller, err := s.store.FindUserByID(ctx, id.UserID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return internalErr(err)
		}
		if caller != nil && caller.IsAdmin {
			s.logger.Info().Str("admin_id", caller.ID).Str("target_user_id", override.UserID).Msg("admin logout override")
			target = *override
		} else {
			s.logger.Warn().Str("user_id", id.UserID).Str("target_user_id", override.UserID).Msg("ignoring logout override from non-admin caller")
		}
	}

	session, err := s.sessions.Find(ctx, target.UserID, target.SessionID)
	if err != nil {
		return internalErr(err)
	}
	if session == nil {
		return apperr.NotFound("session not found")
	}
	if err := s.sessions.Deactivate(ctx, session); err != nil {
		return internalErr(err)
	}

	s.logger.Info().Str("user_id", target.UserID).Msg("logout successful")
	return nil
}

// GenerateMFASecret enrolls a user in TOTP and returns the new secret.
// A user who is already enrolled is refused rather than silently re-keyed.
func (s *Service) GenerateMFASecret(ctx context.Context, userID string) (*MFAKey, error) {
	if userID == "" {
		return nil, apperr.InvalidRequest("userId is required")
	}

	user, err := s.store.FindUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, internalErr(err)
	}
	if !user.IsActive {
		return nil, apperr.Forbidden("account is inactive")
	}
	if user.MFAEnabled {
		return nil, apperr.Conflict("MFA is already enabled for this account")
	}

	key, err := GenerateMFAKey(s.mfaIssuer, user.Email)
	if err != nil {
		return nil, internalErr(err)
	}
	if err := s.store.EnableMFA(ctx, user.ID, key.Secret); err != nil {
		return nil, internalErr(err)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("mfa enrolled")
	return key, nil
}
