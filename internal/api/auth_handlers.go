package api

import (
	"net/http"

	"github.com/finsec-io/finsec-api/internal/apperr"
	"github.com/finsec-io/finsec-api/internal/auth"
	"github.com/finsec-io/finsec-api/internal/models"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type verifyMFARequest struct {
	UserID   string `json:"userId" validate:"required"`
	OTPCode  string `json:"otpCode" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type logoutRequest struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

type generateMFARequest struct {
	UserID string `json:"userId" validate:"required"`
}

type sessionResponse struct {
	Message     string       `json:"message"`
	AccessToken string       `json:"access_token"`
	SessionID   string       `json:"session_id"`
	User        *models.User `json:"user"`
}

type mfaChallengeResponse struct {
	Message    string `json:"message"`
	UserID     string `json:"userId"`
	RequireMFA bool   `json:"requireMfa"`
}

func (api *Api) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := api.decodeAndValidate(r, &req); err != nil {
		api.writeError(w, r, err)
		return
	}

	result, err := api.auth.Login(r.Context(), req.Email, req.Password, clientFrom(r))
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	if result.RequireMFA {
		writeJSON(w, http.StatusOK, mfaChallengeResponse{
			Message:    "MFA verification required",
			UserID:     result.UserID,
			RequireMFA: true,
		})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Message:     "Login successful",
		AccessToken: result.AccessToken,
		SessionID:   result.SessionID,
		User:        result.User,
	})
}

func (api *Api) VerifyMFAHandler(w http.ResponseWriter, r *http.Request) {
	var req verifyMFARequest
	if err := api.decodeAndValidate(r, &req); err != nil {
		api.writeError(w, r, err)
		return
	}

	result, err := api.auth.VerifyMFA(r.Context(), auth.MFAChallenge{
		UserID:   req.UserID,
		Code:     req.OTPCode,
		Email:    req.Email,
		Password: req.Password,
	}, clientFrom(r))
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Message:     "MFA verification successful",
		AccessToken: result.AccessToken,
		SessionID:   result.SessionID,
		User:        result.User,
	})
}

func (api *Api) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		api.writeError(w, r, apperr.Unauthorized("authentication required"))
		return
	}

	var req logoutRequest
	if err := api.decode(r, &req, true); err != nil {
		api.writeError(w, r, err)
		return
	}

	var override *auth.SessionRef
	if req.UserID != "" && req.SessionID != "" {
		override = &auth.SessionRef{UserID: req.UserID, SessionID: req.SessionID}
	}

	if err := api.auth.Logout(r.Context(), id, override); err != nil {
		api.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (api *Api) GenerateMFASecretHandler(w http.ResponseWriter, r *http.Request) {
	var req generateMFARequest
	if err := api.decodeAndValidate(r, &req); err != nil {
		api.writeError(w, r, err)
		return
	}

	key, err := api.auth.GenerateMFASecret(r.Context(), req.UserID)
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "MFA secret generated successfully",
		"mfa_secret": key.Secret,
		"totp_uri":   key.URI,
	})
}
