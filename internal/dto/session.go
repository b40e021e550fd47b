package dto

import (
	"time"

	"github.com/noah-isme/prhi-portal-api/internal/models"
)

// LoginRequest is the sign-in payload.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest is the applicant self-registration payload.
type RegisterRequest struct {
	FirstName  string `json:"first_name" binding:"required"`
	MiddleName string `json:"middle_name"`
	LastName   string `json:"last_name" binding:"required"`
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// RestoreRequest resumes a session from its refresh token.
type RestoreRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ChangePasswordRequest re-verifies the current password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// UpdateProfileRequest renames a user; admins may name another user.
type UpdateProfileRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name" binding:"required"`
}

// SessionResponse carries the tokens of a portal session and its identity.
type SessionResponse struct {
	SessionID    string      `json:"session_id"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresAt    time.Time   `json:"expires_at"`
	User         models.User `json:"user"`
}

// NewSessionResponse pairs a session with the loaded identity.
func NewSessionResponse(session *models.Session, user models.User) SessionResponse {
	return SessionResponse{
		SessionID:    session.SessionID,
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    session.ExpiresAt,
		User:         user,
	}
}

// AvatarResponse returns the cache-busted avatar URL.
type AvatarResponse struct {
	AvatarURL string `json:"avatar_url"`
}
