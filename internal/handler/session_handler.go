package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/prhi-portal-api/internal/dto"
	"github.com/noah-isme/prhi-portal-api/internal/middleware"
	"github.com/noah-isme/prhi-portal-api/internal/service"
	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
	"github.com/noah-isme/prhi-portal-api/pkg/response"
)

type portalRegistry interface {
	New(meta service.ClientMeta) *service.Portal
	Register(sessionID string, p *service.Portal)
	Remove(sessionID string)
}

// SessionHandler opens, resumes and closes portal sessions.
type SessionHandler struct {
	portals portalRegistry
	logger  *zap.Logger
}

// NewSessionHandler creates a new handler.
func NewSessionHandler(portals portalRegistry, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{portals: portals, logger: logger}
}

// Login godoc
// @Summary Sign in
// @Description Authenticate by email and password and open a portal session
// @Tags Session
// @Accept json
// @Produce json
// @Param payload body dto.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /session/login [post]
func (h *SessionHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	p := h.portals.New(clientMeta(c))
	if !p.Sessions.Login(c.Request.Context(), req.Email, req.Password) {
		c.Set(response.ContextNotificationsKey, p.Notifier.List)
		err := appErrors.Clone(appErrors.ErrInvalidCredentials, "Invalid login credentials")
		if len(p.Notifier.List()) > 0 {
			err = appErrors.Clone(appErrors.ErrUnauthorized, "Failed to load your profile.")
		}
		response.Error(c, err)
		p.Close()
		return
	}
	h.open(c, p, http.StatusOK)
}

// Register godoc
// @Summary Register as an applicant
// @Tags Session
// @Accept json
// @Produce json
// @Param payload body dto.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /session/register [post]
func (h *SessionHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	p := h.portals.New(clientMeta(c))
	_, err := p.Sessions.Register(c.Request.Context(), service.RegisterInput{
		FirstName:  req.FirstName,
		MiddleName: req.MiddleName,
		LastName:   req.LastName,
		Email:      req.Email,
		Password:   req.Password,
	})
	if err == nil {
		if _, ok := p.CurrentUser(); !ok {
			err = appErrors.Clone(appErrors.ErrUnauthorized, "Failed to load your profile.")
		}
	}
	if err != nil {
		c.Set(response.ContextNotificationsKey, p.Notifier.List)
		response.Error(c, err)
		p.Close()
		return
	}
	p.Notifier.ShowSuccess("Registration successful! Welcome.")
	h.open(c, p, http.StatusCreated)
}

// Restore godoc
// @Summary Resume a session
// @Description Exchange a refresh token for a new portal session
// @Tags Session
// @Accept json
// @Produce json
// @Param payload body dto.RestoreRequest true "Refresh token"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /session/restore [post]
func (h *SessionHandler) Restore(c *gin.Context) {
	var req dto.RestoreRequest
	if !bindJSON(c, &req) {
		return
	}

	p := h.portals.New(clientMeta(c))
	if _, err := p.Sessions.Restore(c.Request.Context(), req.RefreshToken); err != nil {
		c.Set(response.ContextNotificationsKey, p.Notifier.List)
		response.Error(c, err)
		p.Close()
		return
	}
	h.open(c, p, http.StatusOK)
}

func (h *SessionHandler) open(c *gin.Context, p *service.Portal, status int) {
	session := p.Auth.Session()
	user, _ := p.CurrentUser()
	if previous := middleware.ClaimsFromContext(c); previous != nil && previous.SessionID != session.SessionID {
		h.portals.Remove(previous.SessionID)
	}
	h.portals.Register(session.SessionID, p)
	middleware.AttachPortal(c, session.SessionID, p)
	h.logger.Info("portal opened", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	response.JSON(c, status, dto.NewSessionResponse(session, user), nil)
}

// Logout godoc
// @Summary Sign out
// @Tags Session
// @Produce json
// @Success 204 {object} response.Envelope
// @Router /session/logout [post]
func (h *SessionHandler) Logout(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	if err := p.Sessions.Logout(c.Request.Context()); err != nil {
		h.logger.Warn("refresh token revocation failed", zap.Error(err))
	}
	if claims := middleware.ClaimsFromContext(c); claims != nil {
		h.portals.Remove(claims.SessionID)
	}
	response.NoContent(c)
}

// Me godoc
// @Summary Current identity
// @Tags Session
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session/me [get]
func (h *SessionHandler) Me(c *gin.Context) {
	_, user, ok := currentPortal(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// ChangePassword godoc
// @Summary Change password
// @Description Re-verifies the current password; returns the session's new tokens
// @Tags Session
// @Accept json
// @Produce json
// @Param payload body dto.ChangePasswordRequest true "Passwords"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /session/change-password [post]
func (h *SessionHandler) ChangePassword(c *gin.Context) {
	p, user, ok := currentPortal(c)
	if !ok {
		return
	}
	var req dto.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := p.Sessions.ChangePassword(c.Request.Context(), req.CurrentPassword, req.NewPassword); err != nil {
		fail(c, p, err)
		return
	}
	p.Notifier.ShowSuccess("Password changed successfully.")
	response.JSON(c, http.StatusOK, dto.NewSessionResponse(p.Auth.Session(), user), nil)
}

// UpdateProfile godoc
// @Summary Rename a user
// @Description Renames the caller, or any user when the caller is an admin
// @Tags Session
// @Accept json
// @Produce json
// @Param payload body dto.UpdateProfileRequest true "Profile"
// @Success 200 {object} response.Envelope
// @Router /session/profile [put]
func (h *SessionHandler) UpdateProfile(c *gin.Context) {
	p, user, ok := currentPortal(c)
	if !ok {
		return
	}
	var req dto.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	target := strings.TrimSpace(req.UserID)
	if target == "" {
		target = user.ID
	}
	if err := p.Sessions.UpdateProfileName(c.Request.Context(), target, req.Name); err != nil {
		fail(c, p, err)
		return
	}
	switch {
	case target != user.ID:
		p.Notifier.ShowSuccess("User " + strings.TrimSpace(req.Name) + " updated successfully.")
	case user.IsApplicant():
		p.Notifier.ShowSuccess("Profile details updated successfully!")
	default:
		p.Notifier.ShowSuccess("Profile updated successfully!")
	}
	updated, _ := p.CurrentUser()
	response.JSON(c, http.StatusOK, updated, nil)
}

// UploadAvatar godoc
// @Summary Upload an avatar
// @Tags Session
// @Accept mpfd
// @Produce json
// @Param file formData file true "Image"
// @Param user_id formData string false "Target user (admins only)"
// @Success 200 {object} response.Envelope
// @Router /session/avatar [post]
func (h *SessionHandler) UploadAvatar(c *gin.Context) {
	p, user, ok := currentPortal(c)
	if !ok {
		return
	}
	upload, err := formUpload(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	if upload == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file field required"))
		return
	}
	target := strings.TrimSpace(c.PostForm("user_id"))
	if target == "" {
		target = user.ID
	}

	ctx := c.Request.Context()
	url, err := p.Store.UploadAvatar(ctx, target, *upload)
	if err == nil {
		err = p.Store.UpdateUserAvatar(ctx, target, url)
	}
	if err != nil {
		fail(c, p, err)
		return
	}
	p.Notifier.ShowSuccess("Avatar updated successfully!")
	response.JSON(c, http.StatusOK, dto.AvatarResponse{AvatarURL: url}, nil)
}
