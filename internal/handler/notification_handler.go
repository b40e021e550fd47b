package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/prhi-portal-api/internal/dto"
	"github.com/noah-isme/prhi-portal-api/internal/service"
	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
	"github.com/noah-isme/prhi-portal-api/pkg/response"
)

// NotificationHandler exposes the transient toasts of a portal and the persistent inbox.
type NotificationHandler struct {
	inbox *service.InAppNotificationService
}

// NewNotificationHandler creates a new handler.
func NewNotificationHandler(inbox *service.InAppNotificationService) *NotificationHandler {
	return &NotificationHandler{inbox: inbox}
}

// List godoc
// @Summary Live notifications
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, p.Notifier.List(), nil)
}

// Dismiss godoc
// @Summary Dismiss a notification
// @Tags Notifications
// @Param id path int true "Notification ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notifications/{id} [delete]
func (h *NotificationHandler) Dismiss(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid notification id"))
		return
	}
	if !p.Notifier.Remove(id) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "notification not found"))
		return
	}
	response.NoContent(c)
}

// Inbox godoc
// @Summary In-app inbox
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /inbox [get]
func (h *NotificationHandler) Inbox(c *gin.Context) {
	_, user, ok := currentPortal(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, dto.InboxResponse{
		Items:     h.inbox.List(user.Email),
		HasUnread: h.inbox.HasUnread(user.Email),
	}, nil)
}

// MarkRead godoc
// @Summary Mark the inbox read
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /inbox/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	_, user, ok := currentPortal(c)
	if !ok {
		return
	}
	changed := h.inbox.MarkAllRead(user.Email)
	response.JSON(c, http.StatusOK, gin.H{"updated": changed}, nil)
}
