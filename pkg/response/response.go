package response

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/prhi-portal-api/internal/models"
	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
)

// Envelope represents the common response contract.
type Envelope struct {
	Data          interface{}            `json:"data,omitempty"`
	Error         *appErrors.Error       `json:"error,omitempty"`
	Pagination    *models.Pagination     `json:"pagination,omitempty"`
	Notifications []models.Notification  `json:"notifications,omitempty"`
	Meta          map[string]interface{} `json:"meta,omitempty"`
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	envelope := Envelope{Data: data, Pagination: pagination, Notifications: pendingNotifications(c)}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, Envelope{Error: appErr, Notifications: pendingNotifications(c)})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Attachment streams a rendered file as a download.
func Attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

// ContextNotificationsKey holds a func returning the caller's live transient notifications.
const ContextNotificationsKey = "portal_notifications"

func pendingNotifications(c *gin.Context) []models.Notification {
	value, ok := c.Get(ContextNotificationsKey)
	if !ok {
		return nil
	}
	list, ok := value.(func() []models.Notification)
	if !ok || list == nil {
		return nil
	}
	return list()
}
