package models

import "time"

// NotificationType is the severity of a transient notification.
type NotificationType string

const (
	NotificationSuccess  NotificationType = "success"
	NotificationError    NotificationType = "error"
	NotificationInfo     NotificationType = "info"
	NotificationCritical NotificationType = "critical"
)

// Notification is a short-lived message shown to the portal's user.
type Notification struct {
	ID      int64            `json:"id"`
	Message string           `json:"message"`
	Type    NotificationType `json:"type"`
}

// InAppNotification is a persistent inbox entry addressed to a user email.
type InAppNotification struct {
	ID        int64     `json:"id"`
	UserEmail string    `json:"user_email"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	Timestamp time.Time `json:"timestamp"`
}
