package dto

import "github.com/noah-isme/obra-api/internal/models"

// NotificationList is a page of notifications plus the unread badge count.
type NotificationList struct {
	Items       []models.Notification `json:"notificaciones"`
	UnreadCount int                   `json:"no_leidas"`
}
