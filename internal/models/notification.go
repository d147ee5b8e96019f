package models

import "time"

// Notification types.
const (
	NotificationTypeTask      = "tarea"
	NotificationTypeProject   = "proyecto"
	NotificationTypeMilestone = "hito"
	NotificationTypePlan      = "plano"
)

// Notification is delivered to one recipient.
type Notification struct {
	ID      int64     `db:"id" json:"id"`
	UserID  int64     `db:"usuario_id" json:"usuario_id"`
	Message string    `db:"mensaje" json:"mensaje"`
	Type    string    `db:"tipo" json:"tipo"`
	Subject string    `db:"asunto" json:"asunto"`
	URL     string    `db:"url" json:"url"`
	Read    bool      `db:"leida" json:"leida"`
	Deleted bool      `db:"eliminada" json:"-"`
	SentAt  time.Time `db:"fecha_envio" json:"fecha_envio"`
}

// NotificationFilter constrains a recipient's inbox listing.
type NotificationFilter struct {
	UserID     int64
	UnreadOnly bool
	Page       Pagination
}
