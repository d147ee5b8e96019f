package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/obra-api/internal/models"
)

// NotificationRepository persists per-recipient notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts one notification row.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	const query = `INSERT INTO notificaciones (usuario_id, mensaje, tipo, asunto, url, leida, eliminada)
	VALUES ($1, $2, $3, $4, $5, FALSE, FALSE) RETURNING id, fecha_envio`
	if err := r.db.QueryRowxContext(ctx, query, n.UserID, n.Message, n.Type, n.Subject, n.URL).Scan(&n.ID, &n.SentAt); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// List returns the recipient's live notifications, newest first, with the total count.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	where := " WHERE usuario_id = $1 AND eliminada = FALSE"
	if filter.UnreadOnly {
		where += " AND leida = FALSE"
	}

	listQuery := fmt.Sprintf(`SELECT id, usuario_id, mensaje, tipo, asunto, url, leida, eliminada, fecha_envio FROM notificaciones%s ORDER BY fecha_envio DESC, id DESC LIMIT %d OFFSET %d`,
		where, filter.Page.PageSize, filter.Page.Offset())
	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, listQuery, filter.UserID); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM notificaciones"+where, filter.UserID); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return items, total, nil
}

// UnreadCount returns how many live notifications the user has not read.
func (r *NotificationRepository) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notificaciones WHERE usuario_id = $1 AND eliminada = FALSE AND leida = FALSE`, userID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead flags one notification owned by userID as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID int64) (bool, error) {
	return r.execOwned(ctx, "mark notification read",
		`UPDATE notificaciones SET leida = TRUE WHERE id = $1 AND usuario_id = $2 AND eliminada = FALSE`, id, userID)
}

// SoftDelete hides one notification owned by userID.
func (r *NotificationRepository) SoftDelete(ctx context.Context, id, userID int64) (bool, error) {
	return r.execOwned(ctx, "delete notification",
		`UPDATE notificaciones SET eliminada = TRUE WHERE id = $1 AND usuario_id = $2 AND eliminada = FALSE`, id, userID)
}

// MarkAllRead flags every unread notification of the user and returns how many changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notificaciones SET leida = TRUE WHERE usuario_id = $1 AND eliminada = FALSE AND leida = FALSE`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check mark all rows: %w", err)
	}
	return rows, nil
}

func (r *NotificationRepository) execOwned(ctx context.Context, op, query string, id, userID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows: %w", op, err)
	}
	return rows > 0, nil
}
