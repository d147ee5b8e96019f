package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/obra-api/internal/models"
)

// AuditRepository appends and lists audit trail rows.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// CreateAuditLog stores an audit log entry.
func (r *AuditRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return insertAuditLog(ctx, r.db, log)
}

// insertAuditLog runs on either the pool or an open transaction.
func insertAuditLog(ctx context.Context, q sqlx.QueryerContext, log *models.AuditLog) error {
	const query = `INSERT INTO logs_auditoria (usuario_id, accion, descripcion, tabla_afectada, registro_id, ip_address)
	VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, fecha`
	if err := q.QueryRowxContext(ctx, query,
		log.UserID, log.Action, log.Description, log.Table, log.RecordID, log.IPAddress,
	).Scan(&log.ID, &log.CreatedAt); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// List returns audit rows newest first together with the total count.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("usuario_id = $%d", len(args)))
	}
	if filter.Table != "" {
		args = append(args, filter.Table)
		conditions = append(conditions, fmt.Sprintf("tabla_afectada = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		conditions = append(conditions, fmt.Sprintf("accion = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	listQuery := fmt.Sprintf(`SELECT id, usuario_id, accion, descripcion, tabla_afectada, registro_id, ip_address, fecha FROM logs_auditoria%s ORDER BY fecha DESC, id DESC LIMIT %d OFFSET %d`,
		where, filter.Page.PageSize, filter.Page.Offset())
	var logs []models.AuditLog
	if err := r.db.SelectContext(ctx, &logs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM logs_auditoria"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}
	return logs, total, nil
}
