package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/obra-api/internal/models"
	"github.com/noah-isme/obra-api/pkg/device"
	appErrors "github.com/noah-isme/obra-api/pkg/errors"
)

type auditStore interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

// AuditEvent describes who did what to which record and from where.
type AuditEvent struct {
	UserID      int64
	Action      string
	Description string
	Table       string
	RecordID    int64
	Device      device.Info
}

// AuditService appends audit trail rows.
type AuditService struct {
	repo    auditStore
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(repo auditStore, metrics *MetricsService, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, metrics: metrics, logger: logger}
}

// Entry builds the row for event. The device bag is appended to the description,
// the address goes to its own column.
func (s *AuditService) Entry(event AuditEvent) *models.AuditLog {
	log := &models.AuditLog{
		Action:    event.Action,
		Table:     event.Table,
		IPAddress: event.Device.Address(),
	}
	if event.UserID > 0 {
		userID := event.UserID
		log.UserID = &userID
	}
	if event.RecordID > 0 {
		recordID := event.RecordID
		log.RecordID = &recordID
	}
	description := strings.TrimSpace(event.Description)
	if bag := event.Device.String(); bag != "" {
		if description != "" {
			description += " | "
		}
		description += bag
	}
	log.Description = description
	return log
}

// Record writes the event on a best-effort basis. A failure is logged and
// returned as a warning, never as an error.
func (s *AuditService) Record(ctx context.Context, event AuditEvent) string {
	if s == nil || s.repo == nil {
		return ""
	}
	if err := s.repo.CreateAuditLog(ctx, s.Entry(event)); err != nil {
		s.logger.Warn("failed to record audit log",
			zap.String("action", event.Action),
			zap.String("table", event.Table),
			zap.Int64("record_id", event.RecordID),
			zap.Error(err),
		)
		s.metrics.RecordSideEffectWarnings("audit", 1)
		return "No se pudo registrar la auditoría: " + err.Error()
	}
	return ""
}

// List returns a page of the audit trail.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error) {
	filter.Page = models.NewPagination(filter.Page.Page, filter.Page.PageSize, 100)
	filter.Action = strings.ToUpper(strings.TrimSpace(filter.Action))
	filter.Table = strings.ToLower(strings.TrimSpace(filter.Table))
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list audit logs")
	}
	page := filter.Page
	page.TotalCount = total
	return logs, &page, nil
}
