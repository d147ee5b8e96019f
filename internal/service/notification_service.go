package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/obra-api/internal/dto"
	"github.com/noah-isme/obra-api/internal/models"
	appErrors "github.com/noah-isme/obra-api/pkg/errors"
)

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, id, userID int64) (bool, error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	SoftDelete(ctx context.Context, id, userID int64) (bool, error)
}

type projectMemberLister interface {
	MemberIDs(ctx context.Context, projectID int64) ([]int64, error)
}

// MessageFunc builds the notification for one recipient. Returning false skips the recipient.
type MessageFunc func(userID int64) (models.Notification, bool)

// NotificationService inserts per-recipient notification rows and serves the inbox.
type NotificationService struct {
	repo    notificationStore
	members projectMemberLister
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(repo notificationStore, members projectMemberLister, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, members: members, metrics: metrics, logger: logger}
}

// NotifyUser inserts one notification. A failure is returned as a warning.
func (s *NotificationService) NotifyUser(ctx context.Context, n models.Notification) string {
	if s == nil || s.repo == nil || n.UserID <= 0 {
		return ""
	}
	if err := s.repo.Create(ctx, &n); err != nil {
		s.logger.Warn("failed to create notification", zap.Int64("user_id", n.UserID), zap.String("type", n.Type), zap.Error(err))
		s.metrics.RecordSideEffectWarnings("notification", 1)
		return fmt.Sprintf("No se pudo notificar al usuario %d: %v", n.UserID, err)
	}
	return ""
}

// NotifyProjectMembers fans out to every distinct user associated with the
// project, skipping the excluded ids. One warning is returned per failed recipient.
func (s *NotificationService) NotifyProjectMembers(ctx context.Context, projectID int64, build MessageFunc, exclude ...int64) []string {
	if s == nil || s.members == nil || build == nil {
		return nil
	}
	ids, err := s.members.MemberIDs(ctx, projectID)
	if err != nil {
		s.logger.Warn("failed to load project members", zap.Int64("project_id", projectID), zap.Error(err))
		s.metrics.RecordSideEffectWarnings("notification", 1)
		return []string{fmt.Sprintf("No se pudo obtener los miembros del proyecto %d: %v", projectID, err)}
	}

	skip := make(map[int64]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	var warnings []string
	for _, id := range ids {
		if _, excluded := skip[id]; excluded {
			continue
		}
		skip[id] = struct{}{}
		n, ok := build(id)
		if !ok {
			continue
		}
		n.UserID = id
		if w := s.NotifyUser(ctx, n); w != "" {
			warnings = append(warnings, w)
		}
	}
	return warnings
}

// List returns a page of the caller's inbox and the unread count.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) (*dto.NotificationList, *models.Pagination, error) {
	filter.Page = models.NewPagination(filter.Page.Page, filter.Page.PageSize, 100)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list notifications")
	}
	unread, err := s.repo.UnreadCount(ctx, filter.UserID)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to count unread notifications")
	}
	if items == nil {
		items = []models.Notification{}
	}
	page := filter.Page
	page.TotalCount = total
	return &dto.NotificationList{Items: items, UnreadCount: unread}, &page, nil
}

// MarkRead flags one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id int64) error {
	ok, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return appErrors.Internal(err, "failed to mark notification")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "Notificación no encontrada")
	}
	return nil
}

// MarkAllRead flags every unread notification of the caller.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to mark notifications")
	}
	return n, nil
}

// Delete soft-deletes one of the caller's notifications.
func (s *NotificationService) Delete(ctx context.Context, userID, id int64) error {
	ok, err := s.repo.SoftDelete(ctx, id, userID)
	if err != nil {
		return appErrors.Internal(err, "failed to delete notification")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "Notificación no encontrada")
	}
	return nil
}
