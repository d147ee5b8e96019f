package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/obra-api/internal/dto"
	"github.com/noah-isme/obra-api/internal/models"
	"github.com/noah-isme/obra-api/pkg/device"
	appErrors "github.com/noah-isme/obra-api/pkg/errors"
)

const operationMilestoneCreate = "milestone_create"

type milestoneStore interface {
	Create(ctx context.Context, m *models.Milestone) error
	ListByProject(ctx context.Context, projectID int64) ([]models.Milestone, error)
}

// MilestoneService runs the milestone pipelines.
type MilestoneService struct {
	milestones    milestoneStore
	projects      projectReader
	users         userLookup
	permissions   capabilityResolver
	audit         *AuditService
	notifications *NotificationService
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewMilestoneService constructs the service.
func NewMilestoneService(milestones milestoneStore, projects projectReader, users userLookup, permissions capabilityResolver, audit *AuditService, notifications *NotificationService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *MilestoneService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &MilestoneService{
		milestones:    milestones,
		projects:      projects,
		users:         users,
		permissions:   permissions,
		audit:         audit,
		notifications: notifications,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
	}
}

// Create stores a milestone and tells every project member about it. The
// milestone's responsible gets a personalised message.
func (s *MilestoneService) Create(ctx context.Context, actor *models.Identity, dev device.Info, req dto.CreateMilestoneRequest) (*dto.MilestoneResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordMutation(operationMilestoneCreate, OutcomeInvalid)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "proyecto_id y nombre son requeridos")
	}
	due, err := dto.ParseDate(req.DueDate)
	if err != nil {
		s.metrics.RecordMutation(operationMilestoneCreate, OutcomeInvalid)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "fecha_limite inválida")
	}

	project, caps, err := loadProjectWithCaps(ctx, s.projects, s.permissions, actor, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if !CanMutate(caps, ProjectSnapshot(project)) {
		s.metrics.RecordMutation(operationMilestoneCreate, OutcomeForbidden)
		return nil, appErrors.Clone(appErrors.ErrForbidden, "No tienes permisos para crear hitos en este proyecto")
	}
	if err := ensureUsersExist(ctx, s.users, req.ResponsibleID); err != nil {
		s.metrics.RecordMutation(operationMilestoneCreate, OutcomeInvalid)
		return nil, err
	}

	milestone := &models.Milestone{
		ProjectID:     project.ID,
		Name:          req.Name,
		Description:   strings.TrimSpace(req.Description),
		DueDate:       due,
		ResponsibleID: req.ResponsibleID,
		CreatorID:     actor.UserID,
	}
	if err := s.milestones.Create(ctx, milestone); err != nil {
		s.metrics.RecordMutation(operationMilestoneCreate, OutcomeFailed)
		return nil, appErrors.Internal(err, "Error al crear el hito")
	}
	s.metrics.RecordMutation(operationMilestoneCreate, OutcomeApplied)

	result := &dto.MilestoneResult{Milestone: milestone}
	result.Warn(s.audit.Record(ctx, AuditEvent{
		UserID:      actor.UserID,
		Action:      models.AuditActionMilestone,
		Description: fmt.Sprintf("Hito '%s' creado en el proyecto %s", milestone.Name, project.Name),
		Table:       models.TableMilestones,
		RecordID:    milestone.ID,
		Device:      dev,
	}))

	url := fmt.Sprintf("/proyectos/%d/hitos/%d", project.ID, milestone.ID)
	general := fmt.Sprintf("Nuevo hito '%s' en el proyecto %s", milestone.Name, project.Name)
	personal := fmt.Sprintf("Fuiste asignado como responsable del hito '%s' en el proyecto %s", milestone.Name, project.Name)
	exclude := []int64{actor.UserID}
	if r := milestone.ResponsibleID; r != nil && *r != actor.UserID {
		exclude = append(exclude, *r)
		result.Warn(s.notifications.NotifyUser(ctx, models.Notification{
			UserID: *r, Message: personal, Type: models.NotificationTypeMilestone, Subject: "Hito asignado", URL: url,
		}))
	}
	warnings := s.notifications.NotifyProjectMembers(ctx, project.ID, func(int64) (models.Notification, bool) {
		return models.Notification{Message: general, Type: models.NotificationTypeMilestone, Subject: "Nuevo hito", URL: url}, true
	}, exclude...)
	result.Warn(warnings...)
	return result, nil
}

// ListByProject returns the milestones of a project visible to the caller.
func (s *MilestoneService) ListByProject(ctx context.Context, actor *models.Identity, projectID int64) ([]models.Milestone, error) {
	project, caps, err := loadProjectWithCaps(ctx, s.projects, s.permissions, actor, projectID)
	if err != nil {
		return nil, err
	}
	if !CanView(caps, ProjectSnapshot(project)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "No tienes acceso a este proyecto")
	}
	items, err := s.milestones.ListByProject(ctx, projectID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list milestones")
	}
	if items == nil {
		items = []models.Milestone{}
	}
	return items, nil
}
