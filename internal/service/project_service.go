package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/obra-api/internal/dto"
	"github.com/noah-isme/obra-api/internal/models"
	"github.com/noah-isme/obra-api/pkg/device"
	appErrors "github.com/noah-isme/obra-api/pkg/errors"
)

const (
	operationProjectCreate = "project_create"
	operationProjectUpdate = "project_update"
	operationMemberAdd     = "project_member_add"

	defaultProjectStatus = "activo"
)

type projectStore interface {
	FindByID(ctx context.Context, id int64) (*models.Project, error)
	List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, int, error)
	Create(ctx context.Context, project *models.Project, members []models.ProjectMember) error
	Update(ctx context.Context, project *models.Project, members []models.ProjectMember) error
	UpsertMember(ctx context.Context, member models.ProjectMember) error
	Members(ctx context.Context, projectID int64) ([]models.ProjectMember, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// ProjectService runs the project pipelines.
type ProjectService struct {
	projects      projectStore
	users         userLookup
	permissions   capabilityResolver
	audit         *AuditService
	notifications *NotificationService
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewProjectService constructs the service.
func NewProjectService(projects projectStore, users userLookup, permissions capabilityResolver, audit *AuditService, notifications *NotificationService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ProjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProjectService{
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

// Create stores a project. Unless another responsible is given the creator
// becomes responsible; the responsible gets edit permission.
func (s *ProjectService) Create(ctx context.Context, actor *models.Identity, dev device.Info, req dto.CreateProjectRequest) (*dto.ProjectResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordMutation(operationProjectCreate, OutcomeInvalid)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "nombre es requerido")
	}
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		s.metrics.RecordMutation(operationProjectCreate, OutcomeInvalid)
		return nil, err
	}

	responsible := req.ResponsibleID
	if responsible == nil {
		id := actor.UserID
		responsible = &id
	}
	if err := s.ensureUsers(ctx, req.ResponsibleID, req.ClientID); err != nil {
		s.metrics.RecordMutation(operationProjectCreate, OutcomeInvalid)
		return nil, err
	}

	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = defaultProjectStatus
	}
	project := &models.Project{
		Name:          req.Name,
		Description:   strings.TrimSpace(req.Description),
		Status:        status,
		StartDate:     start,
		EndDate:       end,
		ClientID:      req.ClientID,
		ResponsibleID: responsible,
	}
	if err := s.projects.Create(ctx, project, ownerAssignments(project)); err != nil {
		s.metrics.RecordMutation(operationProjectCreate, OutcomeFailed)
		return nil, appErrors.Internal(err, "Error al crear el proyecto")
	}
	s.metrics.RecordMutation(operationProjectCreate, OutcomeApplied)

	result := &dto.ProjectResult{Project: project, Changed: true}
	result.Warn(s.audit.Record(ctx, AuditEvent{
		UserID:      actor.UserID,
		Action:      models.AuditActionProjectCreate,
		Description: fmt.Sprintf("Proyecto '%s' creado", project.Name),
		Table:       models.TableProjects,
		RecordID:    project.ID,
		Device:      dev,
	}))
	result.Warn(s.notifications.NotifyProjectMembers(ctx, project.ID, func(userID int64) (models.Notification, bool) {
		return projectNotification(project, fmt.Sprintf("Fuiste agregado al proyecto '%s'", project.Name), "Nuevo proyecto"), true
	}, actor.UserID)...)
	return result, nil
}

// Get returns a project with its assignments when the caller may see it.
func (s *ProjectService) Get(ctx context.Context, actor *models.Identity, id int64) (*dto.ProjectDetail, error) {
	project, caps, err := loadProjectWithCaps(ctx, s.projects, s.permissions, actor, id)
	if err != nil {
		return nil, err
	}
	snapshot := ProjectSnapshot(project)
	if !CanView(caps, snapshot) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "No tienes acceso a este proyecto")
	}
	members, err := s.projects.Members(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load project members")
	}
	if members == nil {
		members = []models.ProjectMember{}
	}
	return &dto.ProjectDetail{
		Project:    project,
		Members:    members,
		Permission: caps.ProjectPermission,
		CanEdit:    CanMutate(caps, snapshot),
	}, nil
}

// ListForUser returns the projects the caller is associated with; admins see all.
func (s *ProjectService) ListForUser(ctx context.Context, actor *models.Identity, search string, page models.Pagination) ([]models.Project, *models.Pagination, error) {
	filter := models.ProjectFilter{
		UserID: actor.UserID,
		All:    actor.IsAdmin(),
		Search: search,
		Page:   models.NewPagination(page.Page, page.PageSize, 100),
	}
	projects, total, err := s.projects.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list projects")
	}
	if projects == nil {
		projects = []models.Project{}
	}
	pagination := filter.Page
	pagination.TotalCount = total
	return projects, &pagination, nil
}

// Update applies a partial update. A request that changes nothing succeeds
// without side effects.
func (s *ProjectService) Update(ctx context.Context, actor *models.Identity, dev device.Info, id int64, req dto.UpdateProjectRequest) (*dto.ProjectResult, error) {
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordMutation(operationProjectUpdate, OutcomeInvalid)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Datos de proyecto inválidos")
	}
	if req.Empty() {
		s.metrics.RecordMutation(operationProjectUpdate, OutcomeInvalid)
		return nil, appErrors.Clone(appErrors.ErrValidation, "No se enviaron campos para actualizar")
	}

	current, err := s.projects.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordMutation(operationProjectUpdate, OutcomeNotFound)
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Proyecto no encontrado")
		}
		return nil, appErrors.Internal(err, "failed to load project")
	}

	next, err := applyProjectUpdate(*current, req)
	if err != nil {
		s.metrics.RecordMutation(operationProjectUpdate, OutcomeInvalid)
		return nil, err
	}
	changes := projectChanges(current, &next)
	if len(changes) == 0 {
		s.metrics.RecordMutation(operationProjectUpdate, OutcomeNoop)
		return s.unchangedResult(ctx, actor, current)
	}

	caps, err := s.permissions.Capabilities(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !CanMutate(caps, ProjectSnapshot(current)) {
		s.metrics.RecordMutation(operationProjectUpdate, OutcomeForbidden)
		return nil, appErrors.Clone(appErrors.ErrForbidden, "No tienes permisos para modificar este proyecto")
	}

	newResponsible := changedID(current.ResponsibleID, next.ResponsibleID)
	newClient := changedID(current.ClientID, next.ClientID)
	if err := s.ensureUsers(ctx, newResponsible, newClient); err != nil {
		s.metrics.RecordMutation(operationProjectUpdate, OutcomeInvalid)
		return nil, err
	}

	var assignments []models.ProjectMember
	for _, m := range ownerAssignments(&next) {
		if (newResponsible != nil && m.UserID == *newResponsible) || (newClient != nil && m.UserID == *newClient) {
			assignments = append(assignments, m)
		}
	}
	if newResponsible != nil {
		assignments = appendFormerOwner(assignments, &next, current.ResponsibleID)
	}
	if newClient != nil {
		assignments = appendFormerOwner(assignments, &next, current.ClientID)
	}
	if err := s.projects.Update(ctx, &next, assignments); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordMutation(operationProjectUpdate, OutcomeNotFound)
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Proyecto no encontrado")
		}
		s.metrics.RecordMutation(operationProjectUpdate, OutcomeFailed)
		return nil, appErrors.Internal(err, "Error al actualizar el proyecto")
	}
	s.metrics.RecordMutation(operationProjectUpdate, OutcomeApplied)

	result := &dto.ProjectResult{Project: &next, Changed: true}
	result.Warn(s.audit.Record(ctx, AuditEvent{
		UserID:      actor.UserID,
		Action:      models.AuditActionProjectUpdate,
		Description: fmt.Sprintf("Proyecto '%s' actualizado: %s", next.Name, strings.Join(changes, ", ")),
		Table:       models.TableProjects,
		RecordID:    next.ID,
		Device:      dev,
	}))
	general := fmt.Sprintf("El proyecto '%s' fue actualizado", next.Name)
	result.Warn(s.notifications.NotifyProjectMembers(ctx, next.ID, func(userID int64) (models.Notification, bool) {
		if newResponsible != nil && userID == *newResponsible {
			return projectNotification(&next, fmt.Sprintf("Fuiste asignado como responsable del proyecto '%s'", next.Name), "Nuevo proyecto asignado"), true
		}
		return projectNotification(&next, general, "Proyecto actualizado"), true
	}, actor.UserID)...)
	return result, nil
}

// unchangedResult answers a no-op update. Callers who cannot view the project
// only get its id back.
func (s *ProjectService) unchangedResult(ctx context.Context, actor *models.Identity, current *models.Project) (*dto.ProjectResult, error) {
	caps, err := s.permissions.Capabilities(ctx, actor, current.ID)
	if err != nil {
		return nil, err
	}
	if !CanView(caps, ProjectSnapshot(current)) {
		return &dto.ProjectResult{Project: &models.Project{ID: current.ID}}, nil
	}
	return &dto.ProjectResult{Project: current}, nil
}

// AddMember assigns a user to a project with a permission and project role.
func (s *ProjectService) AddMember(ctx context.Context, actor *models.Identity, dev device.Info, projectID int64, req dto.AddMemberRequest) (*dto.MemberResult, error) {
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordMutation(operationMemberAdd, OutcomeInvalid)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "usuario_id es requerido")
	}
	permission := models.PermissionView
	if strings.TrimSpace(req.Permission) != "" {
		parsed, err := models.ParseProjectPermission(req.Permission)
		if err != nil {
			s.metrics.RecordMutation(operationMemberAdd, OutcomeInvalid)
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Permiso inválido: %s", req.Permission))
		}
		permission = parsed
	}
	role, err := models.ParseProjectRole(req.Role)
	if err != nil {
		s.metrics.RecordMutation(operationMemberAdd, OutcomeInvalid)
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Rol de proyecto inválido: %s", req.Role))
	}

	project, caps, err := loadProjectWithCaps(ctx, s.projects, s.permissions, actor, projectID)
	if err != nil {
		return nil, err
	}
	if !CanMutate(caps, ProjectSnapshot(project)) {
		s.metrics.RecordMutation(operationMemberAdd, OutcomeForbidden)
		return nil, appErrors.Clone(appErrors.ErrForbidden, "No tienes permisos para asignar usuarios a este proyecto")
	}
	if err := s.ensureUsers(ctx, &req.UserID); err != nil {
		s.metrics.RecordMutation(operationMemberAdd, OutcomeInvalid)
		return nil, err
	}

	member := models.ProjectMember{ProjectID: projectID, UserID: req.UserID, Permission: permission, Role: role}
	if err := s.projects.UpsertMember(ctx, member); err != nil {
		s.metrics.RecordMutation(operationMemberAdd, OutcomeFailed)
		return nil, appErrors.Internal(err, "Error al asignar el usuario")
	}
	s.metrics.RecordMutation(operationMemberAdd, OutcomeApplied)

	result := &dto.MemberResult{ProjectMember: member}
	result.Warn(s.audit.Record(ctx, AuditEvent{
		UserID:      actor.UserID,
		Action:      models.AuditActionMemberAdd,
		Description: fmt.Sprintf("Usuario %d asignado al proyecto '%s' con permiso %s", req.UserID, project.Name, permission),
		Table:       models.TableProjectUsers,
		RecordID:    projectID,
		Device:      dev,
	}))
	if req.UserID != actor.UserID {
		n := projectNotification(project, fmt.Sprintf("Fuiste agregado al proyecto '%s'", project.Name), "Asignación a proyecto")
		n.UserID = req.UserID
		result.Warn(s.notifications.NotifyUser(ctx, n))
	}
	return result, nil
}

func (s *ProjectService) ensureUsers(ctx context.Context, ids ...*int64) error {
	return ensureUsersExist(ctx, s.users, ids...)
}

// ensureUsersExist rejects references to unknown users with a validation error.
func ensureUsersExist(ctx context.Context, users userLookup, ids ...*int64) error {
	for _, id := range ids {
		if id == nil {
			continue
		}
		if _, err := users.FindByID(ctx, *id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("El usuario %d no existe", *id))
			}
			return appErrors.Internal(err, "failed to load user")
		}
	}
	return nil
}

func projectNotification(p *models.Project, message, subject string) models.Notification {
	return models.Notification{
		Message: message,
		Type:    models.NotificationTypeProject,
		Subject: subject,
		URL:     fmt.Sprintf("/proyectos/%d", p.ID),
	}
}

func ownerAssignments(p *models.Project) []models.ProjectMember {
	var members []models.ProjectMember
	if p.ResponsibleID != nil {
		members = append(members, models.ProjectMember{ProjectID: p.ID, UserID: *p.ResponsibleID, Permission: models.PermissionEdit, Role: models.ProjectRoleResponsible})
	}
	if p.ClientID != nil && (p.ResponsibleID == nil || *p.ClientID != *p.ResponsibleID) {
		members = append(members, models.ProjectMember{ProjectID: p.ID, UserID: *p.ClientID, Permission: models.PermissionView, Role: models.ProjectRoleClient})
	}
	return members
}

// appendFormerOwner keeps a replaced responsible or client on the project as a
// read-only guest. Users who still hold an owner slot are left alone.
func appendFormerOwner(assignments []models.ProjectMember, next *models.Project, former *int64) []models.ProjectMember {
	if former == nil {
		return assignments
	}
	if (next.ResponsibleID != nil && *next.ResponsibleID == *former) || (next.ClientID != nil && *next.ClientID == *former) {
		return assignments
	}
	return append(assignments, models.ProjectMember{ProjectID: next.ID, UserID: *former, Permission: models.PermissionView, Role: models.ProjectRoleInvited})
}

func applyProjectUpdate(p models.Project, req dto.UpdateProjectRequest) (models.Project, error) {
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
		if p.Name == "" {
			return p, appErrors.Clone(appErrors.ErrValidation, "nombre no puede estar vacío")
		}
	}
	if req.Description != nil {
		p.Description = strings.TrimSpace(*req.Description)
	}
	if req.Status != nil {
		p.Status = strings.TrimSpace(*req.Status)
	}
	if req.StartDate != nil {
		d, err := dto.ParseDate(req.StartDate)
		if err != nil {
			return p, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "fecha_inicio inválida")
		}
		p.StartDate = d
	}
	if req.EndDate != nil {
		d, err := dto.ParseDate(req.EndDate)
		if err != nil {
			return p, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "fecha_fin inválida")
		}
		p.EndDate = d
	}
	if req.ClientID != nil {
		id := *req.ClientID
		p.ClientID = &id
	}
	if req.ResponsibleID != nil {
		id := *req.ResponsibleID
		p.ResponsibleID = &id
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return p, appErrors.Clone(appErrors.ErrValidation, "fecha_fin no puede ser anterior a fecha_inicio")
	}
	return p, nil
}

func parseRange(startRaw, endRaw *string) (*time.Time, *time.Time, error) {
	start, err := dto.ParseDate(startRaw)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "fecha_inicio inválida")
	}
	end, err := dto.ParseDate(endRaw)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "fecha_fin inválida")
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "fecha_fin no puede ser anterior a fecha_inicio")
	}
	return start, end, nil
}

// projectChanges lists the column names whose values differ.
func projectChanges(before, after *models.Project) []string {
	var changes []string
	if before.Name != after.Name {
		changes = append(changes, "nombre")
	}
	if before.Description != after.Description {
		changes = append(changes, "descripcion")
	}
	if before.Status != after.Status {
		changes = append(changes, "estado")
	}
	if !sameDate(before.StartDate, after.StartDate) {
		changes = append(changes, "fecha_inicio")
	}
	if !sameDate(before.EndDate, after.EndDate) {
		changes = append(changes, "fecha_fin")
	}
	if changedID(before.ClientID, after.ClientID) != nil {
		changes = append(changes, "cliente_id")
	}
	if changedID(before.ResponsibleID, after.ResponsibleID) != nil {
		changes = append(changes, "responsable_id")
	}
	return changes
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Format(dto.DateLayout) == b.Format(dto.DateLayout)
}

// changedID returns after when it is set and differs from before.
func changedID(before, after *int64) *int64 {
	if after == nil {
		return nil
	}
	if before != nil && *before == *after {
		return nil
	}
	return after
}
