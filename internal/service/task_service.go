package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/obra-api/internal/dto"
	"github.com/noah-isme/obra-api/internal/models"
	"github.com/noah-isme/obra-api/internal/repository"
	"github.com/noah-isme/obra-api/pkg/device"
	appErrors "github.com/noah-isme/obra-api/pkg/errors"
)

const (
	operationTaskMove   = "task_move"
	operationTaskCreate = "task_create"
)

type taskStore interface {
	FindContext(ctx context.Context, taskID int64) (*models.TaskContext, error)
	ListByProject(ctx context.Context, projectID int64, state *models.TaskState) ([]models.Task, error)
	Create(ctx context.Context, task *models.Task) error
	MoveState(ctx context.Context, params repository.MoveStateParams, audit *models.AuditLog) (*models.TaskHistory, error)
	History(ctx context.Context, taskID int64) ([]models.TaskHistoryEntry, error)
}

type projectReader interface {
	FindByID(ctx context.Context, id int64) (*models.Project, error)
}

type capabilityResolver interface {
	Capabilities(ctx context.Context, identity *models.Identity, projectID int64) (Capabilities, error)
}

// TaskService runs the task mutation pipelines.
type TaskService struct {
	tasks         taskStore
	projects      projectReader
	permissions   capabilityResolver
	audit         *AuditService
	notifications *NotificationService
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewTaskService constructs the service.
func NewTaskService(tasks taskStore, projects projectReader, permissions capabilityResolver, audit *AuditService, notifications *NotificationService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *TaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TaskService{
		tasks:         tasks,
		projects:      projects,
		permissions:   permissions,
		audit:         audit,
		notifications: notifications,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
	}
}

// MoveState transitions a task to a new state. The state update, the history
// row and the audit row commit together; notifications are best-effort.
func (s *TaskService) MoveState(ctx context.Context, actor *models.Identity, dev device.Info, req dto.MoveTaskRequest) (*dto.MoveTaskResult, error) {
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordMutation(operationTaskMove, OutcomeInvalid)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "tarea_id y estado son requeridos")
	}
	target, err := models.ParseTaskState(req.State)
	if err != nil {
		s.metrics.RecordMutation(operationTaskMove, OutcomeInvalid)
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Estado inválido: %s", req.State))
	}

	task, err := s.tasks.FindContext(ctx, req.TaskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordMutation(operationTaskMove, OutcomeNotFound)
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Tarea no encontrada")
		}
		return nil, appErrors.Internal(err, "failed to load task")
	}

	result := &dto.MoveTaskResult{TaskID: task.ID, PreviousState: task.State, NewState: target}
	if task.State == target {
		s.metrics.RecordMutation(operationTaskMove, OutcomeNoop)
		return result, nil
	}

	caps, err := s.permissions.Capabilities(ctx, actor, task.ProjectID)
	if err != nil {
		return nil, err
	}
	if !CanMutate(caps, TaskSnapshot(task)) {
		s.metrics.RecordMutation(operationTaskMove, OutcomeForbidden)
		return nil, appErrors.Clone(appErrors.ErrForbidden, "No tienes permisos para modificar esta tarea")
	}

	description := fmt.Sprintf("Tarea '%s' movida de %s a %s", task.Title, task.State.Label(), target.Label())
	entry := s.audit.Entry(AuditEvent{
		UserID:      actor.UserID,
		Action:      models.AuditActionTaskMove,
		Description: description,
		Table:       models.TableTasks,
		RecordID:    task.ID,
		Device:      dev,
	})
	if _, err := s.tasks.MoveState(ctx, repository.MoveStateParams{
		ProjectID:     task.ProjectID,
		TaskID:        task.ID,
		UserID:        actor.UserID,
		PreviousState: task.State,
		NewState:      target,
		Description:   description,
	}, entry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordMutation(operationTaskMove, OutcomeNotFound)
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Tarea no encontrada")
		}
		s.metrics.RecordMutation(operationTaskMove, OutcomeFailed)
		return nil, appErrors.Internal(err, "Error al actualizar el estado de la tarea")
	}
	result.Changed = true
	s.metrics.RecordMutation(operationTaskMove, OutcomeApplied)

	result.Warn(s.notifyMove(ctx, actor, task, target)...)
	return result, nil
}

func (s *TaskService) notifyMove(ctx context.Context, actor *models.Identity, task *models.TaskContext, target models.TaskState) []string {
	var warnings []string
	url := fmt.Sprintf("/proyectos/%d/tareas/%d", task.ProjectID, task.ID)
	notified := map[int64]bool{actor.UserID: true}

	if task.AssigneeID != nil && !notified[*task.AssigneeID] {
		notified[*task.AssigneeID] = true
		warnings = append(warnings, s.notifications.NotifyUser(ctx, models.Notification{
			UserID:  *task.AssigneeID,
			Message: fmt.Sprintf("%s movió la tarea '%s' a %s", actorName(actor), task.Title, target.Label()),
			Type:    models.NotificationTypeTask,
			Subject: "Tarea actualizada",
			URL:     url,
		}))
	}
	if target == models.TaskCompleted && task.CreatorID != nil && !notified[*task.CreatorID] {
		warnings = append(warnings, s.notifications.NotifyUser(ctx, models.Notification{
			UserID:  *task.CreatorID,
			Message: fmt.Sprintf("La tarea '%s' del proyecto %s fue completada", task.Title, task.ProjectName),
			Type:    models.NotificationTypeTask,
			Subject: "Tarea completada",
			URL:     url,
		}))
	}
	return compact(warnings)
}

// Create adds a task to a project the caller may mutate.
func (s *TaskService) Create(ctx context.Context, actor *models.Identity, dev device.Info, req dto.CreateTaskRequest) (*dto.TaskResult, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordMutation(operationTaskCreate, OutcomeInvalid)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "proyecto_id y titulo son requeridos")
	}
	state := models.TaskPending
	if strings.TrimSpace(req.State) != "" {
		parsed, err := models.ParseTaskState(req.State)
		if err != nil {
			s.metrics.RecordMutation(operationTaskCreate, OutcomeInvalid)
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Estado inválido: %s", req.State))
		}
		state = parsed
	}
	due, err := dto.ParseDate(req.DueDate)
	if err != nil {
		s.metrics.RecordMutation(operationTaskCreate, OutcomeInvalid)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "fecha_limite inválida")
	}

	project, caps, err := s.loadProject(ctx, actor, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if !CanMutate(caps, ProjectSnapshot(project)) {
		s.metrics.RecordMutation(operationTaskCreate, OutcomeForbidden)
		return nil, appErrors.Clone(appErrors.ErrForbidden, "No tienes permisos para crear tareas en este proyecto")
	}

	creator := actor.UserID
	task := &models.Task{
		ProjectID:   project.ID,
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		State:       state,
		AssigneeID:  req.AssigneeID,
		CreatorID:   &creator,
		DueDate:     due,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		s.metrics.RecordMutation(operationTaskCreate, OutcomeFailed)
		return nil, appErrors.Internal(err, "Error al crear la tarea")
	}
	s.metrics.RecordMutation(operationTaskCreate, OutcomeApplied)

	result := &dto.TaskResult{Task: task}
	result.Warn(s.audit.Record(ctx, AuditEvent{
		UserID:      actor.UserID,
		Action:      models.AuditActionTaskCreate,
		Description: fmt.Sprintf("Tarea '%s' creada en el proyecto %s", task.Title, project.Name),
		Table:       models.TableTasks,
		RecordID:    task.ID,
		Device:      dev,
	}))
	if task.AssigneeID != nil && *task.AssigneeID != actor.UserID {
		result.Warn(s.notifications.NotifyUser(ctx, models.Notification{
			UserID:  *task.AssigneeID,
			Message: fmt.Sprintf("Se te asignó la tarea '%s' en el proyecto %s", task.Title, project.Name),
			Type:    models.NotificationTypeTask,
			Subject: "Nueva tarea asignada",
			URL:     fmt.Sprintf("/proyectos/%d/tareas/%d", project.ID, task.ID),
		}))
	}
	return result, nil
}

// ListByProject returns the tasks of a project visible to the caller.
func (s *TaskService) ListByProject(ctx context.Context, actor *models.Identity, projectID int64, rawState string) ([]models.Task, error) {
	var state *models.TaskState
	if strings.TrimSpace(rawState) != "" {
		parsed, err := models.ParseTaskState(rawState)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Estado inválido: %s", rawState))
		}
		state = &parsed
	}
	project, caps, err := s.loadProject(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	if !CanView(caps, ProjectSnapshot(project)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "No tienes acceso a este proyecto")
	}
	tasks, err := s.tasks.ListByProject(ctx, projectID, state)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list tasks")
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}

// History returns the state transitions of a task visible to the caller.
func (s *TaskService) History(ctx context.Context, actor *models.Identity, taskID int64) ([]models.TaskHistoryEntry, error) {
	task, err := s.tasks.FindContext(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Tarea no encontrada")
		}
		return nil, appErrors.Internal(err, "failed to load task")
	}
	caps, err := s.permissions.Capabilities(ctx, actor, task.ProjectID)
	if err != nil {
		return nil, err
	}
	if !CanView(caps, TaskSnapshot(task)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "No tienes acceso a esta tarea")
	}
	entries, err := s.tasks.History(ctx, taskID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load task history")
	}
	if entries == nil {
		entries = []models.TaskHistoryEntry{}
	}
	return entries, nil
}

func (s *TaskService) loadProject(ctx context.Context, actor *models.Identity, projectID int64) (*models.Project, Capabilities, error) {
	return loadProjectWithCaps(ctx, s.projects, s.permissions, actor, projectID)
}

func loadProjectWithCaps(ctx context.Context, projects projectReader, permissions capabilityResolver, actor *models.Identity, projectID int64) (*models.Project, Capabilities, error) {
	project, err := projects.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, Capabilities{}, appErrors.Clone(appErrors.ErrNotFound, "Proyecto no encontrado")
		}
		return nil, Capabilities{}, appErrors.Internal(err, "failed to load project")
	}
	caps, err := permissions.Capabilities(ctx, actor, projectID)
	if err != nil {
		return nil, Capabilities{}, err
	}
	return project, caps, nil
}

func actorName(actor *models.Identity) string {
	name := strings.TrimSpace(actor.Name + " " + actor.Surname)
	if name == "" {
		return actor.Email
	}
	return name
}

func compact(warnings []string) []string {
	out := warnings[:0]
	for _, w := range warnings {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
