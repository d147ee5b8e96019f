package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/obra-api/internal/dto"
	"github.com/noah-isme/obra-api/internal/models"
	"github.com/noah-isme/obra-api/pkg/device"
	"github.com/noah-isme/obra-api/pkg/response"
)

type taskService interface {
	MoveState(ctx context.Context, actor *models.Identity, dev device.Info, req dto.MoveTaskRequest) (*dto.MoveTaskResult, error)
	Create(ctx context.Context, actor *models.Identity, dev device.Info, req dto.CreateTaskRequest) (*dto.TaskResult, error)
	ListByProject(ctx context.Context, actor *models.Identity, projectID int64, rawState string) ([]models.Task, error)
	History(ctx context.Context, actor *models.Identity, taskID int64) ([]models.TaskHistoryEntry, error)
}

// TaskHandler exposes task endpoints.
type TaskHandler struct {
	service taskService
}

// NewTaskHandler builds a new handler.
func NewTaskHandler(svc taskService) *TaskHandler {
	return &TaskHandler{service: svc}
}

// Move godoc
// @Summary Move a task to another state
// @Description Moving to the current state succeeds without side effects
// @Tags Tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.MoveTaskRequest true "Transition"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tasks/move [post]
func (h *TaskHandler) Move(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	var req dto.MoveTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err))
		return
	}
	res, err := h.service.MoveState(c.Request.Context(), identity, deviceFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	message := "Estado de la tarea actualizado"
	if !res.Changed {
		message = "La tarea ya se encuentra en ese estado"
	}
	response.OK(c, message, res)
}

// Create godoc
// @Summary Create task
// @Tags Tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateTaskRequest true "Task"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err))
		return
	}
	res, err := h.service.Create(c.Request.Context(), identity, deviceFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Tarea creada", res)
}

// ListByProject godoc
// @Summary List project tasks
// @Tags Tasks
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Param estado query string false "State filter"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/tasks [get]
func (h *TaskHandler) ListByProject(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	tasks, err := h.service.ListByProject(c.Request.Context(), identity, id, c.Query("estado"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Tareas obtenidas", tasks)
}

// History godoc
// @Summary Task state history
// @Tags Tasks
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Success 200 {object} response.Envelope
// @Router /tasks/{id}/history [get]
func (h *TaskHandler) History(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, err := h.service.History(c.Request.Context(), identity, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Historial obtenido", entries)
}
