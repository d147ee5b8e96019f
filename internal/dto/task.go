package dto

import "github.com/noah-isme/obra-api/internal/models"

// MoveTaskRequest is the payload of a task state transition.
type MoveTaskRequest struct {
	TaskID int64  `json:"tarea_id" validate:"required,gt=0"`
	State  string `json:"estado" validate:"required"`
}

// MoveTaskResult reports the state before and after the transition.
type MoveTaskResult struct {
	TaskID        int64            `json:"tarea_id"`
	PreviousState models.TaskState `json:"estado_anterior"`
	NewState      models.TaskState `json:"estado_nuevo"`
	Changed       bool             `json:"-"`
	SideEffects
}

// CreateTaskRequest is the payload for a new task.
type CreateTaskRequest struct {
	ProjectID   int64   `json:"proyecto_id" validate:"required,gt=0"`
	Title       string  `json:"titulo" validate:"required,max=200"`
	Description string  `json:"descripcion" validate:"max=2000"`
	State       string  `json:"estado"`
	AssigneeID  *int64  `json:"asignado_a" validate:"omitempty,gt=0"`
	DueDate     *string `json:"fecha_limite"`
}

// TaskResult wraps a stored task with side effect warnings.
type TaskResult struct {
	*models.Task
	SideEffects
}
