package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// TaskState is the closed set of task states.
type TaskState string

const (
	TaskPending    TaskState = "pendiente"
	TaskInProgress TaskState = "en_progreso"
	TaskCompleted  TaskState = "completado"
)

// ParseTaskState normalises case, spaces and hyphens and accepts English aliases.
func ParseTaskState(raw string) (TaskState, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	switch key {
	case "pendiente", "pending":
		return TaskPending, nil
	case "en_progreso", "en_proceso", "in_progress":
		return TaskInProgress, nil
	case "completado", "completada", "completed", "done":
		return TaskCompleted, nil
	}
	return "", fmt.Errorf("unknown task state %q", raw)
}

// Label is the human readable state used in messages.
func (s TaskState) Label() string {
	switch s {
	case TaskPending:
		return "Pendiente"
	case TaskInProgress:
		return "En progreso"
	case TaskCompleted:
		return "Completado"
	}
	return string(s)
}

// Scan implements sql.Scanner.
func (s *TaskState) Scan(src interface{}) error {
	raw, err := scanText(src)
	if err != nil {
		return fmt.Errorf("scan task state: %w", err)
	}
	state, err := ParseTaskState(raw)
	if err != nil {
		return err
	}
	*s = state
	return nil
}

// Value implements driver.Valuer.
func (s TaskState) Value() (driver.Value, error) {
	return string(s), nil
}

// Task belongs to exactly one project.
type Task struct {
	ID          int64      `db:"id" json:"id"`
	ProjectID   int64      `db:"proyecto_id" json:"proyecto_id"`
	Title       string     `db:"titulo" json:"titulo"`
	Description string     `db:"descripcion" json:"descripcion"`
	State       TaskState  `db:"estado" json:"estado"`
	AssigneeID  *int64     `db:"asignado_a" json:"asignado_a,omitempty"`
	CreatorID   *int64     `db:"creado_por" json:"creado_por,omitempty"`
	DueDate     *time.Time `db:"fecha_limite" json:"fecha_limite,omitempty"`
	Deleted     bool       `db:"eliminado" json:"-"`
	CreatedAt   time.Time  `db:"fecha_creacion" json:"fecha_creacion"`
}

// TaskContext is a task loaded together with the owning project's parties.
type TaskContext struct {
	Task
	ProjectName          string `db:"proyecto_nombre"`
	ProjectResponsibleID *int64 `db:"proyecto_responsable_id"`
	ProjectClientID      *int64 `db:"proyecto_cliente_id"`
}

// TaskHistory is appended once per successful state transition.
type TaskHistory struct {
	ID            int64     `db:"id" json:"id"`
	ProjectID     int64     `db:"proyecto_id" json:"proyecto_id"`
	TaskID        int64     `db:"tarea_id" json:"tarea_id"`
	UserID        int64     `db:"usuario_id" json:"usuario_id"`
	PreviousState TaskState `db:"estado_anterior" json:"estado_anterior"`
	NewState      TaskState `db:"estado_nuevo" json:"estado_nuevo"`
	Description   string    `db:"descripcion" json:"descripcion"`
	CreatedAt     time.Time `db:"fecha" json:"fecha"`
}

// TaskHistoryEntry is a history row joined with readable names for listings and exports.
type TaskHistoryEntry struct {
	TaskHistory
	TaskTitle string `db:"tarea_titulo" json:"tarea_titulo"`
	UserName  string `db:"usuario_nombre" json:"usuario_nombre"`
}
