package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/obra-api/internal/models"
)

const taskColumns = `t.id, t.proyecto_id, t.titulo, t.descripcion, t.estado, t.asignado_a, t.creado_por, t.fecha_limite, t.eliminado, t.fecha_creacion`

// MoveStateParams describes a single task state transition.
type MoveStateParams struct {
	ProjectID     int64
	TaskID        int64
	UserID        int64
	PreviousState models.TaskState
	NewState      models.TaskState
	Description   string
}

// TaskRepository handles tasks and their append-only history.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository constructs the repository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// FindContext loads a live task joined with its live owning project.
func (r *TaskRepository) FindContext(ctx context.Context, taskID int64) (*models.TaskContext, error) {
	query := `SELECT ` + taskColumns + `, p.nombre AS proyecto_nombre, p.responsable_id AS proyecto_responsable_id, p.cliente_id AS proyecto_cliente_id
	FROM tareas t
	JOIN proyectos p ON p.id = t.proyecto_id AND p.eliminado = FALSE
	WHERE t.id = $1 AND t.eliminado = FALSE`
	var task models.TaskContext
	if err := r.db.GetContext(ctx, &task, query, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return &task, nil
}

// ListByProject returns the live tasks of a project, optionally filtered by state.
func (r *TaskRepository) ListByProject(ctx context.Context, projectID int64, state *models.TaskState) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tareas t WHERE t.proyecto_id = $1 AND t.eliminado = FALSE`
	args := []interface{}{projectID}
	if state != nil {
		query += " AND t.estado = $2"
		args = append(args, *state)
	}
	query += " ORDER BY t.fecha_limite NULLS LAST, t.id"

	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Create inserts a new task.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	const query = `INSERT INTO tareas (proyecto_id, titulo, descripcion, estado, asignado_a, creado_por, fecha_limite, eliminado)
	VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE) RETURNING id, fecha_creacion`
	if err := r.db.QueryRowxContext(ctx, query,
		task.ProjectID, task.Title, task.Description, task.State, task.AssigneeID, task.CreatorID, task.DueDate,
	).Scan(&task.ID, &task.CreatedAt); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// MoveState updates the task state and appends the history row in one transaction.
// When audit is non-nil it is written inside the same transaction.
func (r *TaskRepository) MoveState(ctx context.Context, params MoveStateParams, audit *models.AuditLog) (history *models.TaskHistory, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin move task: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `UPDATE tareas SET estado = $2 WHERE id = $1 AND eliminado = FALSE`, params.TaskID, params.NewState)
	if err != nil {
		return nil, fmt.Errorf("update task state: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check task state rows: %w", err)
	}
	if rows == 0 {
		err = sql.ErrNoRows
		return nil, err
	}

	history = &models.TaskHistory{
		ProjectID:     params.ProjectID,
		TaskID:        params.TaskID,
		UserID:        params.UserID,
		PreviousState: params.PreviousState,
		NewState:      params.NewState,
		Description:   params.Description,
	}
	const insertHistory = `INSERT INTO historial_tareas (proyecto_id, tarea_id, usuario_id, estado_anterior, estado_nuevo, descripcion)
	VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, fecha`
	if err = tx.QueryRowxContext(ctx, insertHistory,
		history.ProjectID, history.TaskID, history.UserID, history.PreviousState, history.NewState, history.Description,
	).Scan(&history.ID, &history.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert task history: %w", err)
	}

	if audit != nil {
		if err = insertAuditLog(ctx, tx, audit); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit move task: %w", err)
	}
	return history, nil
}

const historyColumns = `h.id, h.proyecto_id, h.tarea_id, h.usuario_id, h.estado_anterior, h.estado_nuevo, h.descripcion, h.fecha,
	t.titulo AS tarea_titulo, COALESCE(TRIM(u.nombre || ' ' || u.apellido), '') AS usuario_nombre`

// History returns the transitions of one task, oldest first.
func (r *TaskRepository) History(ctx context.Context, taskID int64) ([]models.TaskHistoryEntry, error) {
	query := `SELECT ` + historyColumns + `
	FROM historial_tareas h
	JOIN tareas t ON t.id = h.tarea_id
	LEFT JOIN usuarios u ON u.id = h.usuario_id
	WHERE h.tarea_id = $1
	ORDER BY h.fecha, h.id`
	var entries []models.TaskHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, taskID); err != nil {
		return nil, fmt.Errorf("list task history: %w", err)
	}
	return entries, nil
}

// ProjectHistory returns the transitions of every task in a project, oldest first.
func (r *TaskRepository) ProjectHistory(ctx context.Context, projectID int64) ([]models.TaskHistoryEntry, error) {
	query := `SELECT ` + historyColumns + `
	FROM historial_tareas h
	JOIN tareas t ON t.id = h.tarea_id
	LEFT JOIN usuarios u ON u.id = h.usuario_id
	WHERE h.proyecto_id = $1
	ORDER BY h.fecha, h.id`
	var entries []models.TaskHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, projectID); err != nil {
		return nil, fmt.Errorf("list project history: %w", err)
	}
	return entries, nil
}
