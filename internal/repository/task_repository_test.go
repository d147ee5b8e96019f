package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/obra-api/internal/models"
)

func moveParams() MoveStateParams {
	return MoveStateParams{
		ProjectID:     1,
		TaskID:        5,
		UserID:        30,
		PreviousState: models.TaskPending,
		NewState:      models.TaskCompleted,
		Description:   "Tarea movida",
	}
}

func TestMoveStateCommitsUpdateHistoryAndAudit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)
	now := time.Now()
	userID := int64(30)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tareas SET estado").
		WithArgs(int64(5), "completado").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO historial_tareas").
		WithArgs(int64(1), int64(5), int64(30), "pendiente", "completado", "Tarea movida").
		WillReturnRows(sqlmock.NewRows([]string{"id", "fecha"}).AddRow(11, now))
	mock.ExpectQuery("INSERT INTO logs_auditoria").
		WithArgs(sqlmock.AnyArg(), models.AuditActionTaskMove, "Tarea movida | IP: 10.0.0.1", models.TableTasks, sqlmock.AnyArg(), "10.0.0.1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "fecha"}).AddRow(21, now))
	mock.ExpectCommit()

	audit := &models.AuditLog{UserID: &userID, Action: models.AuditActionTaskMove, Description: "Tarea movida | IP: 10.0.0.1", Table: models.TableTasks, IPAddress: "10.0.0.1"}
	history, err := repo.MoveState(context.Background(), moveParams(), audit)
	require.NoError(t, err)
	assert.Equal(t, int64(11), history.ID)
	assert.Equal(t, int64(21), audit.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveStateRollsBackWhenAuditFails(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tareas SET estado").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO historial_tareas").
		WillReturnRows(sqlmock.NewRows([]string{"id", "fecha"}).AddRow(11, time.Now()))
	mock.ExpectQuery("INSERT INTO logs_auditoria").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.MoveState(context.Background(), moveParams(), &models.AuditLog{Action: models.AuditActionTaskMove})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveStateRollsBackWhenHistoryFails(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tareas SET estado").
		WithArgs(int64(5), "completado").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO historial_tareas").WillReturnError(errors.New("constraint violated"))
	mock.ExpectRollback()

	history, err := repo.MoveState(context.Background(), moveParams(), &models.AuditLog{Action: models.AuditActionTaskMove})
	require.Error(t, err)
	assert.Nil(t, history)
	assert.Contains(t, err.Error(), "insert task history")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveStateMissingTask(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tareas SET estado").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.MoveState(context.Background(), moveParams(), nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindContextJoinsProject(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	cols := []string{"id", "proyecto_id", "titulo", "descripcion", "estado", "asignado_a", "creado_por", "fecha_limite", "eliminado", "fecha_creacion",
		"proyecto_nombre", "proyecto_responsable_id", "proyecto_cliente_id"}
	mock.ExpectQuery("FROM tareas t\\s+JOIN proyectos p").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(5, 1, "Losa", "", "en proceso", 30, 40, nil, false, time.Now(), "Edificio Norte", 10, nil))

	task, err := repo.FindContext(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, models.TaskInProgress, task.State)
	assert.Equal(t, "Edificio Norte", task.ProjectName)
	require.NotNil(t, task.ProjectResponsibleID)
	assert.Nil(t, task.ProjectClientID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
