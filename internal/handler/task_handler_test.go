package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/obra-api/internal/dto"
	"github.com/noah-isme/obra-api/internal/models"
	"github.com/noah-isme/obra-api/pkg/device"
	appErrors "github.com/noah-isme/obra-api/pkg/errors"
)

type taskServiceStub struct {
	result  *dto.MoveTaskResult
	created *dto.TaskResult
	err     error
	got     dto.MoveTaskRequest
	create  dto.CreateTaskRequest
	dev     device.Info
}

func (s *taskServiceStub) MoveState(_ context.Context, _ *models.Identity, dev device.Info, req dto.MoveTaskRequest) (*dto.MoveTaskResult, error) {
	s.got = req
	s.dev = dev
	return s.result, s.err
}

func (s *taskServiceStub) Create(_ context.Context, _ *models.Identity, _ device.Info, req dto.CreateTaskRequest) (*dto.TaskResult, error) {
	s.create = req
	return s.created, s.err
}

func (s *taskServiceStub) ListByProject(context.Context, *models.Identity, int64, string) ([]models.Task, error) {
	return nil, nil
}

func (s *taskServiceStub) History(context.Context, *models.Identity, int64) ([]models.TaskHistoryEntry, error) {
	return nil, nil
}

func TestMoveTaskChanged(t *testing.T) {
	svc := &taskServiceStub{result: &dto.MoveTaskResult{TaskID: 5, PreviousState: models.TaskPending, NewState: models.TaskCompleted, Changed: true}}
	h := NewTaskHandler(svc)

	c, w := newTestContext(http.MethodPost, "/api/tasks/move", `{"tarea_id":5,"estado":"Completado"}`, member(30))
	c.Request.Header.Set(device.HeaderClientIP, "10.1.1.1")
	h.Move(c)

	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.True(t, env.Success)
	assert.Equal(t, "Estado de la tarea actualizado", env.Message)
	assert.JSONEq(t, `{"tarea_id":5,"estado_anterior":"pendiente","estado_nuevo":"completado"}`, string(env.Data))
	assert.Equal(t, dto.MoveTaskRequest{TaskID: 5, State: "Completado"}, svc.got)
	assert.Equal(t, "10.1.1.1", svc.dev.IP)
}

func TestMoveTaskSameStateMessage(t *testing.T) {
	svc := &taskServiceStub{result: &dto.MoveTaskResult{TaskID: 5, PreviousState: models.TaskPending, NewState: models.TaskPending}}
	h := NewTaskHandler(svc)

	c, w := newTestContext(http.MethodPost, "/api/tasks/move", `{"tarea_id":5,"estado":"pendiente"}`, member(30))
	h.Move(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "La tarea ya se encuentra en ese estado", decode(t, w).Message)
}

func TestMoveTaskForbidden(t *testing.T) {
	h := NewTaskHandler(&taskServiceStub{err: appErrors.ErrForbidden})

	c, w := newTestContext(http.MethodPost, "/api/tasks/move", `{"tarea_id":5,"estado":"completado"}`, member(50))
	h.Move(c)

	require.Equal(t, http.StatusForbidden, w.Code)
	env := decode(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, appErrors.ErrForbidden.Message, env.Message)
}

func TestMoveTaskRequiresIdentity(t *testing.T) {
	svc := &taskServiceStub{}
	h := NewTaskHandler(svc)

	c, w := newTestContext(http.MethodPost, "/api/tasks/move", `{"tarea_id":5,"estado":"completado"}`, nil)
	h.Move(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, svc.got.TaskID)
}

func TestMoveTaskMalformedBody(t *testing.T) {
	h := NewTaskHandler(&taskServiceStub{})

	c, w := newTestContext(http.MethodPost, "/api/tasks/move", `{"tarea_id":`, member(30))
	h.Move(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateTaskRespondsCreated(t *testing.T) {
	svc := &taskServiceStub{created: &dto.TaskResult{Task: &models.Task{ID: 8, ProjectID: 1, Title: "Vaciar losa", State: models.TaskPending}}}
	h := NewTaskHandler(svc)

	c, w := newTestContext(http.MethodPost, "/api/tasks", `{"proyecto_id":1,"titulo":"Vaciar losa"}`, member(10))
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	env := decode(t, w)
	assert.True(t, env.Success)
	assert.Equal(t, "Tarea creada", env.Message)
	assert.Contains(t, string(env.Data), `"titulo":"Vaciar losa"`)
	assert.Equal(t, dto.CreateTaskRequest{ProjectID: 1, Title: "Vaciar losa"}, svc.create)
}

func TestCreateTaskRejectsMalformedBody(t *testing.T) {
	svc := &taskServiceStub{}
	h := NewTaskHandler(svc)

	c, w := newTestContext(http.MethodPost, "/api/tasks", `{"proyecto_id":`, member(10))
	h.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, decode(t, w).Success)
	assert.Zero(t, svc.create.ProjectID)
}
