package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/noah-isme/obra-api/internal/models"
	"github.com/noah-isme/obra-api/internal/repository"
)

func int64Ptr(v int64) *int64 { return &v }

func strPtr(v string) *string { return &v }

type auditRepoStub struct {
	logs []*models.AuditLog
	err  error
}

func (a *auditRepoStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if a.err != nil {
		return a.err
	}
	a.logs = append(a.logs, log)
	return nil
}

func (a *auditRepoStub) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	out := make([]models.AuditLog, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, *l)
	}
	return out, len(out), nil
}

type notificationRepoStub struct {
	created []models.Notification
	failFor map[int64]bool
}

func (n *notificationRepoStub) Create(ctx context.Context, notification *models.Notification) error {
	if n.failFor[notification.UserID] {
		return errors.New("insert failed")
	}
	notification.ID = int64(len(n.created) + 1)
	n.created = append(n.created, *notification)
	return nil
}

func (n *notificationRepoStub) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	var out []models.Notification
	for _, item := range n.created {
		if item.UserID == filter.UserID && (!filter.UnreadOnly || !item.Read) && !item.Deleted {
			out = append(out, item)
		}
	}
	return out, len(out), nil
}

func (n *notificationRepoStub) UnreadCount(ctx context.Context, userID int64) (int, error) {
	count := 0
	for _, item := range n.created {
		if item.UserID == userID && !item.Read && !item.Deleted {
			count++
		}
	}
	return count, nil
}

func (n *notificationRepoStub) MarkRead(ctx context.Context, id, userID int64) (bool, error) {
	for i := range n.created {
		if n.created[i].ID == id && n.created[i].UserID == userID && !n.created[i].Deleted {
			n.created[i].Read = true
			return true, nil
		}
	}
	return false, nil
}

func (n *notificationRepoStub) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	var count int64
	for i := range n.created {
		if n.created[i].UserID == userID && !n.created[i].Read {
			n.created[i].Read = true
			count++
		}
	}
	return count, nil
}

func (n *notificationRepoStub) SoftDelete(ctx context.Context, id, userID int64) (bool, error) {
	for i := range n.created {
		if n.created[i].ID == id && n.created[i].UserID == userID && !n.created[i].Deleted {
			n.created[i].Deleted = true
			return true, nil
		}
	}
	return false, nil
}

func (n *notificationRepoStub) recipients() []int64 {
	ids := make([]int64, 0, len(n.created))
	for _, item := range n.created {
		ids = append(ids, item.UserID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type memberIDsStub struct {
	ids []int64
	err error
}

func (m *memberIDsStub) MemberIDs(ctx context.Context, projectID int64) ([]int64, error) {
	return m.ids, m.err
}

type membershipStub struct {
	members map[int64]models.ProjectPermission
	calls   int
}

func (m *membershipStub) Membership(ctx context.Context, projectID, userID int64) (*models.ProjectMember, bool, error) {
	m.calls++
	perm, ok := m.members[userID]
	if !ok {
		return nil, false, nil
	}
	return &models.ProjectMember{ProjectID: projectID, UserID: userID, Permission: perm, Role: models.ProjectRoleInvited}, true, nil
}

type projectReaderStub struct {
	projects map[int64]*models.Project
}

func (p *projectReaderStub) FindByID(ctx context.Context, id int64) (*models.Project, error) {
	project, ok := p.projects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *project
	return &clone, nil
}

type taskStoreStub struct {
	tasks     map[int64]*models.TaskContext
	moves     []repository.MoveStateParams
	moveAudit []*models.AuditLog
	moveErr   error
	findCalls int
}

func (t *taskStoreStub) FindContext(ctx context.Context, taskID int64) (*models.TaskContext, error) {
	t.findCalls++
	task, ok := t.tasks[taskID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *task
	return &clone, nil
}

func (t *taskStoreStub) ListByProject(ctx context.Context, projectID int64, state *models.TaskState) ([]models.Task, error) {
	var out []models.Task
	for _, task := range t.tasks {
		if task.ProjectID == projectID && (state == nil || task.State == *state) {
			out = append(out, task.Task)
		}
	}
	return out, nil
}

func (t *taskStoreStub) Create(ctx context.Context, task *models.Task) error {
	task.ID = int64(len(t.tasks) + 100)
	t.tasks[task.ID] = &models.TaskContext{Task: *task}
	return nil
}

func (t *taskStoreStub) MoveState(ctx context.Context, params repository.MoveStateParams, audit *models.AuditLog) (*models.TaskHistory, error) {
	if t.moveErr != nil {
		return nil, t.moveErr
	}
	t.moves = append(t.moves, params)
	t.moveAudit = append(t.moveAudit, audit)
	if task, ok := t.tasks[params.TaskID]; ok {
		task.State = params.NewState
	}
	return &models.TaskHistory{ID: int64(len(t.moves)), TaskID: params.TaskID, PreviousState: params.PreviousState, NewState: params.NewState}, nil
}

func (t *taskStoreStub) History(ctx context.Context, taskID int64) ([]models.TaskHistoryEntry, error) {
	return nil, nil
}
