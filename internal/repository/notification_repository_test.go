package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/obra-api/internal/models"
)

func TestCreateNotification(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)
	sent := time.Now()

	mock.ExpectQuery("INSERT INTO notificaciones").
		WithArgs(int64(40), "La tarea fue completada", models.NotificationTypeTask, "Tarea completada", "/proyectos/1/tareas/5").
		WillReturnRows(sqlmock.NewRows([]string{"id", "fecha_envio"}).AddRow(3, sent))

	n := &models.Notification{UserID: 40, Message: "La tarea fue completada", Type: models.NotificationTypeTask, Subject: "Tarea completada", URL: "/proyectos/1/tareas/5"}
	require.NoError(t, repo.Create(context.Background(), n))
	assert.Equal(t, int64(3), n.ID)
	assert.Equal(t, sent, n.SentAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReadOnlyOwned(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec("UPDATE notificaciones SET leida = TRUE WHERE id = \\$1 AND usuario_id = \\$2").
		WithArgs(int64(3), int64(40)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE notificaciones SET leida = TRUE WHERE id = \\$1 AND usuario_id = \\$2").
		WithArgs(int64(3), int64(41)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkRead(context.Background(), 3, 40)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkRead(context.Background(), 3, 41)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUnreadNotifications(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	cols := []string{"id", "usuario_id", "mensaje", "tipo", "asunto", "url", "leida", "eliminada", "fecha_envio"}
	mock.ExpectQuery("FROM notificaciones WHERE usuario_id = \\$1 AND eliminada = FALSE AND leida = FALSE ORDER BY").
		WithArgs(int64(40)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(3, 40, "m", "tarea", "s", "/x", false, false, time.Now()))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM notificaciones WHERE usuario_id = \\$1").
		WithArgs(int64(40)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.NotificationFilter{UserID: 40, UnreadOnly: true, Page: models.NewPagination(1, 10, 100)})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
