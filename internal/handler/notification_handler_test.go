package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/obra-api/internal/dto"
	"github.com/noah-isme/obra-api/internal/models"
	appErrors "github.com/noah-isme/obra-api/pkg/errors"
)

type notificationServiceStub struct {
	filter  models.NotificationFilter
	marked  []int64
	missing bool
}

func (s *notificationServiceStub) List(_ context.Context, filter models.NotificationFilter) (*dto.NotificationList, *models.Pagination, error) {
	s.filter = filter
	page := models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}
	return &dto.NotificationList{Items: []models.Notification{{ID: 3, UserID: filter.UserID}}, UnreadCount: 1}, &page, nil
}

func (s *notificationServiceStub) MarkRead(_ context.Context, _ int64, id int64) error {
	if s.missing {
		return appErrors.Clone(appErrors.ErrNotFound, "Notificación no encontrada")
	}
	s.marked = append(s.marked, id)
	return nil
}

func (s *notificationServiceStub) MarkAllRead(context.Context, int64) (int64, error) {
	return 4, nil
}

func (s *notificationServiceStub) Delete(context.Context, int64, int64) error {
	return nil
}

func TestListNotificationsUnreadOnly(t *testing.T) {
	svc := &notificationServiceStub{}
	h := NewNotificationHandler(svc)

	c, w := newTestContext(http.MethodGet, "/api/notifications?no_leidas=true&pagina=2", "", member(40))
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(40), svc.filter.UserID)
	assert.True(t, svc.filter.UnreadOnly)
	assert.Equal(t, 2, svc.filter.Page.Page)
	env := decode(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)
}

func TestMarkNotificationRead(t *testing.T) {
	svc := &notificationServiceStub{}
	h := NewNotificationHandler(svc)

	c, w := newTestContext(http.MethodPost, "/api/notifications/3/read", "", member(40))
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	h.MarkRead(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{3}, svc.marked)
}

func TestMarkNotificationReadNotOwned(t *testing.T) {
	h := NewNotificationHandler(&notificationServiceStub{missing: true})

	c, w := newTestContext(http.MethodPost, "/api/notifications/3/read", "", member(41))
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	h.MarkRead(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Notificación no encontrada", decode(t, w).Message)
}

func TestMarkNotificationReadBadID(t *testing.T) {
	svc := &notificationServiceStub{}
	h := NewNotificationHandler(svc)

	c, w := newTestContext(http.MethodPost, "/api/notifications/x/read", "", member(40))
	c.Params = gin.Params{{Key: "id", Value: "x"}}
	h.MarkRead(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.marked)
}

func TestMarkAllNotificationsRead(t *testing.T) {
	h := NewNotificationHandler(&notificationServiceStub{})

	c, w := newTestContext(http.MethodPost, "/api/notifications/read-all", "", member(40))
	h.MarkAllRead(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"actualizadas":4}`, string(decode(t, w).Data))
}
