package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/obra-api/internal/dto"
	"github.com/noah-isme/obra-api/internal/models"
	"github.com/noah-isme/obra-api/pkg/response"
)

type notificationService interface {
	List(ctx context.Context, filter models.NotificationFilter) (*dto.NotificationList, *models.Pagination, error)
	MarkRead(ctx context.Context, userID, id int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	Delete(ctx context.Context, userID, id int64) error
}

// NotificationHandler exposes the caller's inbox.
type NotificationHandler struct {
	service notificationService
}

// NewNotificationHandler builds a new handler.
func NewNotificationHandler(svc notificationService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

// List godoc
// @Summary List own notifications
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param no_leidas query bool false "Only unread"
// @Param pagina query int false "Page"
// @Param por_pagina query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	filter := models.NotificationFilter{
		UserID:     identity.UserID,
		UnreadOnly: c.Query("no_leidas") == "true" || c.Query("no_leidas") == "1",
		Page:       paginationFromQuery(c),
	}
	list, page, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Notificaciones obtenidas", list, page)
}

// MarkRead godoc
// @Summary Mark a notification as read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Notification ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), identity.UserID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Notificación marcada como leída", nil)
}

// MarkAllRead godoc
// @Summary Mark every notification as read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	n, err := h.service.MarkAllRead(c.Request.Context(), identity.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Notificaciones marcadas como leídas", gin.H{"actualizadas": n})
}

// Delete godoc
// @Summary Delete a notification
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Notification ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notifications/{id} [delete]
func (h *NotificationHandler) Delete(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), identity.UserID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Notificación eliminada", nil)
}
