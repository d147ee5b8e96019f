package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/obra-api/internal/models"
	"github.com/noah-isme/obra-api/pkg/response"
)

type auditLister interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error)
}

// AuditHandler exposes the audit trail to administrators.
type AuditHandler struct {
	service auditLister
}

// NewAuditHandler builds a new handler.
func NewAuditHandler(svc auditLister) *AuditHandler {
	return &AuditHandler{service: svc}
}

// List godoc
// @Summary List audit logs
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param usuario_id query int false "User filter"
// @Param tabla query string false "Table filter"
// @Param accion query string false "Action filter"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	filter := models.AuditFilter{
		Table:  c.Query("tabla"),
		Action: c.Query("accion"),
		Page:   paginationFromQuery(c),
	}
	if raw := c.Query("usuario_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.UserID = &id
		}
	}
	logs, page, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	response.JSON(c, http.StatusOK, "Auditoría obtenida", logs, page)
}
