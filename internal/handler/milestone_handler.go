package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/obra-api/internal/dto"
	"github.com/noah-isme/obra-api/internal/models"
	"github.com/noah-isme/obra-api/pkg/device"
	"github.com/noah-isme/obra-api/pkg/response"
)

type milestoneService interface {
	Create(ctx context.Context, actor *models.Identity, dev device.Info, req dto.CreateMilestoneRequest) (*dto.MilestoneResult, error)
	ListByProject(ctx context.Context, actor *models.Identity, projectID int64) ([]models.Milestone, error)
}

// MilestoneHandler exposes milestone endpoints.
type MilestoneHandler struct {
	service milestoneService
}

// NewMilestoneHandler builds a new handler.
func NewMilestoneHandler(svc milestoneService) *MilestoneHandler {
	return &MilestoneHandler{service: svc}
}

// Create godoc
// @Summary Create milestone
// @Tags Milestones
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateMilestoneRequest true "Milestone"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /milestones [post]
func (h *MilestoneHandler) Create(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	var req dto.CreateMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err))
		return
	}
	res, err := h.service.Create(c.Request.Context(), identity, deviceFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Hito creado", res)
}

// ListByProject godoc
// @Summary List project milestones
// @Tags Milestones
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/milestones [get]
func (h *MilestoneHandler) ListByProject(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.service.ListByProject(c.Request.Context(), identity, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Hitos obtenidos", items)
}
