package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/obra-api/internal/dto"
	"github.com/noah-isme/obra-api/internal/models"
	"github.com/noah-isme/obra-api/internal/service"
	"github.com/noah-isme/obra-api/pkg/device"
	appErrors "github.com/noah-isme/obra-api/pkg/errors"
	"github.com/noah-isme/obra-api/pkg/response"
)

type planService interface {
	Upload(ctx context.Context, actor *models.Identity, dev device.Info, req dto.UploadPlanRequest, upload service.PlanUpload) (*dto.PlanResult, error)
	List(ctx context.Context, actor *models.Identity, projectID int64) ([]models.BimPlan, error)
	DownloadLink(ctx context.Context, actor *models.Identity, planID int64) (*dto.PlanLink, error)
	Open(ctx context.Context, token string) (*service.PlanDownload, error)
}

// PlanHandler exposes BIM plan endpoints.
type PlanHandler struct {
	service planService
}

// NewPlanHandler builds a new handler.
func NewPlanHandler(svc planService) *PlanHandler {
	return &PlanHandler{service: svc}
}

// Upload godoc
// @Summary Upload a new plan version
// @Tags Plans
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param proyecto_id formData int true "Project ID"
// @Param nombre formData string true "Plan name"
// @Param tipo formData string false "Plan type"
// @Param mayor formData bool false "Bump major version"
// @Param archivo formData file true "Plan file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /plans [post]
func (h *PlanHandler) Upload(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	var req dto.UploadPlanRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, invalidBody(err))
		return
	}
	fileHeader, err := c.FormFile("archivo")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "El archivo es requerido"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to open file"))
		return
	}
	defer src.Close()

	res, err := h.service.Upload(c.Request.Context(), identity, deviceFromContext(c), req, service.PlanUpload{
		Filename:    fileHeader.Filename,
		Size:        fileHeader.Size,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Content:     src,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Plano subido", res)
}

// ListByProject godoc
// @Summary List project plans
// @Description Every version is returned; the highest version of each name has actual=true
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/plans [get]
func (h *PlanHandler) ListByProject(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	plans, err := h.service.List(c.Request.Context(), identity, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Planos obtenidos", plans)
}

// Link godoc
// @Summary Signed download link for a plan
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{id}/link [get]
func (h *PlanHandler) Link(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	link, err := h.service.DownloadLink(c.Request.Context(), identity, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Enlace generado", link)
}

// Download godoc
// @Summary Download a plan through a signed token
// @Tags Plans
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /plans/download [get]
func (h *PlanHandler) Download(c *gin.Context) {
	file, err := h.service.Open(c.Request.Context(), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Body.Close()

	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, -1, "application/octet-stream", file.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, file.Filename),
	})
}
