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
	"github.com/noah-isme/obra-api/pkg/response"
)

type projectService interface {
	Create(ctx context.Context, actor *models.Identity, dev device.Info, req dto.CreateProjectRequest) (*dto.ProjectResult, error)
	Get(ctx context.Context, actor *models.Identity, id int64) (*dto.ProjectDetail, error)
	ListForUser(ctx context.Context, actor *models.Identity, search string, page models.Pagination) ([]models.Project, *models.Pagination, error)
	Update(ctx context.Context, actor *models.Identity, dev device.Info, id int64, req dto.UpdateProjectRequest) (*dto.ProjectResult, error)
	AddMember(ctx context.Context, actor *models.Identity, dev device.Info, projectID int64, req dto.AddMemberRequest) (*dto.MemberResult, error)
}

type historyExporter interface {
	ProjectHistory(ctx context.Context, actor *models.Identity, projectID int64, format string) (*service.ExportFile, error)
}

// ProjectHandler exposes project endpoints.
type ProjectHandler struct {
	service  projectService
	exporter historyExporter
}

// NewProjectHandler builds a new handler.
func NewProjectHandler(svc projectService, exporter historyExporter) *ProjectHandler {
	return &ProjectHandler{service: svc, exporter: exporter}
}

// List godoc
// @Summary List projects of the caller
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Param q query string false "Name filter"
// @Param pagina query int false "Page"
// @Param por_pagina query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /projects [get]
func (h *ProjectHandler) List(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	items, page, err := h.service.ListForUser(c.Request.Context(), identity, c.Query("q"), paginationFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Proyectos obtenidos", items, page)
}

// Create godoc
// @Summary Create project
// @Tags Projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateProjectRequest true "Project"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /projects [post]
func (h *ProjectHandler) Create(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err))
		return
	}
	res, err := h.service.Create(c.Request.Context(), identity, deviceFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Proyecto creado", res)
}

// Get godoc
// @Summary Get project
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /projects/{id} [get]
func (h *ProjectHandler) Get(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	detail, err := h.service.Get(c.Request.Context(), identity, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Proyecto obtenido", detail)
}

// Update godoc
// @Summary Update project
// @Description Partial update; fields left out are not touched
// @Tags Projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Param payload body dto.UpdateProjectRequest true "Fields"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /projects/{id} [put]
func (h *ProjectHandler) Update(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err))
		return
	}
	res, err := h.service.Update(c.Request.Context(), identity, deviceFromContext(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	message := "Proyecto actualizado"
	if !res.Changed {
		message = "Sin cambios en el proyecto"
	}
	response.OK(c, message, res)
}

// AddMember godoc
// @Summary Assign a user to a project
// @Tags Projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Param payload body dto.AddMemberRequest true "Assignment"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /projects/{id}/members [post]
func (h *ProjectHandler) AddMember(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err))
		return
	}
	res, err := h.service.AddMember(c.Request.Context(), identity, deviceFromContext(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Usuario asignado al proyecto", res)
}

// ExportHistory godoc
// @Summary Export the task history of a project
// @Tags Projects
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /projects/{id}/history/export [get]
func (h *ProjectHandler) ExportHistory(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.ProjectHistory(c.Request.Context(), identity, id, c.DefaultQuery("format", service.ExportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
