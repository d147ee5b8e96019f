package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/obra-api/internal/middleware"
	"github.com/noah-isme/obra-api/internal/models"
	"github.com/noah-isme/obra-api/pkg/device"
	appErrors "github.com/noah-isme/obra-api/pkg/errors"
)

func identityFromContext(c *gin.Context) *models.Identity {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	identity, ok := value.(*models.Identity)
	if !ok {
		return nil
	}
	return identity
}

// requireIdentity writes 401 and returns nil when the route ran without the auth middleware.
func requireIdentity(c *gin.Context) *models.Identity {
	identity := identityFromContext(c)
	if identity == nil {
		abortWith(c, appErrors.ErrMissingToken)
	}
	return identity
}

func tokenFromContext(c *gin.Context) string {
	return c.GetString(middleware.ContextTokenKey)
}

func deviceFromContext(c *gin.Context) device.Info {
	return device.FromRequest(c.Request)
}

func idParam(c *gin.Context, name string) (int64, error) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "Identificador inválido: "+raw)
	}
	return id, nil
}

func paginationFromQuery(c *gin.Context) models.Pagination {
	page, _ := strconv.Atoi(c.DefaultQuery("pagina", c.Query("page")))
	size, _ := strconv.Atoi(c.DefaultQuery("por_pagina", c.Query("size")))
	return models.Pagination{Page: page, PageSize: size}
}
