package handler

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/obra-api/pkg/errors"
	"github.com/noah-isme/obra-api/pkg/response"
)

func abortWith(c *gin.Context, err error) {
	response.Error(c, err)
	c.Abort()
}

func invalidBody(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Cuerpo de la petición inválido")
}

func malformedBody(err error) error {
	return appErrors.Wrap(err, appErrors.ErrUnprocessable.Code, appErrors.ErrUnprocessable.Status, "Datos incompletos o mal formados")
}
