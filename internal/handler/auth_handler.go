package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/obra-api/internal/dto"
	"github.com/noah-isme/obra-api/internal/models"
	"github.com/noah-isme/obra-api/pkg/device"
	"github.com/noah-isme/obra-api/pkg/response"
)

type sessionService interface {
	Login(ctx context.Context, req models.LoginRequest, dev device.Info) (*models.LoginResponse, dto.SideEffects, error)
	Register(ctx context.Context, req models.RegisterRequest, dev device.Info) (*models.User, dto.SideEffects, error)
	ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) error
	Logout(ctx context.Context, identity *models.Identity, token string, dev device.Info) (bool, dto.SideEffects, error)
	Profile(ctx context.Context, identity *models.Identity) (*models.User, error)
	UpdateProfile(ctx context.Context, identity *models.Identity, req models.UpdateProfileRequest, dev device.Info) (*models.User, dto.SideEffects, error)
	ChangePassword(ctx context.Context, identity *models.Identity, req models.ChangePasswordRequest, dev device.Info) (dto.SideEffects, error)
}

// AuthHandler wires HTTP endpoints to the session service.
type AuthHandler struct {
	service sessionService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc sessionService) *AuthHandler {
	return &AuthHandler{service: svc}
}

type loginData struct {
	*models.LoginResponse
	dto.SideEffects
}

type userData struct {
	*models.User
	dto.SideEffects
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate by email and password; the returned token replaces any previous session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, malformedBody(err))
		return
	}

	res, effects, err := h.service.Login(c.Request.Context(), req, deviceFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Inicio de sesión exitoso", loginData{LoginResponse: res, SideEffects: effects})
}

// Register godoc
// @Summary Register user
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Register payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, malformedBody(err))
		return
	}

	user, effects, err := h.service.Register(c.Request.Context(), req, deviceFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Usuario registrado", userData{User: user, SideEffects: effects})
}

// ForgotPassword godoc
// @Summary Request a password reset
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.ForgotPasswordRequest true "Email"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, malformedBody(err))
		return
	}
	if err := h.service.ForgotPassword(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Si el email está registrado recibirás instrucciones para restablecer tu contraseña", nil)
}

// Logout godoc
// @Summary Logout
// @Description Clears the stored token. Calling it again still succeeds.
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	already, effects, err := h.service.Logout(c.Request.Context(), identity, tokenFromContext(c), deviceFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	message := "Sesión cerrada"
	if already {
		message = "La sesión ya estaba cerrada"
	}
	var data interface{}
	if effects.Degraded() {
		data = effects
	}
	response.OK(c, message, data)
}

// Me godoc
// @Summary Current user profile
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	user, err := h.service.Profile(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Perfil obtenido", user)
}

// UpdateProfile godoc
// @Summary Update own profile
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.UpdateProfileRequest true "Profile"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /users/me [put]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err))
		return
	}
	user, effects, err := h.service.UpdateProfile(c.Request.Context(), identity, req, deviceFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Perfil actualizado", userData{User: user, SideEffects: effects})
}

// ChangePassword godoc
// @Summary Change own password
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.ChangePasswordRequest true "Passwords"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /users/me/password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	identity := requireIdentity(c)
	if identity == nil {
		return
	}
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err))
		return
	}
	effects, err := h.service.ChangePassword(c.Request.Context(), identity, req, deviceFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	var data interface{}
	if effects.Degraded() {
		data = effects
	}
	response.OK(c, "Contraseña actualizada", data)
}
