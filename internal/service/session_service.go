package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/obra-api/internal/dto"
	"github.com/noah-isme/obra-api/internal/models"
	"github.com/noah-isme/obra-api/internal/repository"
	"github.com/noah-isme/obra-api/pkg/device"
	appErrors "github.com/noah-isme/obra-api/pkg/errors"
)

type sessionUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByToken(ctx context.Context, token string) (*models.User, error)
	SetToken(ctx context.Context, id int64, token string) error
	ClearToken(ctx context.Context, id int64) (bool, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, id int64, name, surname string) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

const sessionCachePrefix = "session:"

// SessionConfig tunes the token cache.
type SessionConfig struct {
	CacheTTL time.Duration
}

// SessionService owns the opaque bearer token stored on the user record
// together with the account flows that issue or revoke it.
type SessionService struct {
	repo      sessionUserRepository
	cache     *CacheService
	audit     *AuditService
	validator *validator.Validate
	logger    *zap.Logger
	config    SessionConfig
	newToken  func() (string, error)
}

// NewSessionService constructs a SessionService. cache may be nil.
func NewSessionService(repo sessionUserRepository, cache *CacheService, audit *AuditService, validate *validator.Validate, logger *zap.Logger, config SessionConfig) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SessionService{
		repo:      repo,
		cache:     cache,
		audit:     audit,
		validator: validate,
		logger:    logger,
		config:    config,
		newToken:  generateSessionToken,
	}
}

func sessionCacheKey(token string) string {
	return sessionCachePrefix + token
}

// ResolveToken maps a bearer token to the identity of a non-deleted user.
func (s *SessionService) ResolveToken(ctx context.Context, token string) (*models.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, appErrors.ErrMissingToken
	}

	var cached models.Identity
	if hit, _ := s.cache.Get(ctx, sessionCacheKey(token), &cached); hit {
		return &cached, nil
	}

	user, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidToken
		}
		return nil, appErrors.Internal(err, "failed to resolve token")
	}

	identity := user.Identity()
	_ = s.cache.Set(ctx, sessionCacheKey(token), identity, s.config.CacheTTL)
	return identity, nil
}

// Invalidate clears the stored token. Clearing an already empty token is
// reported through alreadyLoggedOut and is not an error.
func (s *SessionService) Invalidate(ctx context.Context, userID int64, token string) (alreadyLoggedOut bool, err error) {
	cleared, err := s.repo.ClearToken(ctx, userID)
	if err != nil {
		return false, appErrors.Internal(err, "failed to clear token")
	}
	if token != "" {
		_ = s.cache.Invalidate(ctx, sessionCacheKey(token))
	}
	return !cleared, nil
}

// Logout invalidates the caller's session and records the event.
func (s *SessionService) Logout(ctx context.Context, identity *models.Identity, token string, dev device.Info) (bool, dto.SideEffects, error) {
	var effects dto.SideEffects
	already, err := s.Invalidate(ctx, identity.UserID, token)
	if err != nil {
		return false, effects, err
	}
	if !already {
		effects.Warn(s.audit.Record(ctx, AuditEvent{
			UserID:      identity.UserID,
			Action:      models.AuditActionLogout,
			Description: "Cierre de sesión",
			Table:       models.TableUsers,
			RecordID:    identity.UserID,
			Device:      dev,
		}))
	}
	return already, effects, nil
}

// Login verifies credentials and issues a new token, replacing any previous one.
func (s *SessionService) Login(ctx context.Context, req models.LoginRequest, dev device.Info) (*models.LoginResponse, dto.SideEffects, error) {
	var effects dto.SideEffects
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, effects, appErrors.Wrap(err, appErrors.ErrUnprocessable.Code, appErrors.ErrUnprocessable.Status, "Email y contraseña son requeridos")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, effects, appErrors.ErrInvalidCredentials
		}
		return nil, effects, appErrors.Internal(err, "failed to fetch user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, effects, appErrors.ErrInvalidCredentials
	}
	if !user.Active() {
		return nil, effects, appErrors.ErrInactiveAccount
	}

	token, err := s.newToken()
	if err != nil {
		return nil, effects, appErrors.Internal(err, "failed to create token")
	}
	if err := s.repo.SetToken(ctx, user.ID, token); err != nil {
		return nil, effects, appErrors.Internal(err, "failed to store token")
	}
	if user.Token != nil && *user.Token != "" {
		_ = s.cache.Invalidate(ctx, sessionCacheKey(*user.Token))
	}
	user.Token = &token

	effects.Warn(s.audit.Record(ctx, AuditEvent{
		UserID:      user.ID,
		Action:      models.AuditActionLogin,
		Description: "Inicio de sesión de " + user.Email,
		Table:       models.TableUsers,
		RecordID:    user.ID,
		Device:      dev,
	}))

	return &models.LoginResponse{Token: token, User: user}, effects, nil
}

// Register creates an active account. Administrators cannot self-register.
func (s *SessionService) Register(ctx context.Context, req models.RegisterRequest, dev device.Info) (*models.User, dto.SideEffects, error) {
	var effects dto.SideEffects
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	req.Surname = strings.TrimSpace(req.Surname)
	if err := s.validator.Struct(req); err != nil {
		return nil, effects, appErrors.Wrap(err, appErrors.ErrUnprocessable.Code, appErrors.ErrUnprocessable.Status, "Datos de registro incompletos o inválidos")
	}

	role := models.RoleOther
	if strings.TrimSpace(req.Role) != "" {
		parsed, err := models.ParseUserRole(req.Role)
		if err != nil {
			return nil, effects, appErrors.Wrap(err, appErrors.ErrUnprocessable.Code, appErrors.ErrUnprocessable.Status, "Rol inválido")
		}
		role = parsed
	}
	if role == models.RoleAdmin {
		return nil, effects, appErrors.Clone(appErrors.ErrUnprocessable, "Rol no permitido para registro")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, effects, appErrors.Internal(err, "failed to hash password")
	}

	user := &models.User{
		Name:         req.Name,
		Surname:      req.Surname,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         role,
		Status:       models.UserStatusActive,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, effects, appErrors.Clone(appErrors.ErrConflict, "El email ya está registrado")
		}
		return nil, effects, appErrors.Internal(err, "failed to create user")
	}

	effects.Warn(s.audit.Record(ctx, AuditEvent{
		UserID:      user.ID,
		Action:      models.AuditActionRegister,
		Description: "Registro de usuario " + user.Email,
		Table:       models.TableUsers,
		RecordID:    user.ID,
		Device:      dev,
	}))
	return user, effects, nil
}

// ForgotPassword accepts a reset request. Delivery happens out of band, so the
// call only records the request and never reveals whether the email exists.
func (s *SessionService) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnprocessable.Code, appErrors.ErrUnprocessable.Status, "Email inválido")
	}
	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(req.Email))
	switch {
	case err == nil:
		s.logger.Info("password reset requested", zap.Int64("user_id", user.ID))
	case errors.Is(err, sql.ErrNoRows):
		s.logger.Info("password reset requested for unknown email")
	default:
		return appErrors.Internal(err, "failed to fetch user")
	}
	return nil
}

// Profile returns the caller's user record.
func (s *SessionService) Profile(ctx context.Context, identity *models.Identity) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Usuario no encontrado")
		}
		return nil, appErrors.Internal(err, "failed to fetch user")
	}
	return user, nil
}

// UpdateProfile changes the caller's name and refreshes the cached identity.
func (s *SessionService) UpdateProfile(ctx context.Context, identity *models.Identity, req models.UpdateProfileRequest, dev device.Info) (*models.User, dto.SideEffects, error) {
	var effects dto.SideEffects
	req.Name = strings.TrimSpace(req.Name)
	req.Surname = strings.TrimSpace(req.Surname)
	if err := s.validator.Struct(req); err != nil {
		return nil, effects, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Nombre y apellido son requeridos")
	}
	if err := s.repo.UpdateProfile(ctx, identity.UserID, req.Name, req.Surname); err != nil {
		return nil, effects, appErrors.Internal(err, "failed to update profile")
	}
	user, err := s.Profile(ctx, identity)
	if err != nil {
		return nil, effects, err
	}
	if user.Token != nil {
		_ = s.cache.Invalidate(ctx, sessionCacheKey(*user.Token))
	}

	effects.Warn(s.audit.Record(ctx, AuditEvent{
		UserID:      identity.UserID,
		Action:      models.AuditActionProfileUpdate,
		Description: "Actualización de perfil: " + user.FullName(),
		Table:       models.TableUsers,
		RecordID:    identity.UserID,
		Device:      dev,
	}))
	return user, effects, nil
}

// ChangePassword verifies the current password before storing the new hash.
func (s *SessionService) ChangePassword(ctx context.Context, identity *models.Identity, req models.ChangePasswordRequest, dev device.Info) (dto.SideEffects, error) {
	var effects dto.SideEffects
	if err := s.validator.Struct(req); err != nil {
		return effects, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "La nueva contraseña debe tener al menos 6 caracteres")
	}
	user, err := s.Profile(ctx, identity)
	if err != nil {
		return effects, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return effects, appErrors.Clone(appErrors.ErrValidation, "La contraseña actual es incorrecta")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return effects, appErrors.Internal(err, "failed to hash password")
	}
	if err := s.repo.UpdatePassword(ctx, identity.UserID, string(hash)); err != nil {
		return effects, appErrors.Internal(err, "failed to update password")
	}

	effects.Warn(s.audit.Record(ctx, AuditEvent{
		UserID:      identity.UserID,
		Action:      models.AuditActionPasswordChange,
		Description: "Cambio de contraseña",
		Table:       models.TableUsers,
		RecordID:    identity.UserID,
		Device:      dev,
	}))
	return effects, nil
}

func generateSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
