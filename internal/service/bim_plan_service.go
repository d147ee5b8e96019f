package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/obra-api/internal/dto"
	"github.com/noah-isme/obra-api/internal/models"
	"github.com/noah-isme/obra-api/internal/repository"
	"github.com/noah-isme/obra-api/pkg/device"
	appErrors "github.com/noah-isme/obra-api/pkg/errors"
	"github.com/noah-isme/obra-api/pkg/jobs"
	"github.com/noah-isme/obra-api/pkg/storage"
)

const operationPlanUpload = "plan_upload"

type planStore interface {
	Create(ctx context.Context, plan *models.BimPlan) error
	FindByID(ctx context.Context, id int64) (*models.BimPlan, error)
	Versions(ctx context.Context, projectID int64, name string) ([]string, error)
	ListByProject(ctx context.Context, projectID int64) ([]models.BimPlan, error)
}

type cleanupQueue interface {
	Enqueue(job jobs.Job) error
}

// JobTypePlanCleanup removes a stored plan file that no row references.
const JobTypePlanCleanup = "plan_file_cleanup"

type planSigner interface {
	Generate(planID int64, key string) (string, time.Time, error)
	Parse(token string) (int64, string, error)
}

// PlanUpload carries the uploaded file stream.
type PlanUpload struct {
	Filename    string
	Size        int64
	ContentType string
	Content     io.ReadSeeker
}

// PlanDownload is an open plan file ready to be streamed.
type PlanDownload struct {
	Body     io.ReadCloser
	Filename string
}

// BimPlanConfig holds upload limits and link settings.
type BimPlanConfig struct {
	MaxFileSize int64
	APIPrefix   string
}

// BimPlanService manages versioned BIM plan uploads.
type BimPlanService struct {
	plans         planStore
	projects      projectReader
	permissions   capabilityResolver
	store         storage.ObjectStore
	signer        planSigner
	audit         *AuditService
	notifications *NotificationService
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	cfg           BimPlanConfig
	cleanup       cleanupQueue
}

// NewBimPlanService constructs the service.
func NewBimPlanService(plans planStore, projects projectReader, permissions capabilityResolver, store storage.ObjectStore, signer planSigner, audit *AuditService, notifications *NotificationService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg BimPlanConfig) *BimPlanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 50 * 1024 * 1024
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &BimPlanService{
		plans:         plans,
		projects:      projects,
		permissions:   permissions,
		store:         store,
		signer:        signer,
		audit:         audit,
		notifications: notifications,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
		cfg:           cfg,
	}
}

// WithCleanupQueue retries failed orphan deletions in the background.
func (s *BimPlanService) WithCleanupQueue(q cleanupQueue) *BimPlanService {
	s.cleanup = q
	return s
}

func (s *BimPlanService) discard(ctx context.Context, key string) {
	err := s.store.Delete(ctx, key)
	if err == nil || errors.Is(err, storage.ErrObjectNotFound) {
		return
	}
	s.logger.Warn("failed to remove orphaned plan file", zap.String("key", key), zap.Error(err))
	if s.cleanup == nil {
		return
	}
	if qErr := s.cleanup.Enqueue(jobs.Job{ID: uuid.NewString(), Type: JobTypePlanCleanup, Key: key}); qErr != nil {
		s.logger.Error("failed to schedule plan file cleanup", zap.String("key", key), zap.Error(qErr))
	}
}

// Upload stores a new version of a plan. The first upload of a name is 1.0;
// later uploads bump the minor number, or the major one when req.Major is set.
func (s *BimPlanService) Upload(ctx context.Context, actor *models.Identity, dev device.Info, req dto.UploadPlanRequest, upload PlanUpload) (*dto.PlanResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordMutation(operationPlanUpload, OutcomeInvalid)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "proyecto_id y nombre son requeridos")
	}
	if upload.Content == nil || upload.Size <= 0 {
		s.metrics.RecordMutation(operationPlanUpload, OutcomeInvalid)
		return nil, appErrors.Clone(appErrors.ErrValidation, "El archivo es requerido")
	}
	if upload.Size > s.cfg.MaxFileSize {
		s.metrics.RecordMutation(operationPlanUpload, OutcomeInvalid)
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("El archivo supera el límite de %d bytes", s.cfg.MaxFileSize))
	}

	project, caps, err := loadProjectWithCaps(ctx, s.projects, s.permissions, actor, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if !CanMutate(caps, ProjectSnapshot(project)) {
		s.metrics.RecordMutation(operationPlanUpload, OutcomeForbidden)
		return nil, appErrors.Clone(appErrors.ErrForbidden, "No tienes permisos para subir planos a este proyecto")
	}

	existing, err := s.plans.Versions(ctx, project.ID, req.Name)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load plan versions")
	}
	version := nextPlanVersion(existing, req.Major)

	ext := strings.ToLower(path.Ext(upload.Filename))
	planType := strings.TrimSpace(req.Type)
	if planType == "" {
		planType = strings.ToUpper(strings.TrimPrefix(ext, "."))
	}
	key := fmt.Sprintf("proyectos/%d/planos/%s%s", project.ID, uuid.NewString(), ext)
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Internal(err, "failed to reset upload stream")
	}
	if err := s.store.Save(ctx, key, upload.Content, upload.Size, upload.ContentType); err != nil {
		s.metrics.RecordMutation(operationPlanUpload, OutcomeFailed)
		return nil, appErrors.Internal(err, "Error al guardar el archivo")
	}

	plan := &models.BimPlan{
		ProjectID:  project.ID,
		Name:       req.Name,
		Version:    version.String(),
		FileRef:    key,
		Type:       planType,
		UploaderID: actor.UserID,
		Current:    true,
	}
	if err := s.plans.Create(ctx, plan); err != nil {
		s.discard(ctx, key)
		if errors.Is(err, repository.ErrDuplicate) {
			s.metrics.RecordMutation(operationPlanUpload, OutcomeFailed)
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("La versión %s del plano '%s' ya existe", plan.Version, plan.Name))
		}
		s.metrics.RecordMutation(operationPlanUpload, OutcomeFailed)
		return nil, appErrors.Internal(err, "Error al registrar el plano")
	}
	s.metrics.RecordMutation(operationPlanUpload, OutcomeApplied)

	result := &dto.PlanResult{BimPlan: plan}
	result.Warn(s.audit.Record(ctx, AuditEvent{
		UserID:      actor.UserID,
		Action:      models.AuditActionPlanUpload,
		Description: fmt.Sprintf("Plano '%s' versión %s subido al proyecto %s", plan.Name, plan.Version, project.Name),
		Table:       models.TablePlans,
		RecordID:    plan.ID,
		Device:      dev,
	}))
	message := fmt.Sprintf("Nueva versión %s del plano '%s' en el proyecto %s", plan.Version, plan.Name, project.Name)
	result.Warn(s.notifications.NotifyProjectMembers(ctx, project.ID, func(int64) (models.Notification, bool) {
		return models.Notification{
			Message: message,
			Type:    models.NotificationTypePlan,
			Subject: "Plano actualizado",
			URL:     fmt.Sprintf("/proyectos/%d/planos/%d", project.ID, plan.ID),
		}, true
	}, actor.UserID)...)
	return result, nil
}

// List returns the plan rows of a project, flagging the highest version of each name as current.
func (s *BimPlanService) List(ctx context.Context, actor *models.Identity, projectID int64) ([]models.BimPlan, error) {
	project, caps, err := loadProjectWithCaps(ctx, s.projects, s.permissions, actor, projectID)
	if err != nil {
		return nil, err
	}
	if !CanView(caps, ProjectSnapshot(project)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "No tienes acceso a este proyecto")
	}
	plans, err := s.plans.ListByProject(ctx, projectID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list plans")
	}
	if plans == nil {
		return []models.BimPlan{}, nil
	}
	markCurrentPlans(plans)
	return plans, nil
}

// DownloadLink issues a short-lived signed link for a plan the caller may see.
func (s *BimPlanService) DownloadLink(ctx context.Context, actor *models.Identity, planID int64) (*dto.PlanLink, error) {
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Plano no encontrado")
		}
		return nil, appErrors.Internal(err, "failed to load plan")
	}
	project, caps, err := loadProjectWithCaps(ctx, s.projects, s.permissions, actor, plan.ProjectID)
	if err != nil {
		return nil, err
	}
	if !CanView(caps, ProjectSnapshot(project)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "No tienes acceso a este plano")
	}
	token, expiresAt, err := s.signer.Generate(plan.ID, plan.FileRef)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign download link")
	}
	link := fmt.Sprintf("%s/plans/download?token=%s", strings.TrimRight(s.cfg.APIPrefix, "/"), url.QueryEscape(token))
	return &dto.PlanLink{URL: link, ExpiresAt: expiresAt}, nil
}

// Open resolves a signed token to the stored file.
func (s *BimPlanService) Open(ctx context.Context, token string) (*PlanDownload, error) {
	if strings.TrimSpace(token) == "" {
		return nil, appErrors.ErrMissingToken
	}
	planID, key, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidToken.Code, appErrors.ErrInvalidToken.Status, appErrors.ErrInvalidToken.Message)
	}
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Plano no encontrado")
		}
		return nil, appErrors.Internal(err, "failed to load plan")
	}
	if plan.FileRef != key {
		return nil, appErrors.ErrInvalidToken
	}
	body, err := s.store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Archivo no encontrado")
		}
		return nil, appErrors.Internal(err, "failed to open plan file")
	}
	return &PlanDownload{Body: body, Filename: planFilename(plan)}, nil
}

func nextPlanVersion(existing []string, major bool) models.PlanVersion {
	var (
		latest models.PlanVersion
		found  bool
	)
	for _, raw := range existing {
		v, err := models.ParsePlanVersion(raw)
		if err != nil {
			continue
		}
		if !found || latest.Less(v) {
			latest, found = v, true
		}
	}
	if !found {
		return models.FirstPlanVersion
	}
	return latest.Next(major)
}

func markCurrentPlans(plans []models.BimPlan) {
	best := make(map[string]int, len(plans))
	for i := range plans {
		plans[i].Current = false
		name := strings.ToLower(plans[i].Name)
		v, err := models.ParsePlanVersion(plans[i].Version)
		if err != nil {
			continue
		}
		j, ok := best[name]
		if !ok {
			best[name] = i
			continue
		}
		cur, _ := models.ParsePlanVersion(plans[j].Version)
		if cur.Less(v) {
			best[name] = i
		}
	}
	for _, i := range best {
		plans[i].Current = true
	}
}

func planFilename(plan *models.BimPlan) string {
	base := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '"' {
			return '_'
		}
		return r
	}, plan.Name)
	return fmt.Sprintf("%s_v%s%s", base, plan.Version, path.Ext(plan.FileRef))
}
