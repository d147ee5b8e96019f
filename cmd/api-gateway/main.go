package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/obra-api/api/swagger"
	"github.com/noah-isme/obra-api/internal/handler"
	"github.com/noah-isme/obra-api/internal/middleware"
	"github.com/noah-isme/obra-api/internal/models"
	"github.com/noah-isme/obra-api/internal/repository"
	"github.com/noah-isme/obra-api/internal/service"
	"github.com/noah-isme/obra-api/pkg/cache"
	"github.com/noah-isme/obra-api/pkg/config"
	"github.com/noah-isme/obra-api/pkg/database"
	"github.com/noah-isme/obra-api/pkg/export"
	"github.com/noah-isme/obra-api/pkg/jobs"
	"github.com/noah-isme/obra-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/obra-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/obra-api/pkg/middleware/requestid"
	"github.com/noah-isme/obra-api/pkg/storage"
)

// @title Obra API
// @version 1.0.0
// @description Construction project management backend: projects, tasks, milestones, BIM plans and notifications.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("database unavailable", zap.Error(err))
	}
	defer db.Close()

	var cacheRepo service.CacheRepository
	if cfg.Auth.TokenCacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, session cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			cacheRepo = repository.NewCacheRepository(client)
		}
	}

	store, err := newObjectStore(cfg.Storage)
	if err != nil {
		logr.Fatal("storage unavailable", zap.Error(err), zap.String("driver", cfg.Storage.Driver))
	}

	cleanup := jobs.NewQueue(service.JobTypePlanCleanup, func(ctx context.Context, job jobs.Job) error {
		err := store.Delete(ctx, job.Key)
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil
		}
		return err
	}, jobs.QueueConfig{
		Workers:    2,
		MaxRetries: 5,
		RetryDelay: 2 * time.Second,
		MaxDelay:   time.Minute,
		Logger:     logr,
		OnGiveUp: func(job jobs.Job, err error) {
			logr.Error("plan file left orphaned", zap.String("key", job.Key), zap.Error(err))
		},
	})
	cleanup.Start(ctx)
	defer cleanup.Stop()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	milestoneRepo := repository.NewMilestoneRepository(db)
	planRepo := repository.NewBimPlanRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Auth.TokenCacheTTL, logr, cacheRepo != nil)
	auditSvc := service.NewAuditService(auditRepo, metricsSvc, logr)
	permissionSvc := service.NewPermissionService(projectRepo)
	notificationSvc := service.NewNotificationService(notificationRepo, projectRepo, metricsSvc, logr)
	sessionSvc := service.NewSessionService(userRepo, cacheSvc, auditSvc, validate, logr, service.SessionConfig{CacheTTL: cfg.Auth.TokenCacheTTL})
	projectSvc := service.NewProjectService(projectRepo, userRepo, permissionSvc, auditSvc, notificationSvc, metricsSvc, validate, logr)
	taskSvc := service.NewTaskService(taskRepo, projectRepo, permissionSvc, auditSvc, notificationSvc, metricsSvc, validate, logr)
	milestoneSvc := service.NewMilestoneService(milestoneRepo, projectRepo, userRepo, permissionSvc, auditSvc, notificationSvc, metricsSvc, validate, logr)
	planSvc := service.NewBimPlanService(planRepo, projectRepo, permissionSvc, store,
		storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL),
		auditSvc, notificationSvc, metricsSvc, validate, logr,
		service.BimPlanConfig{MaxFileSize: cfg.Storage.MaxFileSizeBytes, APIPrefix: cfg.APIPrefix},
	).WithCleanupQueue(cleanup)
	exportSvc := service.NewExportService(taskRepo, projectRepo, permissionSvc, logr, export.NewCSVExporter(), export.NewPDFExporter())

	authHandler := handler.NewAuthHandler(sessionSvc)
	projectHandler := handler.NewProjectHandler(projectSvc, exportSvc)
	taskHandler := handler.NewTaskHandler(taskSvc)
	milestoneHandler := handler.NewMilestoneHandler(milestoneSvc)
	planHandler := handler.NewPlanHandler(planSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	auditHandler := handler.NewAuditHandler(auditSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logr.Fatal("invalid trusted proxies", zap.Error(err), zap.Strings("proxies", cfg.TrustedProxies))
	}
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(metricsSvc))
		r.GET("/metrics", metricsHandler.Prometheus)
	}

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)

	if cfg.Docs.Enabled && cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	limiter := middleware.NewRateLimiter(cfg.Auth.RateLimitRPS, cfg.Auth.RateLimitBurst)

	public := api.Group("/auth", limiter.Middleware())
	public.POST("/login", authHandler.Login)
	public.POST("/register", authHandler.Register)
	public.POST("/forgot-password", authHandler.ForgotPassword)

	api.GET("/plans/download", planHandler.Download)

	secured := api.Group("", middleware.Auth(sessionSvc))
	secured.POST("/auth/logout", authHandler.Logout)
	secured.GET("/auth/me", authHandler.Me)
	secured.PUT("/users/me", authHandler.UpdateProfile)
	secured.POST("/users/me/password", authHandler.ChangePassword)

	secured.GET("/projects", projectHandler.List)
	secured.POST("/projects", projectHandler.Create)
	secured.GET("/projects/:id", projectHandler.Get)
	secured.PUT("/projects/:id", projectHandler.Update)
	secured.POST("/projects/:id/members", projectHandler.AddMember)
	secured.GET("/projects/:id/tasks", taskHandler.ListByProject)
	secured.GET("/projects/:id/milestones", milestoneHandler.ListByProject)
	secured.GET("/projects/:id/plans", planHandler.ListByProject)
	secured.GET("/projects/:id/history/export", projectHandler.ExportHistory)

	secured.POST("/tasks", taskHandler.Create)
	secured.POST("/tasks/move", taskHandler.Move)
	secured.GET("/tasks/:id/history", taskHandler.History)

	secured.POST("/milestones", milestoneHandler.Create)

	secured.POST("/plans", planHandler.Upload)
	secured.GET("/plans/:id/link", planHandler.Link)

	secured.GET("/notifications", notificationHandler.List)
	secured.POST("/notifications/read-all", notificationHandler.MarkAllRead)
	secured.POST("/notifications/:id/read", notificationHandler.MarkRead)
	secured.DELETE("/notifications/:id", notificationHandler.Delete)

	secured.GET("/audit-logs", middleware.RequireRoles(models.RoleAdmin), auditHandler.List)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newObjectStore(cfg config.StorageConfig) (storage.ObjectStore, error) {
	switch cfg.Driver {
	case config.StorageDriverS3:
		return storage.NewS3Storage(cfg)
	case config.StorageDriverLocal, "":
		return storage.NewLocalStorage(cfg.LocalDir)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
