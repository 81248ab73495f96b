package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/tutor-center-api/api/swagger"
	"github.com/noah-isme/tutor-center-api/internal/handler"
	"github.com/noah-isme/tutor-center-api/internal/middleware"
	"github.com/noah-isme/tutor-center-api/internal/models"
	"github.com/noah-isme/tutor-center-api/internal/repository"
	"github.com/noah-isme/tutor-center-api/internal/service"
	"github.com/noah-isme/tutor-center-api/pkg/cache"
	"github.com/noah-isme/tutor-center-api/pkg/config"
	"github.com/noah-isme/tutor-center-api/pkg/database"
	"github.com/noah-isme/tutor-center-api/pkg/export"
	"github.com/noah-isme/tutor-center-api/pkg/jobs"
	"github.com/noah-isme/tutor-center-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tutor-center-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tutor-center-api/pkg/middleware/requestid"
)

// @title Tutor Center API
// @version 0.1.0
// @description Tutoring center administration backend
// @BasePath /
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, period scan caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	ledgerRepo := repository.NewGenerationStatusRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, classRepo, validate, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, export.NewInvoiceExporter("Tutor Center"), export.NewCSVExporter(), validate, logr)

	generationSvc := service.NewPaymentGenerationService(
		ledgerRepo, enrollmentRepo, classRepo, studentRepo, paymentRepo,
		metricsSvc, logr, service.GenerationConfig{
			DueDay:           cfg.Billing.DueDay,
			GeneratedBy:      cfg.Billing.GeneratedBy,
			RunLease:         cfg.Billing.RunLease,
			ProrationEnabled: cfg.Billing.ProrationEnabled,
		})

	billingQueue := jobs.NewQueue("billing", func(ctx context.Context, job jobs.Job) error {
		period, ok := job.Payload.(models.BillingPeriod)
		if !ok {
			return fmt.Errorf("unexpected payload type %T for job %s", job.Payload, job.ID)
		}
		_, err := generationSvc.Regenerate(ctx, period.Month, period.Year, false)
		return err
	}, jobs.Options{Workers: 1, MaxRetries: 3, RetryDelay: 30 * time.Second, Logger: logr})

	recoverySvc := service.NewRecoveryService(
		ledgerRepo, generationSvc, cacheRepo, billingQueue, logr, nil,
		cfg.Billing.RecoveryWindow, cfg.Dashboard.CacheTTL)

	trigger := service.NewGenerationTrigger(generationSvc, cfg.Billing.CronSpec, cfg.Billing.MinTriggerInterval, nil, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	classHandler := handler.NewClassHandler(classSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	billingHandler := handler.NewBillingHandler(generationSvc, recoverySvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	{
		protected.GET("/students", studentHandler.List)
		protected.POST("/students", studentHandler.Create)
		protected.GET("/students/:id", studentHandler.Get)
		protected.PUT("/students/:id", studentHandler.Update)

		protected.GET("/classes", classHandler.List)
		protected.POST("/classes", classHandler.Create)
		protected.GET("/classes/:id", classHandler.Get)
		protected.PUT("/classes/:id", classHandler.Update)

		protected.GET("/enrollments", enrollmentHandler.List)
		protected.POST("/enrollments", enrollmentHandler.Create)
		protected.GET("/enrollments/:id", enrollmentHandler.Get)
		protected.PUT("/enrollments/:id/status", enrollmentHandler.UpdateStatus)
		protected.PUT("/enrollments/:id/fee-adjustment", enrollmentHandler.UpdateFeeAdjustment)

		protected.GET("/payments", paymentHandler.List)
		protected.GET("/payments/export", paymentHandler.ExportCSV)
		protected.GET("/payments/:id", paymentHandler.Get)
		protected.POST("/payments/:id/pay", paymentHandler.MarkPaid)
		protected.POST("/payments/:id/waive", paymentHandler.Waive)
		protected.POST("/payments/:id/remind", paymentHandler.SendReminder)
		protected.GET("/payments/:id/invoice", paymentHandler.Invoice)

		protected.POST("/billing/generate", billingHandler.Generate)
		protected.GET("/billing/status", billingHandler.Status)
		protected.GET("/billing/periods", billingHandler.Periods)
		protected.POST("/billing/recovery", billingHandler.Recover)
		protected.POST("/billing/backfill", billingHandler.Backfill)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	billingQueue.Start(ctx)
	defer billingQueue.Stop()

	if cfg.Billing.TriggerEnabled {
		if err := trigger.Start(); err != nil {
			logr.Sugar().Fatalw("failed to start generation trigger", "error", err)
		}
		defer trigger.Stop()
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
