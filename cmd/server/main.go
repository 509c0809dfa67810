package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ikkim/inspection-backend/config"
	"github.com/ikkim/inspection-backend/internal/app/controller"
	"github.com/ikkim/inspection-backend/internal/app/repository"
	"github.com/ikkim/inspection-backend/internal/app/service"
	"github.com/ikkim/inspection-backend/internal/db"
	"github.com/ikkim/inspection-backend/internal/events"
	"github.com/ikkim/inspection-backend/internal/middleware"
	"github.com/ikkim/inspection-backend/internal/router"
	"github.com/ikkim/inspection-backend/internal/scheduler"
	"github.com/ikkim/inspection-backend/internal/storage"
	"github.com/ikkim/inspection-backend/internal/websocket"
	"github.com/ikkim/inspection-backend/pkg/logger"
	"github.com/ikkim/inspection-backend/pkg/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := cfg.Log.Level
	if logLevel == "" {
		logLevel = "info"
		if cfg.Server.Environment == "development" {
			logLevel = "debug"
		}
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      cfg.Log.Format,
		EnableColor: cfg.Log.Format == "console",
	})

	logger.Info("Starting inspection workflow server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	// Stores
	stores, err := db.Initialize(&cfg.Stores)
	if err != nil {
		logger.Fatal("Failed to initialize stores", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Error("Failed to close store connections", err)
		}
	}()

	if err := db.Migrate(stores); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Entity lock (optional)
	var locker service.Locker
	if cfg.Redis.Enabled {
		if err := redis.Init(&cfg.Redis); err != nil {
			logger.Fatal("Failed to initialize Redis", err)
		}
		defer redis.Close()
		locker = redis.NewLocker(redis.GetClient(), cfg.Redis.LockTTL)
	} else {
		logger.Warn("Redis disabled, workflows rely on compare-and-swap only", nil)
	}

	// Document storage (optional)
	var documents service.DocumentStore
	var signer controller.DocumentSigner
	if cfg.S3.Enabled {
		s3Storage := storage.NewS3Storage(cfg.S3.Region, cfg.S3.Bucket, cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, cfg.S3.BaseURL)
		documents = s3Storage
		signer = s3Storage
		logger.Info("S3 document storage enabled", map[string]interface{}{
			"bucket": cfg.S3.Bucket,
			"region": cfg.S3.Region,
		})
	} else {
		logger.Warn("S3 disabled, document keys are not checked against storage", nil)
	}

	// Event bus (optional)
	var publisher service.EventPublisher
	natsPublisher, err := events.NewPublisher(&cfg.NATS)
	if err != nil {
		logger.Error("Failed to connect to NATS, event publishing disabled", err)
	} else if natsPublisher != nil {
		publisher = natsPublisher
		defer natsPublisher.Close()
	}

	// Realtime push
	hub := websocket.NewHub()
	go hub.Run()

	// Repositories
	userRepo := repository.NewUserRepository(stores.Identity)
	businessRepo := repository.NewBusinessRepository(stores.Business)
	inspectionRepo := repository.NewInspectionRepository(stores.Scheduling)
	violationRepo := repository.NewViolationRepository(stores.Violation)
	notificationRepo := repository.NewNotificationRepository(stores.Notification)

	// Services
	dispatcher := service.NewNotificationDispatcher(notificationRepo, hub, publisher)
	workflow := service.NewWorkflowService(service.WorkflowDeps{
		Users:       userRepo,
		Businesses:  businessRepo,
		Inspections: inspectionRepo,
		Violations:  violationRepo,
		Gate:        service.NewPolicyGate(businessRepo),
		Dispatcher:  dispatcher,
		Locker:      locker,
		Documents:   documents,
	})
	notificationService := service.NewNotificationService(notificationRepo)

	// Overdue sweep
	overdueScheduler := scheduler.NewOverdueScheduler(workflow, cfg.Scheduler.OverdueSpec)
	if err := overdueScheduler.Start(); err != nil {
		logger.Fatal("Failed to start overdue scheduler", err)
	}

	// Controllers
	r := router.NewRouter(
		controller.NewApplicationController(workflow, signer),
		controller.NewInspectionController(workflow),
		controller.NewViolationController(workflow),
		controller.NewUserController(workflow),
		controller.NewNotificationController(notificationService),
		controller.NewNotificationSocketController(hub, cfg.CORS.AllowedOrigins),
		middleware.NewAuthMiddleware(cfg.JWT.Secret),
		cfg,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")

	overdueScheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}

	logger.Info("Server stopped successfully")
}
