package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	billingapp "github.com/crm/backend/internal/application/billing"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/event"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/persistence"
	"github.com/crm/backend/internal/infrastructure/scheduler"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting CRM Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection
	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := db.AutoMigrate(); err != nil {
		log.Fatal("Failed to migrate database schema", zap.Error(err))
	}

	// Initialize repositories and ports
	quoteRepo := persistence.NewGormQuoteRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	txManager := persistence.NewGormTxManager(db.DB)
	directory := persistence.NewGormDirectory(db.DB)
	activityLogger := persistence.NewGormActivityLogger(db.DB)
	tenantProvider := persistence.NewGormTenantProvider(db.DB)

	// Initialize event bus
	eventBus := event.NewInMemoryEventBus(log)
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Initialize the application services the background sweeps drive.
	// Transport-facing services are wired by the embedding application.
	quoteService := billingapp.NewQuoteService(quoteRepo, directory, activityLogger, eventBus, log)
	invoiceService := billingapp.NewInvoiceService(invoiceRepo, paymentRepo, directory, txManager, activityLogger, eventBus, log)

	// Start the background sweeps (if enabled)
	if cfg.Scheduler.Enabled {
		expirySweeper := scheduler.NewQuoteExpirySweeper(scheduler.QuoteExpiryConfig{
			Interval:  cfg.Scheduler.QuoteExpiryInterval,
			BatchSize: cfg.Scheduler.QuoteExpiryBatch,
		}, quoteService, log)
		if err := expirySweeper.Start(context.Background()); err != nil {
			log.Fatal("Failed to start quote expiry sweeper", zap.Error(err))
		}
		defer func() {
			if err := expirySweeper.Stop(context.Background()); err != nil {
				log.Error("Error stopping quote expiry sweeper", zap.Error(err))
			}
		}()

		overdueSweeper := scheduler.NewInvoiceOverdueSweeper(scheduler.InvoiceOverdueConfig{
			Interval: cfg.Scheduler.InvoiceOverdueInterval,
		}, tenantProvider, invoiceService, log)
		if err := overdueSweeper.Start(context.Background()); err != nil {
			log.Fatal("Failed to start invoice overdue sweeper", zap.Error(err))
		}
		defer func() {
			if err := overdueSweeper.Stop(context.Background()); err != nil {
				log.Error("Error stopping invoice overdue sweeper", zap.Error(err))
			}
		}()
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	// Health check endpoint
	engine.GET("/health", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "app": cfg.App.Name})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
