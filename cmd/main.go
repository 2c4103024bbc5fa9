package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	_ "github.com/storefront-service/payment_service/docs"
	"github.com/storefront-service/payment_service/internal/api/routes"
	"github.com/storefront-service/payment_service/internal/infrastructure/cache"
	"github.com/storefront-service/payment_service/internal/infrastructure/config"
	"github.com/storefront-service/payment_service/internal/infrastructure/di"
	"github.com/storefront-service/payment_service/pkg/logger"
	"github.com/storefront-service/payment_service/pkg/tracing"
)

// @title Storefront Payment Service API
// @version 1.0
// @description Payment integration layer for the storefront: hosted checkout sessions, popup gateway orders and verified payment webhooks.

// @contact.name API Support
// @contact.email support@storefront.example

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey AdminToken
// @in header
// @name X-Admin-Token
// @description Admin token for the analytics proxy endpoints.

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)

	shutdownTracing, err := tracing.InitProvider(context.Background(), tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "payment-service",
		Environment: cfg.Environment,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warnw("Error shutting down tracing", "error", err)
		}
	}()

	distCache, err := cache.NewDistributedCache(&cache.Config{
		Addr:       cfg.Redis.Addr(),
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		MaxRetries: cfg.Redis.MaxRetries,
		PoolSize:   cfg.Redis.PoolSize,
	}, log.Zap())
	if err != nil {
		log.Fatal("Failed to connect to Redis", "error", err)
	}
	defer distCache.Close()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	container, err := di.NewContainer(cfg, distCache, log)
	if err != nil {
		log.Fatal("Failed to build service container", "error", err)
	}
	defer container.Close()

	if cfg.Reconciliation.Enabled {
		if err := container.ReconciliationWorker.Start(); err != nil {
			log.Fatal("Failed to start reconciliation worker", "error", err)
		}
		log.Infow("Reconciliation worker started", "schedule", cfg.Reconciliation.Schedule)
	}

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        routes.SetupRoutes(container),
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Infow("Starting server", "port", cfg.Server.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server stopped unexpectedly", "error", err)
		}
	}()

	// Block until SIGINT or SIGTERM, then drain. A second signal kills
	// the process immediately.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	stop()

	log.Info("Shutting down server...")

	// The worker stops first so a reconciliation pass cannot race the
	// HTTP drain.
	if container.ReconciliationWorker.IsRunning() {
		if err := container.ReconciliationWorker.Stop(); err != nil {
			log.Warnw("Error stopping reconciliation worker", "error", err)
		}
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil {
		log.Fatal("Server forced to shutdown", "error", err)
	}

	log.Info("Server exited")
}
