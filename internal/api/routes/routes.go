package routes

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/storefront-service/payment_service/internal/api/handlers"
	"github.com/storefront-service/payment_service/internal/api/middleware"
	"github.com/storefront-service/payment_service/internal/infrastructure/di"
	"github.com/storefront-service/payment_service/pkg/ratelimit"
	"github.com/storefront-service/payment_service/pkg/tracing"
)

// SetupRoutes configures all application routes
func SetupRoutes(container *di.Container) *gin.Engine {
	router := gin.New()

	// Global middleware - order matters: tracing first so every later stage
	// runs inside the request span, recovery after logging so panics are
	// still logged with a request ID.
	router.Use(tracing.HTTPMiddleware())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(container.Logger))
	router.Use(middleware.Metrics())
	router.Use(middleware.Recovery(container.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(container.Config.Server.AllowedOrigins))
	router.Use(middleware.RateLimit(container.Config.Server.RateLimitPerMin))

	// Initialize handlers with services from DI container
	healthHandler := handlers.NewHealthHandler(container.HealthChecker, container.Logger)
	checkoutHandlers := handlers.NewCheckoutHandlers(container.GetCheckoutService(), container.Logger)
	webhookHandler := handlers.NewWebhookHandler(
		container.WebhookVerifier,
		container.GetPaymentsService(),
		container.Config.Payment.WebhookToleranceMinutes,
		0,
		container.Logger,
	)
	adminHandlers := handlers.NewAdminHandlers(container.GetAnalyticsService(), container.Logger)

	// Health and operational endpoints (no auth required)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/health/live", healthHandler.Live)
	router.GET("/version", healthHandler.Version)
	router.GET("/metrics", handlers.Metrics())

	// Swagger documentation (development only)
	if container.Config.Environment != "production" {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Storefront checkout routes
		checkout := v1.Group("/checkout")
		{
			// Session creation gets a tighter Redis-backed limit that holds
			// across replicas; provider session creation is not free.
			sessionLimiter := ratelimit.Middleware(container.CheckoutLimiter, ratelimit.IPKeyFunc, container.ZapLog)

			checkout.POST("/sessions", sessionLimiter, checkoutHandlers.CreateSession)
			checkout.GET("/sessions/:id", checkoutHandlers.GetSession)
			checkout.POST("/orders", checkoutHandlers.CreatePopupOrder)
			checkout.POST("/orders/verify", checkoutHandlers.VerifyPopupPayment)
		}

		// Webhooks (external systems, authenticated by signature not session)
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/payments", webhookHandler.HandlePaymentEvent)
		}

		// Admin routes (admin token required)
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminAuth(container.Config.Analytics.AdminToken, container.Logger))
		{
			admin.GET("/analytics/summary", adminHandlers.GetAnalyticsSummary)
			admin.GET("/analytics/events", adminHandlers.ListAnalyticsEvents)
		}
	}

	return router
}
