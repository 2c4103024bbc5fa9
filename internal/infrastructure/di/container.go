package di

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/storefront-service/payment_service/internal/adapters/analytics"
	"github.com/storefront-service/payment_service/internal/adapters/dodo"
	"github.com/storefront-service/payment_service/internal/adapters/razorpay"
	analyticssvc "github.com/storefront-service/payment_service/internal/domain/services/analytics"
	"github.com/storefront-service/payment_service/internal/domain/services/checkout"
	"github.com/storefront-service/payment_service/internal/domain/services/payments"
	"github.com/storefront-service/payment_service/internal/infrastructure/adapters"
	"github.com/storefront-service/payment_service/internal/infrastructure/cache"
	"github.com/storefront-service/payment_service/internal/infrastructure/config"
	"github.com/storefront-service/payment_service/internal/workers/reconciliation"
	"github.com/storefront-service/payment_service/pkg/health"
	"github.com/storefront-service/payment_service/pkg/logger"
	"github.com/storefront-service/payment_service/pkg/ratelimit"
	"github.com/storefront-service/payment_service/pkg/webhook"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *logger.Logger
	ZapLog *zap.Logger

	// Infrastructure
	Cache *cache.DistributedCache

	// External services
	DodoClient      *dodo.Client
	RazorpayClient  *razorpay.Client
	AnalyticsClient *analytics.Client
	EmailService    *adapters.EmailService

	// Webhook verification
	WebhookVerifier *webhook.Verifier

	// Domain services
	CheckoutService  *checkout.Service
	PaymentsService  *payments.Service
	AnalyticsService *analyticssvc.Service

	// Workers
	ReconciliationWorker *reconciliation.Worker

	// Operational
	HealthChecker   *health.HealthChecker
	CheckoutLimiter *ratelimit.DistributedLimiter
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config, distCache *cache.DistributedCache, log *logger.Logger) (*Container, error) {
	zapLog := log.Zap()

	verifier := webhook.NewVerifier(cfg.Payment.WebhookSecret, zapLog)

	dodoClient := dodo.NewClient(dodo.Config{
		APIKey:       cfg.Payment.Dodo.APIKey,
		BaseURL:      cfg.Payment.Dodo.BaseURL,
		Environment:  cfg.Environment,
		Timeout:      time.Duration(cfg.Payment.Dodo.Timeout) * time.Second,
		RateLimitRPM: cfg.Payment.Dodo.RateLimitRPM,
	}, zapLog)

	razorpayClient := razorpay.NewClient(razorpay.Config{
		KeyID:     cfg.Payment.Razorpay.KeyID,
		KeySecret: cfg.Payment.Razorpay.KeySecret,
	}, zapLog)

	analyticsClient := analytics.NewClient(analytics.Config{
		BaseURL:      cfg.Analytics.BaseURL,
		ServiceToken: cfg.Analytics.ServiceToken,
		Timeout:      time.Duration(cfg.Analytics.Timeout) * time.Second,
	}, zapLog)

	emailService := adapters.NewEmailService(zapLog, adapters.EmailServiceConfig{
		APIKey:      cfg.Email.APIKey,
		FromEmail:   cfg.Email.FromEmail,
		FromName:    cfg.Email.FromName,
		ReplyTo:     cfg.Email.ReplyTo,
		Environment: cfg.Email.Environment,
	})

	checkoutLimiter := ratelimit.NewDistributedLimiter(distCache.Client(), ratelimit.Config{
		Limit:     int64(cfg.Checkout.RateLimit),
		Window:    time.Duration(cfg.Checkout.RateWindowSeconds) * time.Second,
		KeyPrefix: "checkout",
	}, zapLog)

	container := &Container{
		Config: cfg,
		Logger: log,
		ZapLog: zapLog,

		Cache: distCache,

		DodoClient:      dodoClient,
		RazorpayClient:  razorpayClient,
		AnalyticsClient: analyticsClient,
		EmailService:    emailService,

		WebhookVerifier: verifier,

		CheckoutLimiter: checkoutLimiter,
	}

	if err := container.initializeDomainServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize domain services: %w", err)
	}

	if err := container.initializeWorkers(); err != nil {
		return nil, fmt.Errorf("failed to initialize workers: %w", err)
	}

	container.initializeHealthChecks()

	return container, nil
}

// initializeDomainServices initializes all domain services with their dependencies
func (c *Container) initializeDomainServices() error {
	c.CheckoutService = checkout.NewService(
		c.DodoClient,
		c.RazorpayClient,
		c.Cache,
		c.AnalyticsClient,
		checkout.Config{
			SupportedCurrencies: c.Config.Payment.SupportedCurrencies,
			SessionTTL:          time.Duration(c.Config.Checkout.SessionTTLHours) * time.Hour,
		},
		c.ZapLog,
	)

	// The payments dedup marker TTL is derived from this window, so it has
	// to be the same one the webhook verifier enforces.
	freshnessWindow := time.Duration(c.Config.Payment.WebhookToleranceMinutes) * time.Minute

	c.PaymentsService = payments.NewService(
		c.Cache,
		c.CheckoutService,
		c.EmailService,
		c.AnalyticsClient,
		freshnessWindow,
		c.ZapLog,
	)

	c.AnalyticsService = analyticssvc.NewService(c.AnalyticsClient, c.ZapLog)

	return nil
}

// initializeWorkers initializes background workers
func (c *Container) initializeWorkers() error {
	workerConfig := reconciliation.DefaultConfig()
	if c.Config.Reconciliation.Schedule != "" {
		workerConfig.Schedule = c.Config.Reconciliation.Schedule
	}
	if c.Config.Reconciliation.LookbackHours > 0 {
		workerConfig.Lookback = time.Duration(c.Config.Reconciliation.LookbackHours) * time.Hour
	}

	worker, err := reconciliation.NewWorker(
		c.DodoClient,
		c.CheckoutService,
		c.AnalyticsClient,
		workerConfig,
		c.ZapLog,
	)
	if err != nil {
		return fmt.Errorf("failed to create reconciliation worker: %w", err)
	}

	c.ReconciliationWorker = worker
	return nil
}

// initializeHealthChecks registers the component health checkers
func (c *Container) initializeHealthChecks() {
	checker := health.NewHealthChecker(10 * time.Second)

	checker.Register(health.NewRedisChecker(c.Cache.Client(), 3*time.Second))
	checker.Register(health.NewCircuitBreakerChecker("dodo_circuit",
		c.DodoClient.BreakerState, c.DodoClient.BreakerCounts))
	checker.Register(health.NewWorkerChecker("reconciliation_worker",
		c.ReconciliationWorker.IsRunning, c.ReconciliationWorker.GetStatus))

	if c.AnalyticsClient.Enabled() {
		checker.Register(health.NewExternalAPIChecker("analytics",
			c.Config.Analytics.BaseURL+"/health", 5*time.Second))
	}

	c.HealthChecker = checker
}

// GetCheckoutService returns the checkout service
func (c *Container) GetCheckoutService() *checkout.Service {
	return c.CheckoutService
}

// GetPaymentsService returns the payments service
func (c *Container) GetPaymentsService() *payments.Service {
	return c.PaymentsService
}

// GetAnalyticsService returns the analytics service
func (c *Container) GetAnalyticsService() *analyticssvc.Service {
	return c.AnalyticsService
}

// GetReconciliationWorker returns the reconciliation worker
func (c *Container) GetReconciliationWorker() *reconciliation.Worker {
	return c.ReconciliationWorker
}

// Close releases client resources owned by the container. The cache is
// created by the caller and closed there.
func (c *Container) Close() error {
	if c.DodoClient != nil {
		return c.DodoClient.Close()
	}
	return nil
}
