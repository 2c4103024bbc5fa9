package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment    string               `mapstructure:"environment"`
	LogLevel       string               `mapstructure:"log_level"`
	Server         ServerConfig         `mapstructure:"server"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Payment        PaymentConfig        `mapstructure:"payment"`
	Checkout       CheckoutConfig       `mapstructure:"checkout"`
	Analytics      AnalyticsConfig      `mapstructure:"analytics"`
	Email          EmailConfig          `mapstructure:"email"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Host            string   `mapstructure:"host"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	RateLimitPerMin int      `mapstructure:"rate_limit_per_min"`
}

type RedisConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type PaymentConfig struct {
	// WebhookSecret signs card-provider webhook deliveries. The provider
	// issues it with a "whsec_" prefix around a base64 key.
	WebhookSecret string `mapstructure:"webhook_secret"`
	// WebhookToleranceMinutes bounds how far a delivery timestamp may drift
	// from server time before the delivery is rejected as stale.
	WebhookToleranceMinutes int            `mapstructure:"webhook_tolerance_minutes"`
	SupportedCurrencies     []string       `mapstructure:"supported_currencies"`
	Dodo                    DodoConfig     `mapstructure:"dodo"`
	Razorpay                RazorpayConfig `mapstructure:"razorpay"`
}

type DodoConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	Timeout      int    `mapstructure:"timeout"` // seconds
	MaxRetries   int    `mapstructure:"max_retries"`
	RateLimitRPM int    `mapstructure:"rate_limit_rpm"` // requests per minute
}

type RazorpayConfig struct {
	KeyID     string `mapstructure:"key_id"`
	KeySecret string `mapstructure:"key_secret"`
}

type CheckoutConfig struct {
	RateLimit         int `mapstructure:"rate_limit"`
	RateWindowSeconds int `mapstructure:"rate_window_seconds"`
	SessionTTLHours   int `mapstructure:"session_ttl_hours"`
}

type AnalyticsConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	ServiceToken string `mapstructure:"service_token"`
	AdminToken   string `mapstructure:"admin_token"`
	Timeout      int    `mapstructure:"timeout"` // seconds
}

type EmailConfig struct {
	Provider    string `mapstructure:"provider"` // "sendgrid"
	APIKey      string `mapstructure:"api_key"`
	FromEmail   string `mapstructure:"from_email"`
	FromName    string `mapstructure:"from_name"`
	Environment string `mapstructure:"environment"` // "development", "staging", "production"
	ReplyTo     string `mapstructure:"reply_to"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type ReconciliationConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Schedule      string `mapstructure:"schedule"`
	LookbackHours int    `mapstructure:"lookback_hours"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set defaults
	setDefaults()

	// Read from config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Override specific environment variables
	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate required fields
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.rate_limit_per_min", 100)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)

	// Payment defaults
	viper.SetDefault("payment.webhook_secret", "")
	viper.SetDefault("payment.webhook_tolerance_minutes", 3)
	viper.SetDefault("payment.supported_currencies", []string{"USD", "EUR", "INR"})
	viper.SetDefault("payment.dodo.api_key", "")
	viper.SetDefault("payment.dodo.base_url", "https://test.dodopayments.com")
	viper.SetDefault("payment.dodo.timeout", 30)
	viper.SetDefault("payment.dodo.max_retries", 3)
	viper.SetDefault("payment.dodo.rate_limit_rpm", 120)
	viper.SetDefault("payment.razorpay.key_id", "")
	viper.SetDefault("payment.razorpay.key_secret", "")

	// Checkout defaults
	viper.SetDefault("checkout.rate_limit", 20)
	viper.SetDefault("checkout.rate_window_seconds", 60)
	viper.SetDefault("checkout.session_ttl_hours", 24)

	// Analytics defaults
	viper.SetDefault("analytics.base_url", "")
	viper.SetDefault("analytics.service_token", "")
	viper.SetDefault("analytics.admin_token", "")
	viper.SetDefault("analytics.timeout", 10)

	// Email defaults
	viper.SetDefault("email.provider", "")
	viper.SetDefault("email.api_key", "")
	viper.SetDefault("email.from_email", "orders@storefront.example")
	viper.SetDefault("email.from_name", "Storefront Orders")
	viper.SetDefault("email.environment", "development")
	viper.SetDefault("email.reply_to", "")

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4317")
	viper.SetDefault("tracing.sample_ratio", 0.1)

	// Reconciliation defaults
	viper.SetDefault("reconciliation.enabled", true)
	viper.SetDefault("reconciliation.schedule", "*/10 * * * *")
	viper.SetDefault("reconciliation.lookback_hours", 24)
}

func overrideFromEnv() {
	// Server
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("server.port", p)
		}
	}
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		parts := strings.Split(origins, ",")
		var allowed []string
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				allowed = append(allowed, trimmed)
			}
		}
		if len(allowed) > 0 {
			viper.Set("server.allowed_origins", allowed)
		}
	}

	// Webhook verification
	if secret := os.Getenv("PAYMENT_WEBHOOK_SECRET"); secret != "" {
		viper.Set("payment.webhook_secret", secret)
	}
	if tolerance := os.Getenv("PAYMENT_WEBHOOK_TOLERANCE_MINUTES"); tolerance != "" {
		if t, err := strconv.Atoi(tolerance); err == nil {
			viper.Set("payment.webhook_tolerance_minutes", t)
		}
	}

	// Card provider
	if dodoKey := os.Getenv("DODO_API_KEY"); dodoKey != "" {
		viper.Set("payment.dodo.api_key", dodoKey)
	}
	if dodoBaseURL := os.Getenv("DODO_BASE_URL"); dodoBaseURL != "" {
		viper.Set("payment.dodo.base_url", dodoBaseURL)
	}

	// Popup gateway
	if razorpayKeyID := os.Getenv("RAZORPAY_KEY_ID"); razorpayKeyID != "" {
		viper.Set("payment.razorpay.key_id", razorpayKeyID)
	}
	if razorpayKeySecret := os.Getenv("RAZORPAY_KEY_SECRET"); razorpayKeySecret != "" {
		viper.Set("payment.razorpay.key_secret", razorpayKeySecret)
	}

	// Analytics
	if analyticsURL := os.Getenv("ANALYTICS_BASE_URL"); analyticsURL != "" {
		viper.Set("analytics.base_url", analyticsURL)
	}
	if serviceToken := os.Getenv("ANALYTICS_SERVICE_TOKEN"); serviceToken != "" {
		viper.Set("analytics.service_token", serviceToken)
	}
	if adminToken := os.Getenv("ADMIN_API_TOKEN"); adminToken != "" {
		viper.Set("analytics.admin_token", adminToken)
	}

	// Email service
	if sendgridKey := os.Getenv("SENDGRID_API_KEY"); sendgridKey != "" {
		viper.Set("email.api_key", sendgridKey)
		viper.Set("email.provider", "sendgrid")
	}
	if fromEmail := os.Getenv("EMAIL_FROM_EMAIL"); fromEmail != "" {
		viper.Set("email.from_email", fromEmail)
	}
	if fromName := os.Getenv("EMAIL_FROM_NAME"); fromName != "" {
		viper.Set("email.from_name", fromName)
	}
	if replyTo := os.Getenv("EMAIL_REPLY_TO"); replyTo != "" {
		viper.Set("email.reply_to", replyTo)
	}

	// Redis
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		viper.Set("redis.password", redisPassword)
	}

	// Tracing
	if otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); otlpEndpoint != "" {
		viper.Set("tracing.endpoint", otlpEndpoint)
	}
	if tracingEnabled := os.Getenv("TRACING_ENABLED"); tracingEnabled != "" {
		if enabled, err := strconv.ParseBool(tracingEnabled); err == nil {
			viper.Set("tracing.enabled", enabled)
		}
	}

	// Reconciliation
	if schedule := os.Getenv("RECONCILIATION_SCHEDULE"); schedule != "" {
		viper.Set("reconciliation.schedule", schedule)
	}
}

func validate(config *Config) error {
	if config.Payment.WebhookSecret == "" {
		return fmt.Errorf("payment webhook secret is required")
	}

	if config.Environment == "production" {
		if !strings.HasPrefix(config.Payment.WebhookSecret, "whsec_") {
			return fmt.Errorf("payment webhook secret must carry the whsec_ prefix in production")
		}
		if config.Payment.Dodo.APIKey == "" {
			return fmt.Errorf("card provider API key is required in production")
		}
		if config.Analytics.AdminToken == "" {
			return fmt.Errorf("admin API token is required in production")
		}
	}

	if len(config.Payment.SupportedCurrencies) == 0 {
		return fmt.Errorf("supported currencies configuration is required")
	}

	return nil
}
