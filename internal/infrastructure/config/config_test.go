package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Setenv("PAYMENT_WEBHOOK_SECRET", "whsec_ZmFrZXNlY3JldGtleQ==")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Payment.WebhookToleranceMinutes)
	assert.Equal(t, "https://test.dodopayments.com", cfg.Payment.Dodo.BaseURL)
	assert.Equal(t, "*/10 * * * *", cfg.Reconciliation.Schedule)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	viper.Reset()
	t.Setenv("PAYMENT_WEBHOOK_SECRET", "whsec_ZmFrZXNlY3JldGtleQ==")
	t.Setenv("PAYMENT_WEBHOOK_TOLERANCE_MINUTES", "5")
	t.Setenv("PORT", "9090")
	t.Setenv("DODO_API_KEY", "dodo_test_key")
	t.Setenv("RAZORPAY_KEY_ID", "rzp_test_abc")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://shop.example.com, https://admin.example.com")
	t.Setenv("TRACING_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Payment.WebhookToleranceMinutes)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "dodo_test_key", cfg.Payment.Dodo.APIKey)
	assert.Equal(t, "rzp_test_abc", cfg.Payment.Razorpay.KeyID)
	assert.Equal(t, []string{"https://shop.example.com", "https://admin.example.com"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestLoadRequiresWebhookSecret(t *testing.T) {
	viper.Reset()
	t.Setenv("PAYMENT_WEBHOOK_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook secret is required")
}

func TestValidateProduction(t *testing.T) {
	base := func() *Config {
		return &Config{
			Environment: "production",
			Payment: PaymentConfig{
				WebhookSecret:       "whsec_ZmFrZXNlY3JldGtleQ==",
				SupportedCurrencies: []string{"USD"},
				Dodo:                DodoConfig{APIKey: "dodo_live_key"},
			},
			Analytics: AnalyticsConfig{AdminToken: "admin-token"},
		}
	}

	cfg := base()
	assert.NoError(t, validate(cfg))

	cfg = base()
	cfg.Payment.WebhookSecret = "not-a-provider-secret"
	err := validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whsec_")

	cfg = base()
	cfg.Payment.Dodo.APIKey = ""
	assert.Error(t, validate(cfg))

	cfg = base()
	cfg.Analytics.AdminToken = ""
	assert.Error(t, validate(cfg))
}
