package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_BASE_URL", "https://portal.hellouniversity.edu")
	t.Setenv("SENDER_EMAIL", "noreply@hellouniversity.edu")
	t.Setenv("SESSION_SECRET", "s3cret")
}

func TestGetConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := GetConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, ":9090", cfg.MetricsAddress)
	assert.Equal(t, "portal", cfg.MongoDatabase)
	assert.Equal(t, "Hello University", cfg.SenderName)
	assert.Equal(t, []string{"mailersend", "resend"}, cfg.ProviderOrder)
	assert.Equal(t, 80, cfg.MailerSendDailyLimit)
	assert.Equal(t, 80, cfg.ResendDailyLimit)
	assert.Equal(t, 100, cfg.DefaultDailyLimit)
	assert.Equal(t, 3, cfg.MaxFailedAttempts)
	assert.Equal(t, 30*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.IsProd())
}

func TestIsProd(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := GetConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProd())
}

func TestGetConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PROVIDER_ORDER", "resend,mailersend,smtp")
	t.Setenv("SENDER_IDENTITIES", "a@hello.edu,b@hello.edu")
	t.Setenv("MAILERSEND_DAILY_LIMIT", "10")
	t.Setenv("PROVIDER_TIMEOUT", "5s")

	cfg, err := GetConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"resend", "mailersend", "smtp"}, cfg.ProviderOrder)
	assert.Equal(t, []string{"a@hello.edu", "b@hello.edu"}, cfg.SenderIdentities)
	assert.Equal(t, 10, cfg.MailerSendDailyLimit)
	assert.Equal(t, 5*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, map[string]int{"mailersend": 10, "resend": 80}, cfg.DailyLimits())
}

func TestGetConfigMissingRequired(t *testing.T) {
	t.Setenv("APP_BASE_URL", "")
	t.Setenv("SENDER_EMAIL", "noreply@hellouniversity.edu")
	t.Setenv("SESSION_SECRET", "s3cret")

	_, err := GetConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_BASE_URL")
}

func TestGetConfigRejectsNonPositiveThreshold(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAX_FAILED_ATTEMPTS", "0")

	_, err := GetConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_FAILED_ATTEMPTS")
}
