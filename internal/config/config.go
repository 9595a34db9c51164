// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every runtime setting of the portal server.
type Config struct {
	ServerAddress  string `env:"SERVER_ADDRESS" envDefault:":8080"`
	MetricsAddress string `env:"METRICS_ADDRESS" envDefault:":9090"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`

	// Environment toggles production behavior such as Secure session
	// cookies.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// MongoURI may be empty, in which case the server runs with in-memory
	// storage (useful for local development only).
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"portal"`

	SessionSecret string `env:"SESSION_SECRET"`
	AppBaseURL    string `env:"APP_BASE_URL"`

	SenderEmail string `env:"SENDER_EMAIL"`
	SenderName  string `env:"SENDER_NAME" envDefault:"Hello University"`

	// SenderIdentities are alternate from-addresses used when a resend opts
	// into identity rotation.
	SenderIdentities []string `env:"SENDER_IDENTITIES" envSeparator:","`

	// ProviderOrder is the priority order in which providers are tried.
	ProviderOrder []string `env:"PROVIDER_ORDER" envSeparator:"," envDefault:"mailersend,resend"`

	MailerSendAPIKey string `env:"MAILERSEND_API_KEY"`
	ResendAPIKey     string `env:"RESEND_API_KEY"`
	SendGridAPIKey   string `env:"SENDGRID_API_KEY"`
	AWSRegion        string `env:"AWS_REGION"`
	SMTPHost         string `env:"SMTP_HOST"`
	SMTPPort         int    `env:"SMTP_PORT" envDefault:"587"`

	MailerSendDailyLimit int `env:"MAILERSEND_DAILY_LIMIT" envDefault:"80"`
	ResendDailyLimit     int `env:"RESEND_DAILY_LIMIT" envDefault:"80"`
	DefaultDailyLimit    int `env:"DEFAULT_DAILY_LIMIT" envDefault:"100"`

	// MaxFailedAttempts is the consecutive-failure count at which a
	// provider's circuit opens for the rest of the day.
	MaxFailedAttempts int `env:"MAX_FAILED_ATTEMPTS" envDefault:"3"`

	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"30s"`
}

// GetConfig parses and validates the environment.
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}

	var problems []string
	if cfg.AppBaseURL == "" {
		problems = append(problems, "APP_BASE_URL is required")
	}
	if cfg.SenderEmail == "" {
		problems = append(problems, "SENDER_EMAIL is required")
	}
	if cfg.SessionSecret == "" {
		problems = append(problems, "SESSION_SECRET is required")
	}
	if len(cfg.ProviderOrder) == 0 {
		problems = append(problems, "PROVIDER_ORDER must name at least one provider")
	}
	if cfg.MaxFailedAttempts <= 0 {
		problems = append(problems, "MAX_FAILED_ATTEMPTS must be positive")
	}
	if cfg.ProviderTimeout <= 0 {
		problems = append(problems, "PROVIDER_TIMEOUT must be positive")
	}
	if len(problems) > 0 {
		return nil, errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}

	return cfg, nil
}

// IsProd reports whether the server runs in production mode.
func (c *Config) IsProd() bool {
	return c.Environment == "production"
}

// DailyLimits maps each configured provider to its daily send cap.
func (c *Config) DailyLimits() map[string]int {
	return map[string]int{
		"mailersend": c.MailerSendDailyLimit,
		"resend":     c.ResendDailyLimit,
	}
}
