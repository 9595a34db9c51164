package dispatch

import (
	"fmt"
	"time"

	"github.com/hellouniversity/portal/internal/dispatch/providers"
	"github.com/hellouniversity/portal/internal/dispatch/providers/mailersend"
	"github.com/hellouniversity/portal/internal/dispatch/providers/resend"
	"github.com/hellouniversity/portal/internal/dispatch/providers/sendgrid"
	"github.com/hellouniversity/portal/internal/dispatch/providers/ses"
	"github.com/hellouniversity/portal/internal/dispatch/providers/smtp"
)

// ProviderType represents the type of email provider.
type ProviderType string

const (
	// ProviderMailerSend represents the MailerSend email service.
	ProviderMailerSend ProviderType = "mailersend"

	// ProviderResend represents the Resend email service.
	ProviderResend ProviderType = "resend"

	// ProviderAWSSES represents Amazon Simple Email Service.
	ProviderAWSSES ProviderType = "aws_ses"

	// ProviderSendGrid represents the SendGrid email service.
	ProviderSendGrid ProviderType = "sendgrid"

	// ProviderSMTP represents a generic SMTP server.
	ProviderSMTP ProviderType = "smtp"
)

// String returns the string representation of the provider type.
func (pt ProviderType) String() string {
	return string(pt)
}

// Valid checks if the provider type is supported.
func (pt ProviderType) Valid() bool {
	switch pt {
	case ProviderMailerSend, ProviderResend, ProviderAWSSES, ProviderSendGrid, ProviderSMTP:
		return true
	default:
		return false
	}
}

// ProviderSpec pairs a provider type with its settings. The governor tries
// providers in the order they are listed; adding a provider is a
// configuration change, not a code change.
type ProviderSpec struct {
	Type     ProviderType
	Settings Settings
}

// Config holds the governor configuration.
type Config struct {
	// AppBaseURL is the portal base URL verification links are joined onto.
	AppBaseURL string

	// Sender is the default from-identity used by every dispatch that does
	// not opt into identity rotation.
	Sender Address

	// RotationIdentities is the ordered list of alternate from-addresses
	// tried per provider when a call site opts into rotation. When empty,
	// rotation falls back to the single default sender.
	RotationIdentities []string

	// Providers is the provider priority order, primary first.
	Providers []ProviderSpec

	// SendTimeout bounds every individual adapter call. A provider that has
	// not answered within the timeout counts as a failed attempt instead of
	// stalling the dispatch. Zero leaves calls unbounded.
	SendTimeout time.Duration
}

// Validate checks if the configuration is valid and complete.
func (c *Config) Validate() error {
	if c.AppBaseURL == "" {
		return providers.NewValidationError("app_base_url", "application base URL is required")
	}
	if !c.Sender.Valid() {
		return providers.NewValidationError("sender", "invalid or missing default sender address")
	}
	for _, spec := range c.Providers {
		if !spec.Type.Valid() {
			return providers.NewValidationError("providers", "unsupported provider type: "+string(spec.Type))
		}
	}
	return nil
}

// createProvider creates a provider instance based on type and settings.
func createProvider(providerType ProviderType, settings Settings) (Provider, error) {
	switch providerType {
	case ProviderMailerSend:
		return mailersend.NewProvider(settings)
	case ProviderResend:
		return resend.NewProvider(settings)
	case ProviderAWSSES:
		return ses.NewProvider(settings)
	case ProviderSendGrid:
		return sendgrid.NewProvider(settings)
	case ProviderSMTP:
		return smtp.NewProvider(settings)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}
