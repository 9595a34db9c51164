package resend

import (
	"context"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/hellouniversity/portal/internal/dispatch/providers"
)

// Provider implements the providers.Provider interface for Resend.
type Provider struct {
	client *resend.Client
	config providers.Settings
}

// NewProvider creates a new Resend provider.
func NewProvider(settings providers.Settings) (providers.Provider, error) {
	apiKey := settings.Get("api_key")
	if apiKey == "" {
		return nil, providers.NewValidationError("api_key", "Resend API key is required")
	}

	provider := &Provider{
		client: resend.NewClient(apiKey),
		config: settings,
	}

	return provider, nil
}

// Send sends a single email using the Resend API.
func (p *Provider) Send(ctx context.Context, msg *providers.Message) (*providers.Result, error) {
	params := &resend.SendEmailRequest{
		From:    msg.From.String(),
		To:      []string{msg.To.Email},
		Subject: msg.Subject,
		Html:    msg.HTMLBody,
		Text:    msg.TextBody,
	}

	sent, err := p.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return nil, &providers.ProviderError{
			Provider: p.Name(),
			Code:     "send_error",
			Message:  "failed to send email: " + err.Error(),
			Cause:    err,
		}
	}

	messageID := sent.Id
	if messageID == "" {
		messageID = "unknown"
	}

	return &providers.Result{
		MessageID: messageID,
		Provider:  p.Name(),
		Timestamp: time.Now(),
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "resend"
}
