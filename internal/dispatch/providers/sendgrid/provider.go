package sendgrid

import (
	"context"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/hellouniversity/portal/internal/dispatch/providers"
)

// Provider implements the providers.Provider interface for SendGrid.
type Provider struct {
	client *sendgrid.Client
	config providers.Settings
}

// NewProvider creates a new SendGrid provider.
func NewProvider(settings providers.Settings) (providers.Provider, error) {
	apiKey := settings.Get("api_key")
	if apiKey == "" {
		return nil, providers.NewValidationError("api_key", "SendGrid API key is required")
	}

	provider := &Provider{
		client: sendgrid.NewSendClient(apiKey),
		config: settings,
	}

	return provider, nil
}

// Send sends a single email using SendGrid.
func (p *Provider) Send(ctx context.Context, msg *providers.Message) (*providers.Result, error) {
	from := mail.NewEmail(msg.From.Name, msg.From.Email)
	to := mail.NewEmail(msg.To.Name, msg.To.Email)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.TextBody, msg.HTMLBody)

	response, err := p.client.SendWithContext(ctx, message)
	if err != nil {
		return nil, &providers.ProviderError{
			Provider: p.Name(),
			Code:     "send_error",
			Message:  "failed to send email: " + err.Error(),
			Cause:    err,
		}
	}

	if response.StatusCode >= 400 {
		return nil, &providers.ProviderError{
			Provider:   p.Name(),
			Code:       "api_error",
			Message:    "SendGrid API error: " + response.Body,
			StatusCode: response.StatusCode,
		}
	}

	// Extract message ID from headers (SendGrid provides X-Message-Id)
	messageID := response.Headers["X-Message-Id"]
	if len(messageID) == 0 {
		messageID = []string{"unknown"}
	}

	return &providers.Result{
		MessageID: messageID[0],
		Provider:  p.Name(),
		Timestamp: time.Now(),
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "sendgrid"
}
