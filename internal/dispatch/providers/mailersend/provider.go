package mailersend

import (
	"context"
	"time"

	"github.com/mailersend/mailersend-go"

	"github.com/hellouniversity/portal/internal/dispatch/providers"
)

// Provider implements the providers.Provider interface for MailerSend.
type Provider struct {
	client *mailersend.Mailersend
	config providers.Settings
}

// NewProvider creates a new MailerSend provider.
func NewProvider(settings providers.Settings) (providers.Provider, error) {
	apiKey := settings.Get("api_key")
	if apiKey == "" {
		return nil, providers.NewValidationError("api_key", "MailerSend API key is required")
	}

	provider := &Provider{
		client: mailersend.NewMailersend(apiKey),
		config: settings,
	}

	return provider, nil
}

// Send sends a single email using the MailerSend API.
func (p *Provider) Send(ctx context.Context, msg *providers.Message) (*providers.Result, error) {
	message := p.client.Email.NewMessage()
	message.SetFrom(mailersend.From{
		Name:  msg.From.Name,
		Email: msg.From.Email,
	})
	message.SetRecipients([]mailersend.Recipient{{
		Name:  msg.To.Name,
		Email: msg.To.Email,
	}})
	message.SetSubject(msg.Subject)
	message.SetHTML(msg.HTMLBody)
	message.SetText(msg.TextBody)

	res, err := p.client.Email.Send(ctx, message)
	if err != nil {
		return nil, &providers.ProviderError{
			Provider: p.Name(),
			Code:     "send_error",
			Message:  "failed to send email: " + err.Error(),
			Cause:    err,
		}
	}

	if res.StatusCode >= 400 {
		return nil, &providers.ProviderError{
			Provider:   p.Name(),
			Code:       "api_error",
			Message:    "MailerSend API error: " + res.Status,
			StatusCode: res.StatusCode,
		}
	}

	// MailerSend reports the accepted message id in a response header.
	messageID := res.Header.Get("X-Message-Id")
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
	return "mailersend"
}
