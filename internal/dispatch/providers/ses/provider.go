package ses

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/hellouniversity/portal/internal/dispatch/providers"
)

// Provider implements the providers.Provider interface for AWS SES.
type Provider struct {
	client *ses.Client
	config providers.Settings
}

// NewProvider creates a new AWS SES provider.
func NewProvider(settings providers.Settings) (providers.Provider, error) {
	region := settings.Get("region")
	if region == "" {
		return nil, providers.NewValidationError("region", "AWS region is required")
	}

	// Load AWS config
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, providers.NewProviderError("aws_ses", "config_error", "failed to load AWS config: "+err.Error())
	}

	// Override with explicit credentials if provided
	if accessKey := settings.Get("access_key"); accessKey != "" {
		secretKey := settings.Get("secret_key")
		if secretKey == "" {
			return nil, providers.NewValidationError("secret_key", "secret key is required when access key is provided")
		}

		cfg.Credentials = aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     accessKey,
				SecretAccessKey: secretKey,
				SessionToken:    settings.Get("session_token"),
			}, nil
		})
	}

	provider := &Provider{
		client: ses.NewFromConfig(cfg),
		config: settings,
	}

	return provider, nil
}

// Send sends a single email using AWS SES.
func (p *Provider) Send(ctx context.Context, msg *providers.Message) (*providers.Result, error) {
	input := &ses.SendEmailInput{
		Source: aws.String(msg.From.String()),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To.String()},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(msg.Subject),
			},
			Body: &types.Body{},
		},
	}

	if msg.TextBody != "" {
		input.Message.Body.Text = &types.Content{
			Data: aws.String(msg.TextBody),
		}
	}

	if msg.HTMLBody != "" {
		input.Message.Body.Html = &types.Content{
			Data: aws.String(msg.HTMLBody),
		}
	}

	// Add configuration set if specified
	if configSet := p.config.Get("configuration_set"); configSet != "" {
		input.ConfigurationSetName = aws.String(configSet)
	}

	output, err := p.client.SendEmail(ctx, input)
	if err != nil {
		return nil, &providers.ProviderError{
			Provider: p.Name(),
			Code:     "send_error",
			Message:  "failed to send email: " + err.Error(),
			Cause:    err,
		}
	}

	return &providers.Result{
		MessageID: aws.ToString(output.MessageId),
		Provider:  p.Name(),
		Timestamp: time.Now(),
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "aws_ses"
}
