// Package smtp provides a plain SMTP adapter, used for local development
// against a capture server such as MailHog.
package smtp

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/hellouniversity/portal/internal/dispatch/providers"
)

// Provider implements the providers.Provider interface for SMTP.
type Provider struct {
	config providers.Settings
}

// NewProvider creates a new SMTP provider.
func NewProvider(settings providers.Settings) (providers.Provider, error) {
	host := settings.Get("host")
	if host == "" {
		return nil, providers.NewValidationError("host", "SMTP host is required")
	}

	port := settings.Get("port")
	if port == "" {
		return nil, providers.NewValidationError("port", "SMTP port is required")
	}
	if _, err := strconv.Atoi(port); err != nil {
		return nil, providers.NewValidationError("port", "invalid port number: "+port)
	}

	return &Provider{config: settings}, nil
}

// Send sends a single email over SMTP. The connection deadline is taken from
// ctx, so a server that stops answering mid-conversation surfaces as a send
// error instead of a hang.
func (p *Provider) Send(ctx context.Context, msg *providers.Message) (*providers.Result, error) {
	host := p.config.Get("host")
	addr := host + ":" + p.config.Get("port")

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, p.sendError("failed to connect to SMTP server: ", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, p.sendError("failed to set connection deadline: ", err)
		}
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return nil, p.sendError("failed to open SMTP session: ", err)
	}
	defer client.Close()

	if username := p.config.Get("username"); username != "" {
		auth := smtp.PlainAuth("", username, p.config.Get("password"), host)
		if err := client.Auth(auth); err != nil {
			return nil, p.sendError("SMTP authentication failed: ", err)
		}
	}

	if err := client.Mail(msg.From.Email); err != nil {
		return nil, p.sendError("MAIL FROM rejected: ", err)
	}
	if err := client.Rcpt(msg.To.Email); err != nil {
		return nil, p.sendError("RCPT TO rejected: ", err)
	}

	w, err := client.Data()
	if err != nil {
		return nil, p.sendError("DATA rejected: ", err)
	}
	if _, err := w.Write(buildMessage(msg)); err != nil {
		return nil, p.sendError("failed to write message body: ", err)
	}
	if err := w.Close(); err != nil {
		return nil, p.sendError("message not accepted: ", err)
	}
	_ = client.Quit()

	// SMTP doesn't return a message id; synthesize one.
	messageID := fmt.Sprintf("%d@%s", time.Now().UnixNano(), host)

	return &providers.Result{
		MessageID: messageID,
		Provider:  p.Name(),
		Timestamp: time.Now(),
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "smtp"
}

func (p *Provider) sendError(message string, err error) *providers.ProviderError {
	return &providers.ProviderError{
		Provider: p.Name(),
		Code:     "send_error",
		Message:  message + err.Error(),
		Cause:    err,
	}
}

// buildMessage builds the email message in RFC 5322 format.
func buildMessage(msg *providers.Message) []byte {
	var b strings.Builder

	b.WriteString("From: " + msg.From.String() + "\r\n")
	b.WriteString("To: " + msg.To.String() + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")

	if msg.HTMLBody != "" && msg.TextBody != "" {
		boundary := fmt.Sprintf("boundary_%d", time.Now().UnixNano())
		b.WriteString("Content-Type: multipart/alternative; boundary=" + boundary + "\r\n\r\n")

		b.WriteString("--" + boundary + "\r\n")
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.TextBody + "\r\n\r\n")

		b.WriteString("--" + boundary + "\r\n")
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.HTMLBody + "\r\n\r\n")

		b.WriteString("--" + boundary + "--\r\n")
	} else if msg.HTMLBody != "" {
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.HTMLBody + "\r\n")
	} else {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.TextBody + "\r\n")
	}

	return []byte(b.String())
}
