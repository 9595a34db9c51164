// Package providers defines the uniform contract email provider adapters
// implement, plus the shared message and error types. Adapters translate one
// provider's transport call into a normalized outcome: a *Result on success,
// a *ProviderError on any transport fault, non-2xx response, or
// provider-reported error. Adapters never retry; fallback policy lives in the
// dispatch governor.
package providers

import (
	"context"
	"mime"
	"net/mail"
	"time"
)

// Provider defines the interface for email service providers.
type Provider interface {
	// Send sends a single email using the provider's API.
	Send(ctx context.Context, msg *Message) (*Result, error)

	// Name returns the provider's name for identification, gating, and
	// ledger bookkeeping.
	Name() string
}

// Settings represents configuration settings for email providers.
type Settings map[string]string

// Get retrieves a configuration value by key.
func (s Settings) Get(key string) string {
	return s[key]
}

// Set sets a configuration value.
func (s Settings) Set(key, value string) {
	s[key] = value
}

// Address represents an email address with optional display name.
type Address struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// String returns the formatted email address.
// If Name is provided, returns "Name <email@domain.com>",
// otherwise just "email@domain.com".
func (a Address) String() string {
	if a.Name != "" {
		return mime.QEncoding.Encode("UTF-8", a.Name) + " <" + a.Email + ">"
	}
	return a.Email
}

// Valid checks if the address has a valid email format.
func (a Address) Valid() bool {
	if a.Email == "" {
		return false
	}
	_, err := mail.ParseAddress(a.String())
	return err == nil
}

// Message is a single transactional email to one recipient. The content is
// built once per dispatch and reused across provider and identity attempts;
// only From changes under identity rotation.
type Message struct {
	From     Address `json:"from"`
	To       Address `json:"to"`
	Subject  string  `json:"subject"`
	HTMLBody string  `json:"html_body"`
	TextBody string  `json:"text_body"`
}

// Validate checks if the message has valid structure and required fields.
func (m *Message) Validate() error {
	if !m.From.Valid() {
		return NewValidationError("from", "invalid or missing sender address")
	}
	if !m.To.Valid() {
		return NewValidationError("to", "invalid or missing recipient address")
	}
	if m.Subject == "" {
		return NewValidationError("subject", "subject is required")
	}
	if m.HTMLBody == "" && m.TextBody == "" {
		return NewValidationError("body", "either text or HTML body is required")
	}
	return nil
}

// Result contains the outcome of a successfully accepted send.
type Result struct {
	// MessageID is the unique identifier assigned by the provider.
	MessageID string

	// Provider is the name of the provider that sent the email.
	Provider string

	// Timestamp when the email was accepted by the provider.
	Timestamp time.Time
}
