package dispatch

import (
	"context"

	"github.com/hellouniversity/portal/internal/dispatch/providers"
)

// Type aliases re-exporting the provider contract types, so callers wiring
// the governor deal with one package.
type (
	Provider      = providers.Provider
	Settings      = providers.Settings
	Address       = providers.Address
	Message       = providers.Message
	SendResult    = providers.Result
	ProviderError = providers.ProviderError
)

// Dispatcher is the outward interface of the governor.
// All methods are safe for concurrent use.
type Dispatcher interface {
	// DispatchVerification sends a verification email for the given token to
	// the recipient, trying providers in priority order under the ledger
	// gates. When useIdentityRotation is true, each provider is retried
	// across the configured alternate sender identities before falling
	// through to the next provider.
	//
	// The returned Result is always non-nil; failures of every kind are
	// folded into it rather than returned as errors.
	DispatchVerification(ctx context.Context, recipient, token string, useIdentityRotation bool) *Result
}

// Ledger is the durable daily quota store the governor gates on. Gate checks
// that fail with a storage error are treated as denials (fail closed) for
// that provider only.
type Ledger interface {
	// SendAllowed reports whether the provider is under its daily send cap.
	SendAllowed(ctx context.Context, provider string) (bool, error)

	// CircuitClosed reports whether the provider's consecutive-failure
	// streak is under the circuit threshold.
	CircuitClosed(ctx context.Context, provider string) (bool, error)

	// RecordSuccess counts an accepted send and resets the failure streak.
	RecordSuccess(ctx context.Context, provider string) error

	// RecordFailure counts a failed attempt and extends the failure streak.
	RecordFailure(ctx context.Context, provider string) error
}

// Result is the structured outcome of one dispatch operation.
type Result struct {
	// Success reports whether any provider accepted the email.
	Success bool `json:"success"`

	// Provider names the provider that accepted the email, when Success.
	Provider string `json:"provider,omitempty"`

	// MessageID is the provider-assigned id of the accepted email.
	MessageID string `json:"messageId,omitempty"`

	// Reason describes the aggregate failure, when !Success.
	Reason string `json:"reason,omitempty"`
}
