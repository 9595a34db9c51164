package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hellouniversity/portal/internal/dispatch/providers"
)

// Governor implements the Dispatcher interface. It holds no persistent state
// of its own; all bookkeeping lives in the Ledger, so any number of governor
// instances across processes share limits and circuits.
type Governor struct {
	config    Config
	providers []Provider
	ledger    Ledger
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *Metrics
}

var _ Dispatcher = (*Governor)(nil)

// New creates a governor from the given configuration.
func New(config Config, ledger Ledger, opts ...Option) (*Governor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if ledger == nil {
		return nil, providers.NewValidationError("ledger", "quota ledger is required")
	}

	g := &Governor{
		config:  config,
		ledger:  ledger,
		logger:  slog.Default(),
		tracer:  otel.Tracer("github.com/hellouniversity/portal/internal/dispatch"),
		metrics: DefaultMetrics(),
	}

	for _, opt := range opts {
		opt(g)
	}

	// Build adapters from the config unless an option supplied them.
	if len(g.providers) == 0 {
		for _, spec := range config.Providers {
			provider, err := createProvider(spec.Type, spec.Settings)
			if err != nil {
				return nil, fmt.Errorf("failed to create %s provider: %w", spec.Type, err)
			}
			g.providers = append(g.providers, provider)
		}
	}
	if len(g.providers) == 0 {
		return nil, providers.NewValidationError("providers", "at least one provider is required")
	}

	return g, nil
}

// DispatchVerification sends a verification email, trying providers in
// priority order under the ledger gates. See the package documentation for
// the gate policy.
func (g *Governor) DispatchVerification(ctx context.Context, recipient, token string, useIdentityRotation bool) *Result {
	ctx, span := g.tracer.Start(ctx, "dispatch.Governor.DispatchVerification")
	defer span.End()

	span.SetAttributes(
		attribute.String("dispatch.to", recipient),
		attribute.Bool("dispatch.identity_rotation", useIdentityRotation),
	)

	// Content is built once and reused across every attempt.
	content, err := BuildVerificationContent(g.config.AppBaseURL, token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "content build failed")
		return &Result{Reason: err.Error()}
	}

	msg := &Message{
		From:     g.config.Sender,
		To:       Address{Email: recipient},
		Subject:  content.Subject,
		HTMLBody: content.HTMLBody,
		TextBody: content.TextBody,
	}
	if err := msg.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return &Result{Reason: err.Error()}
	}

	exhausted := &ExhaustedError{}

	for _, provider := range g.providers {
		name := provider.Name()

		for _, from := range g.identities(useIdentityRotation) {
			gateErr := g.checkGates(ctx, name)
			if gateErr != nil {
				exhausted.Attempts = append(exhausted.Attempts, gateErr)
				// Both gates are provider-scoped; more identities cannot
				// change the verdict.
				break
			}

			attempt := *msg
			attempt.From = from

			sent, err := g.send(ctx, provider, &attempt)
			if err != nil {
				g.metrics.IncFailed(name)
				g.logger.Warn("provider send failed",
					"provider", name, "from", from.Email, "error", err)
				g.recordFailure(ctx, name)
				exhausted.Attempts = append(exhausted.Attempts, err)
				continue
			}

			g.metrics.IncSent(name)
			g.recordSuccess(ctx, name)
			g.logger.Info("verification email sent",
				"provider", name, "from", from.Email, "message_id", sent.MessageID)

			span.SetAttributes(
				attribute.String("dispatch.provider", name),
				attribute.String("dispatch.message_id", sent.MessageID),
			)
			span.SetStatus(codes.Ok, "email sent")

			return &Result{Success: true, Provider: name, MessageID: sent.MessageID}
		}
	}

	g.logger.Error("all email services failed", "to", recipient, "attempts", len(exhausted.Attempts))
	span.RecordError(exhausted)
	span.SetStatus(codes.Error, "all providers exhausted")

	return &Result{Reason: ReasonAllFailed}
}

// send runs one adapter call under the configured per-attempt timeout, so a
// hung provider surfaces as a failed attempt instead of stalling the loop.
func (g *Governor) send(ctx context.Context, provider Provider, msg *Message) (*SendResult, error) {
	if g.config.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.SendTimeout)
		defer cancel()
	}
	return provider.Send(ctx, msg)
}

// checkGates evaluates the daily limit and the failure circuit for one
// provider. A non-nil return means the provider must be skipped; the
// specific gate outcome is wrapped in the error.
func (g *Governor) checkGates(ctx context.Context, name string) error {
	allowed, err := g.ledger.SendAllowed(ctx, name)
	if err != nil {
		// Fail closed: an unreachable ledger denies this provider only.
		g.metrics.IncGateDenied(name, "ledger_error")
		g.logger.Warn("quota gate unavailable, failing closed", "provider", name, "error", err)
		g.recordFailure(ctx, name)
		return fmt.Errorf("%s: %w", name, ErrLedgerUnavailable)
	}
	if !allowed {
		// A limit-exhausted attempt is itself a counted failure.
		g.metrics.IncGateDenied(name, "daily_limit")
		g.logger.Info("daily send limit reached", "provider", name)
		g.recordFailure(ctx, name)
		return fmt.Errorf("%s: %w", name, ErrDailyLimitExceeded)
	}

	closed, err := g.ledger.CircuitClosed(ctx, name)
	if err != nil {
		g.metrics.IncGateDenied(name, "ledger_error")
		g.logger.Warn("quota gate unavailable, failing closed", "provider", name, "error", err)
		g.recordFailure(ctx, name)
		return fmt.Errorf("%s: %w", name, ErrLedgerUnavailable)
	}
	if !closed {
		// The circuit is already open; counting the skip would hold it open.
		g.metrics.IncGateDenied(name, "circuit")
		g.logger.Info("failure circuit open, skipping provider", "provider", name)
		return fmt.Errorf("%s: %w", name, ErrCircuitOpen)
	}

	return nil
}

// identities returns the ordered candidate sender identities for a dispatch.
func (g *Governor) identities(rotate bool) []Address {
	if !rotate || len(g.config.RotationIdentities) == 0 {
		return []Address{g.config.Sender}
	}
	identities := make([]Address, 0, len(g.config.RotationIdentities))
	for _, email := range g.config.RotationIdentities {
		identities = append(identities, Address{Name: g.config.Sender.Name, Email: email})
	}
	return identities
}

func (g *Governor) recordSuccess(ctx context.Context, name string) {
	if err := g.ledger.RecordSuccess(ctx, name); err != nil {
		// The email is already out; a bookkeeping miss must not fail the dispatch.
		g.logger.Warn("failed to record send success", "provider", name, "error", err)
	}
}

func (g *Governor) recordFailure(ctx context.Context, name string) {
	if err := g.ledger.RecordFailure(ctx, name); err != nil {
		g.logger.Warn("failed to record send failure", "provider", name, "error", err)
	}
}
