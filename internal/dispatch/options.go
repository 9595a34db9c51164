package dispatch

import (
	"log/slog"
)

// Option is a functional option for configuring the governor.
type Option func(*Governor)

// WithLogger sets the structured logger used for per-attempt logging.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Governor) {
		g.logger = logger
	}
}

// WithProviders overrides the provider list built from the configuration.
// Used by tests and by callers that construct adapters themselves.
func WithProviders(providers ...Provider) Option {
	return func(g *Governor) {
		g.providers = providers
	}
}
