package dispatch

import (
	"errors"
	"fmt"
)

// ReasonAllFailed is the aggregate reason reported when every provider and
// identity has been exhausted without an accepted send.
const ReasonAllFailed = "All email services failed"

// Predefined sentinel errors for gate outcomes.
var (
	// ErrDailyLimitExceeded indicates a provider is at its daily send cap.
	// A limit denial is recorded against the provider as a failed attempt.
	ErrDailyLimitExceeded = errors.New("daily send limit exceeded")

	// ErrCircuitOpen indicates a provider's consecutive-failure circuit is
	// open. Circuit skips are not additionally counted.
	ErrCircuitOpen = errors.New("failure circuit open")

	// ErrLedgerUnavailable indicates a gate check could not reach the quota
	// ledger. Treated the same as a limit denial: fail closed for that
	// provider only.
	ErrLedgerUnavailable = errors.New("quota ledger unavailable")
)

// ExhaustedError aggregates the per-attempt errors of a fully failed
// dispatch. It never escapes the governor; it exists for logging and for the
// Reason carried by the Result.
type ExhaustedError struct {
	// Attempts holds the error of every attempt, in trial order.
	Attempts []error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s (%d attempts)", ReasonAllFailed, len(e.Attempts))
}

// Unwrap returns the attempt errors for errors.Is/errors.As traversal.
func (e *ExhaustedError) Unwrap() []error {
	return e.Attempts
}
