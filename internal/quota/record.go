package quota

import "time"

// dateLayout is the record key format. Ledger days are calendar days in UTC.
const dateLayout = "2006-01-02"

// DateKey returns the ledger key ("YYYY-MM-DD", UTC) for the given instant.
func DateKey(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// Counts holds the per-provider counters for one day.
type Counts struct {
	// Success is the number of accepted sends. Monotonic within a day.
	Success int64 `bson:"success" json:"success"`

	// Failure is the number of failed attempts, including attempts denied by
	// the daily limit. Monotonic within a day.
	Failure int64 `bson:"failure" json:"failure"`

	// ConsecutiveFailures is the current failure streak. It increments with
	// every failure and resets to zero on any success.
	ConsecutiveFailures int64 `bson:"consecutiveFailures" json:"consecutiveFailures"`
}

// Record is one day's quota document.
type Record struct {
	// Date is the immutable record key, DateKey-formatted.
	Date string `bson:"_id" json:"date"`

	// Providers maps provider name to its counters. Providers the day has not
	// touched are simply absent and read as zero.
	Providers map[string]Counts `bson:"providers" json:"providers"`

	// TotalSuccess and TotalFailure are maintained in the same atomic update
	// as the per-provider counters, so they always equal the respective sums.
	TotalSuccess int64 `bson:"totalSuccess" json:"totalSuccess"`
	TotalFailure int64 `bson:"totalFailure" json:"totalFailure"`
}

// Counts returns the counters for a provider, zero-valued when absent.
func (r *Record) Counts(provider string) Counts {
	if r == nil || r.Providers == nil {
		return Counts{}
	}
	return r.Providers[provider]
}

func newRecord(date string) *Record {
	return &Record{Date: date, Providers: make(map[string]Counts)}
}

// Limits holds the gate thresholds the ledger evaluates.
type Limits struct {
	// Daily maps provider name to its daily successful-send cap.
	Daily map[string]int

	// DefaultDaily applies to providers absent from Daily.
	DefaultDaily int

	// MaxFailedAttempts is the consecutive-failure count at which a
	// provider's circuit opens for the rest of the day.
	MaxFailedAttempts int
}

// DailyLimit returns the cap for a provider.
func (l Limits) DailyLimit(provider string) int {
	if limit, ok := l.Daily[provider]; ok {
		return limit
	}
	return l.DefaultDaily
}
