package quota

import (
	"context"
	"sync"
)

// MemoryLedger is an in-process ledger used by tests and Mongo-less
// development runs. It is not durable and must not back a production
// deployment with more than one process.
type MemoryLedger struct {
	limits Limits
	clock  Clock

	mu      sync.Mutex
	records map[string]*Record
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger(limits Limits, clock Clock) *MemoryLedger {
	if clock == nil {
		clock = SystemClock{}
	}
	return &MemoryLedger{
		limits:  limits,
		clock:   clock,
		records: make(map[string]*Record),
	}
}

// Today returns today's record, creating it on first access.
func (l *MemoryLedger) Today(ctx context.Context) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.todayLocked(), nil
}

// Report returns the record for a specific date, or nil when the day has no
// record.
func (l *MemoryLedger) Report(ctx context.Context, date string) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[date]
	if !ok {
		return nil, nil
	}
	cp := *rec
	cp.Providers = make(map[string]Counts, len(rec.Providers))
	for name, counts := range rec.Providers {
		cp.Providers[name] = counts
	}
	return &cp, nil
}

// SendAllowed reports whether the provider is under its daily cap today.
func (l *MemoryLedger) SendAllowed(ctx context.Context, provider string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.todayLocked()
	return rec.Counts(provider).Success < int64(l.limits.DailyLimit(provider)), nil
}

// CircuitClosed reports whether the provider's failure streak is under the
// circuit threshold today.
func (l *MemoryLedger) CircuitClosed(ctx context.Context, provider string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.todayLocked()
	return rec.Counts(provider).ConsecutiveFailures < int64(l.limits.MaxFailedAttempts), nil
}

// RecordSuccess counts a successful send and resets the failure streak.
func (l *MemoryLedger) RecordSuccess(ctx context.Context, provider string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.todayLocked()
	counts := rec.Providers[provider]
	counts.Success++
	counts.ConsecutiveFailures = 0
	rec.Providers[provider] = counts
	rec.TotalSuccess++
	return nil
}

// RecordFailure counts a failed attempt and extends the failure streak.
func (l *MemoryLedger) RecordFailure(ctx context.Context, provider string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.todayLocked()
	counts := rec.Providers[provider]
	counts.Failure++
	counts.ConsecutiveFailures++
	rec.Providers[provider] = counts
	rec.TotalFailure++
	return nil
}

func (l *MemoryLedger) todayLocked() *Record {
	key := DateKey(l.clock.Now())
	rec, ok := l.records[key]
	if !ok {
		rec = newRecord(key)
		l.records[key] = rec
	}
	return rec
}
