package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

var testLimits = Limits{
	Daily:             map[string]int{"mailersend": 80, "resend": 80},
	DefaultDaily:      100,
	MaxFailedAttempts: 3,
}

func newTestLedger() (*MemoryLedger, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 11, 11, 10, 0, 0, 0, time.UTC)}
	return NewMemoryLedger(testLimits, clock), clock
}

func TestDateKeyIsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	// 2025-11-12 01:30 in UTC+9 is still 2025-11-11 in UTC.
	local := time.Date(2025, 11, 12, 1, 30, 0, 0, loc)
	assert.Equal(t, "2025-11-11", DateKey(local))
}

func TestRecordSuccessCounts(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, ledger.RecordSuccess(ctx, "mailersend"))
	}

	rec, err := ledger.Today(ctx)
	require.NoError(t, err)
	counts := rec.Counts("mailersend")
	assert.Equal(t, int64(5), counts.Success)
	assert.Equal(t, int64(0), counts.ConsecutiveFailures)
	assert.Equal(t, int64(5), rec.TotalSuccess)
}

func TestRecordFailureExtendsStreak(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, ledger.RecordFailure(ctx, "resend"))
	}

	rec, err := ledger.Today(ctx)
	require.NoError(t, err)
	counts := rec.Counts("resend")
	assert.Equal(t, int64(4), counts.Failure)
	assert.Equal(t, int64(4), counts.ConsecutiveFailures)

	// A success resets the streak but never decrements the failure count.
	require.NoError(t, ledger.RecordSuccess(ctx, "resend"))
	rec, err = ledger.Today(ctx)
	require.NoError(t, err)
	counts = rec.Counts("resend")
	assert.Equal(t, int64(4), counts.Failure)
	assert.Equal(t, int64(0), counts.ConsecutiveFailures)
	assert.Equal(t, int64(1), counts.Success)
}

func TestTotalsMatchProviderSums(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()

	require.NoError(t, ledger.RecordSuccess(ctx, "mailersend"))
	require.NoError(t, ledger.RecordSuccess(ctx, "mailersend"))
	require.NoError(t, ledger.RecordSuccess(ctx, "resend"))
	require.NoError(t, ledger.RecordFailure(ctx, "mailersend"))
	require.NoError(t, ledger.RecordFailure(ctx, "resend"))
	require.NoError(t, ledger.RecordFailure(ctx, "resend"))

	rec, err := ledger.Today(ctx)
	require.NoError(t, err)
	ms, rs := rec.Counts("mailersend"), rec.Counts("resend")
	assert.Equal(t, ms.Success+rs.Success, rec.TotalSuccess)
	assert.Equal(t, ms.Failure+rs.Failure, rec.TotalFailure)
	assert.Equal(t, int64(3), rec.TotalSuccess)
	assert.Equal(t, int64(3), rec.TotalFailure)
}

func TestSendAllowedDailyLimit(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 11, 11, 23, 0, 0, 0, time.UTC)}
	limits := Limits{Daily: map[string]int{"mailersend": 2}, DefaultDaily: 100, MaxFailedAttempts: 3}
	ledger := NewMemoryLedger(limits, clock)
	ctx := context.Background()

	allowed, err := ledger.SendAllowed(ctx, "mailersend")
	require.NoError(t, err)
	assert.True(t, allowed)

	require.NoError(t, ledger.RecordSuccess(ctx, "mailersend"))
	require.NoError(t, ledger.RecordSuccess(ctx, "mailersend"))

	allowed, err = ledger.SendAllowed(ctx, "mailersend")
	require.NoError(t, err)
	assert.False(t, allowed, "at the cap the gate must deny for the rest of the day")

	// Crossing midnight UTC selects a fresh record and the gate opens again.
	clock.advance(2 * time.Hour)
	allowed, err = ledger.SendAllowed(ctx, "mailersend")
	require.NoError(t, err)
	assert.True(t, allowed)

	rec, err := ledger.Today(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-11-12", rec.Date)
	assert.Equal(t, int64(0), rec.Counts("mailersend").Success)
}

func TestCircuitOpensAtThreshold(t *testing.T) {
	ledger, clock := newTestLedger()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, ledger.RecordFailure(ctx, "mailersend"))
	}
	closed, err := ledger.CircuitClosed(ctx, "mailersend")
	require.NoError(t, err)
	assert.True(t, closed)

	require.NoError(t, ledger.RecordFailure(ctx, "mailersend"))
	closed, err = ledger.CircuitClosed(ctx, "mailersend")
	require.NoError(t, err)
	assert.False(t, closed)

	// The two gates are independent: the count limit is still open.
	allowed, err := ledger.SendAllowed(ctx, "mailersend")
	require.NoError(t, err)
	assert.True(t, allowed)

	// The circuit is day-scoped like everything else in the record.
	clock.advance(24 * time.Hour)
	closed, err = ledger.CircuitClosed(ctx, "mailersend")
	require.NoError(t, err)
	assert.True(t, closed)
}

func TestReportMissingDay(t *testing.T) {
	ledger, _ := newTestLedger()
	rec, err := ledger.Report(context.Background(), "1999-01-01")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestDailyLimitFallback(t *testing.T) {
	assert.Equal(t, 80, testLimits.DailyLimit("mailersend"))
	assert.Equal(t, 100, testLimits.DailyLimit("aws_ses"))
}

func TestSuccessUpdateDocument(t *testing.T) {
	update := successUpdate("mailersend")

	inc, ok := update["$inc"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, int64(1), inc["providers.mailersend.success"])
	assert.Equal(t, int64(1), inc["totalSuccess"])

	set, ok := update["$set"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, int64(0), set["providers.mailersend.consecutiveFailures"])
}

func TestFailureUpdateDocument(t *testing.T) {
	update := failureUpdate("resend")

	inc, ok := update["$inc"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, int64(1), inc["providers.resend.failure"])
	assert.Equal(t, int64(1), inc["providers.resend.consecutiveFailures"])
	assert.Equal(t, int64(1), inc["totalFailure"])
	_, hasSet := update["$set"]
	assert.False(t, hasSet, "failures must not touch the streak reset")
}
