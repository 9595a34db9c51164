package quota

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the Mongo collection holding daily quota documents.
const CollectionName = "emailQuota"

// MongoLedger is the durable ledger implementation. One document per UTC
// calendar day; every mutation is a single atomic upsert, so concurrent
// requests and processes never lose increments.
type MongoLedger struct {
	coll   *mongo.Collection
	limits Limits
	clock  Clock
}

// NewMongoLedger creates a ledger over the given database.
func NewMongoLedger(db *mongo.Database, limits Limits, clock Clock) *MongoLedger {
	if clock == nil {
		clock = SystemClock{}
	}
	return &MongoLedger{
		coll:   db.Collection(CollectionName),
		limits: limits,
		clock:  clock,
	}
}

// Today returns today's record, creating it on first access. The upsert with
// $setOnInsert makes concurrent first accesses of a new day converge on one
// document instead of racing into a duplicate-key error.
func (l *MongoLedger) Today(ctx context.Context) (*Record, error) {
	key := DateKey(l.clock.Now())

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var rec Record
	err := l.coll.FindOneAndUpdate(ctx, bson.M{"_id": key}, initUpdate(), opts).Decode(&rec)
	if err != nil {
		return nil, fmt.Errorf("quota: fetch-or-create record %s: %w", key, err)
	}
	return &rec, nil
}

// Report returns the record for a specific date, or nil when the day has no
// record.
func (l *MongoLedger) Report(ctx context.Context, date string) (*Record, error) {
	var rec Record
	err := l.coll.FindOne(ctx, bson.M{"_id": date}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("quota: fetch record %s: %w", date, err)
	}
	return &rec, nil
}

// SendAllowed reports whether the provider is under its daily cap today.
func (l *MongoLedger) SendAllowed(ctx context.Context, provider string) (bool, error) {
	rec, err := l.today(ctx)
	if err != nil {
		return false, err
	}
	return rec.Counts(provider).Success < int64(l.limits.DailyLimit(provider)), nil
}

// CircuitClosed reports whether the provider's failure streak is under the
// circuit threshold today.
func (l *MongoLedger) CircuitClosed(ctx context.Context, provider string) (bool, error) {
	rec, err := l.today(ctx)
	if err != nil {
		return false, err
	}
	return rec.Counts(provider).ConsecutiveFailures < int64(l.limits.MaxFailedAttempts), nil
}

// RecordSuccess counts a successful send and resets the failure streak.
func (l *MongoLedger) RecordSuccess(ctx context.Context, provider string) error {
	key := DateKey(l.clock.Now())
	_, err := l.coll.UpdateOne(ctx, bson.M{"_id": key}, successUpdate(provider),
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("quota: record success for %s: %w", provider, err)
	}
	return nil
}

// RecordFailure counts a failed attempt and extends the failure streak.
func (l *MongoLedger) RecordFailure(ctx context.Context, provider string) error {
	key := DateKey(l.clock.Now())
	_, err := l.coll.UpdateOne(ctx, bson.M{"_id": key}, failureUpdate(provider),
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("quota: record failure for %s: %w", provider, err)
	}
	return nil
}

// today reads today's record without forcing a write; a missing document
// reads as all-zero counts.
func (l *MongoLedger) today(ctx context.Context) (*Record, error) {
	key := DateKey(l.clock.Now())
	var rec Record
	err := l.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return newRecord(key), nil
	}
	if err != nil {
		return nil, fmt.Errorf("quota: fetch record %s: %w", key, err)
	}
	return &rec, nil
}

// initUpdate is the fetch-or-create update document.
func initUpdate() bson.M {
	return bson.M{"$setOnInsert": bson.M{
		"totalSuccess": int64(0),
		"totalFailure": int64(0),
	}}
}

// successUpdate increments the provider's success count and the derived
// total, and resets the failure streak, all in one document update.
func successUpdate(provider string) bson.M {
	return bson.M{
		"$inc": bson.M{
			"providers." + provider + ".success": int64(1),
			"totalSuccess":                       int64(1),
		},
		"$set": bson.M{
			"providers." + provider + ".consecutiveFailures": int64(0),
		},
	}
}

// failureUpdate increments the provider's failure count, its streak, and the
// derived total in one document update.
func failureUpdate(provider string) bson.M {
	return bson.M{
		"$inc": bson.M{
			"providers." + provider + ".failure":             int64(1),
			"providers." + provider + ".consecutiveFailures": int64(1),
			"totalFailure":                                   int64(1),
		},
	}
}
