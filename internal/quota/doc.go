// Package quota implements the durable daily email quota ledger.
//
// The ledger keeps one record per calendar day, counting per-provider
// successful and failed sends plus a consecutive-failure streak. Two gate
// predicates are derived from the record: a daily send cap and a failure
// circuit. Records are keyed by UTC date, so limits and circuits reset
// naturally at midnight UTC without any background timers — a new day simply
// selects a new record.
//
// The Mongo implementation performs every mutation as a single atomic upsert
// ($inc/$set in one update document), so concurrent processes never lose
// increments and derived totals stay consistent with the per-provider counts.
package quota
