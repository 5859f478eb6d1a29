// Package store persists daily guess ledgers in a key-value store under
// composite keys: partition = hashed session id (hex), sort = "GUESS#" plus
// the calendar day. Point lookups hit one (partition, sort) pair; a session's
// full history is a prefix scan over its partition.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/whodle/whodle/internal/guess"
	"github.com/whodle/whodle/internal/session"
)

// SortKeyPrefix prefixes every day-scoped sort key. The prefix makes the
// whole guess history of a partition addressable as a single key range.
const SortKeyPrefix = "GUESS#"

// Store is the persistence interface for daily guess ledgers.
//
// Absence is not an error: Get returns (nil, nil) when no record exists for
// the key. Backend failures surface as STORE_UNAVAILABLE and are never
// conflated with absence. Put is an idempotent full-record overwrite, so
// external retries of a failed write are safe.
type Store interface {
	// Get returns the ledger for one session and day, or nil if none exists.
	Get(ctx context.Context, hash session.HashedSessionID, date guess.Date) (*guess.DailyGuesses, error)

	// QueryAll returns every day's ledger recorded for a session, in no
	// guaranteed order.
	QueryAll(ctx context.Context, hash session.HashedSessionID) ([]guess.DailyGuesses, error)

	// Put overwrites the record at the ledger's (session, day) key.
	Put(ctx context.Context, d guess.DailyGuesses) error

	// Close releases backend resources.
	Close() error
}

// SortKey builds the day-scoped sort key for a date.
func SortKey(d guess.Date) string {
	return SortKeyPrefix + string(d)
}

// ParseSortKey recovers the date from a sort key produced by SortKey.
func ParseSortKey(key string) (guess.Date, error) {
	if !strings.HasPrefix(key, SortKeyPrefix) {
		return "", fmt.Errorf("sort key %q lacks prefix %q", key, SortKeyPrefix)
	}
	return guess.Date(strings.TrimPrefix(key, SortKeyPrefix)), nil
}
