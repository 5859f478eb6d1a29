package store

import (
	"context"
	"sync"

	"github.com/whodle/whodle/internal/errors"
	"github.com/whodle/whodle/internal/guess"
	"github.com/whodle/whodle/internal/session"
)

// MemoryStore is a map-backed Store for tests and local development.
// Records are copied in and out, so callers never share backing slices with
// the store.
type MemoryStore struct {
	mu sync.RWMutex
	// partition hex -> sort key -> record
	records map[string]map[string]guess.DailyGuesses
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]map[string]guess.DailyGuesses),
	}
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, hash session.HashedSessionID, date guess.Date) (*guess.DailyGuesses, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewStoreUnavailable(err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	partition, ok := m.records[hash.Hex()]
	if !ok {
		return nil, nil
	}
	rec, ok := partition[SortKey(date)]
	if !ok {
		return nil, nil
	}
	out := copyRecord(rec)
	return &out, nil
}

// QueryAll implements Store.
func (m *MemoryStore) QueryAll(ctx context.Context, hash session.HashedSessionID) ([]guess.DailyGuesses, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewStoreUnavailable(err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	partition := m.records[hash.Hex()]
	out := make([]guess.DailyGuesses, 0, len(partition))
	for _, rec := range partition {
		out = append(out, copyRecord(rec))
	}
	return out, nil
}

// Put implements Store.
func (m *MemoryStore) Put(ctx context.Context, d guess.DailyGuesses) error {
	if err := ctx.Err(); err != nil {
		return errors.NewStoreUnavailable(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	partition, ok := m.records[d.SessionHash.Hex()]
	if !ok {
		partition = make(map[string]guess.DailyGuesses)
		m.records[d.SessionHash.Hex()] = partition
	}
	partition[SortKey(d.Date)] = copyRecord(d)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}

func copyRecord(d guess.DailyGuesses) guess.DailyGuesses {
	out := d
	out.Guesses = make([]guess.PersonaName, len(d.Guesses))
	copy(out.Guesses, d.Guesses)
	return out
}
