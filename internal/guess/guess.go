// Package guess holds the daily guess ledger: the value type for one
// session's guesses on one calendar day, and the pure merge logic that
// applies a new guess to it. No I/O happens here.
package guess

import (
	"time"

	"github.com/whodle/whodle/internal/errors"
	"github.com/whodle/whodle/internal/session"
)

// DefaultMaxDailyGuesses is the per-session per-day cap applied when no
// explicit cap is configured.
const DefaultMaxDailyGuesses = 8

// PersonaName identifies the answer of the day or a guessed candidate.
// Opaque, compared by exact equality only.
type PersonaName string

// Date is a calendar day in canonical YYYY-MM-DD form. All day-scoping in
// the ledger and store keys uses this form.
type Date string

// DateOf returns the canonical Date for an instant, in UTC.
func DateOf(t time.Time) Date {
	return Date(t.UTC().Format("2006-01-02"))
}

// DailyGuesses is one session's guess ledger for one calendar day.
// Values are immutable snapshots: an update constructs a new value, and the
// store replaces records wholesale on write.
type DailyGuesses struct {
	// SessionHash is the hashed session identity this ledger belongs to.
	SessionHash session.HashedSessionID

	// Date is fixed at creation. A guess on a later day creates a new
	// record; it never mutates an old one.
	Date Date

	// Guesses holds distinct persona names in first-seen order.
	Guesses []PersonaName
}

// Contains reports whether g has already been recorded.
func (d DailyGuesses) Contains(g PersonaName) bool {
	for _, have := range d.Guesses {
		if have == g {
			return true
		}
	}
	return false
}

// Names returns the guesses as plain strings, in recorded order.
func (d DailyGuesses) Names() []string {
	out := make([]string, len(d.Guesses))
	for i, g := range d.Guesses {
		out[i] = string(g)
	}
	return out
}

// ApplyGuess merges a new guess into an existing ledger, or starts a fresh
// one when existing is nil. The result is a new value; existing is never
// modified.
//
// Merge rules:
//   - a guess already present leaves the ledger unchanged (first occurrence
//     keeps its position, duplicates add nothing)
//   - a new guess is appended at the end
//   - a merged length above max yields GUESS_CAP_EXCEEDED and no result;
//     duplicates of present guesses can never trip the cap
func ApplyGuess(existing *DailyGuesses, hash session.HashedSessionID, date Date, g PersonaName, max int) (DailyGuesses, error) {
	if max <= 0 {
		max = DefaultMaxDailyGuesses
	}

	if existing == nil {
		return DailyGuesses{
			SessionHash: hash,
			Date:        date,
			Guesses:     []PersonaName{g},
		}, nil
	}

	if existing.Contains(g) {
		return existing.clone(), nil
	}

	if len(existing.Guesses)+1 > max {
		return DailyGuesses{}, errors.NewCapExceeded(max)
	}

	merged := existing.clone()
	merged.Guesses = append(merged.Guesses, g)
	return merged, nil
}

// clone copies the value deeply enough that the caller can append to
// Guesses without aliasing the original's backing array.
func (d DailyGuesses) clone() DailyGuesses {
	out := d
	out.Guesses = make([]PersonaName, len(d.Guesses))
	copy(out.Guesses, d.Guesses)
	return out
}
