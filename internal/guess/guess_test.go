package guess

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/whodle/whodle/internal/errors"
	"github.com/whodle/whodle/internal/session"
)

func testHash(t *testing.T) session.HashedSessionID {
	t.Helper()
	h, err := session.MintHashed()
	if err != nil {
		t.Fatalf("MintHashed failed: %v", err)
	}
	return h
}

func TestDateOf(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	loc := time.FixedZone("EST", -5*3600)
	instant := time.Date(2024, 1, 1, 23, 30, 0, 0, loc)

	if got := DateOf(instant); got != Date("2024-01-02") {
		t.Errorf("DateOf = %q, want %q", got, "2024-01-02")
	}
}

func TestApplyGuess_FirstGuess(t *testing.T) {
	hash := testHash(t)

	merged, err := ApplyGuess(nil, hash, Date("2024-01-01"), "Alice", 8)
	if err != nil {
		t.Fatalf("ApplyGuess failed: %v", err)
	}

	if merged.SessionHash != hash {
		t.Error("merged record should carry the session hash")
	}
	if merged.Date != Date("2024-01-01") {
		t.Errorf("Date = %q, want 2024-01-01", merged.Date)
	}
	if !reflect.DeepEqual(merged.Guesses, []PersonaName{"Alice"}) {
		t.Errorf("Guesses = %v, want [Alice]", merged.Guesses)
	}
}

func TestApplyGuess_DuplicateLeavesLedgerUnchanged(t *testing.T) {
	hash := testHash(t)
	existing := DailyGuesses{
		SessionHash: hash,
		Date:        Date("2024-01-01"),
		Guesses:     []PersonaName{"Alice", "Bob"},
	}

	merged, err := ApplyGuess(&existing, hash, existing.Date, "Alice", 8)
	if err != nil {
		t.Fatalf("ApplyGuess failed: %v", err)
	}
	if !reflect.DeepEqual(merged.Guesses, []PersonaName{"Alice", "Bob"}) {
		t.Errorf("Guesses = %v, want [Alice Bob]", merged.Guesses)
	}
}

func TestApplyGuess_OrderPreserved(t *testing.T) {
	hash := testHash(t)
	date := Date("2024-01-01")

	var existing *DailyGuesses
	for _, g := range []PersonaName{"A", "B", "A", "C"} {
		merged, err := ApplyGuess(existing, hash, date, g, 8)
		if err != nil {
			t.Fatalf("ApplyGuess(%q) failed: %v", g, err)
		}
		existing = &merged
	}

	if !reflect.DeepEqual(existing.Guesses, []PersonaName{"A", "B", "C"}) {
		t.Errorf("Guesses = %v, want [A B C]", existing.Guesses)
	}
}

func TestApplyGuess_CapExceeded(t *testing.T) {
	hash := testHash(t)
	date := Date("2024-01-01")
	max := 3

	var existing *DailyGuesses
	for i := 0; i < max; i++ {
		merged, err := ApplyGuess(existing, hash, date, PersonaName(fmt.Sprintf("persona-%d", i)), max)
		if err != nil {
			t.Fatalf("guess %d should be under the cap: %v", i, err)
		}
		existing = &merged
	}

	_, err := ApplyGuess(existing, hash, date, "one-too-many", max)
	if err == nil {
		t.Fatal("guess past the cap should fail")
	}
	if !errors.Is(err, errors.ErrCapExceeded) {
		t.Errorf("error code = %v, want GUESS_CAP_EXCEEDED", err)
	}
	if len(existing.Guesses) != max {
		t.Errorf("existing ledger length = %d, want %d (rejection must not mutate)", len(existing.Guesses), max)
	}
}

func TestApplyGuess_DuplicateAtCapStillSucceeds(t *testing.T) {
	hash := testHash(t)
	existing := DailyGuesses{
		SessionHash: hash,
		Date:        Date("2024-01-01"),
		Guesses:     []PersonaName{"A", "B", "C"},
	}

	// Ledger is at the cap; resubmitting a present guess adds nothing and
	// must not be rejected.
	merged, err := ApplyGuess(&existing, hash, existing.Date, "B", 3)
	if err != nil {
		t.Fatalf("duplicate at cap should succeed: %v", err)
	}
	if len(merged.Guesses) != 3 {
		t.Errorf("Guesses length = %d, want 3", len(merged.Guesses))
	}
}

func TestApplyGuess_DoesNotAliasExisting(t *testing.T) {
	hash := testHash(t)
	existing := DailyGuesses{
		SessionHash: hash,
		Date:        Date("2024-01-01"),
		Guesses:     make([]PersonaName, 1, 4),
	}
	existing.Guesses[0] = "Alice"

	merged, err := ApplyGuess(&existing, hash, existing.Date, "Bob", 8)
	if err != nil {
		t.Fatalf("ApplyGuess failed: %v", err)
	}

	merged.Guesses[0] = "mutated"
	if existing.Guesses[0] != "Alice" {
		t.Error("merging must not share backing storage with the existing record")
	}
}

func TestApplyGuess_ZeroMaxUsesDefault(t *testing.T) {
	hash := testHash(t)

	merged, err := ApplyGuess(nil, hash, Date("2024-01-01"), "Alice", 0)
	if err != nil {
		t.Fatalf("ApplyGuess with max=0 should fall back to the default cap: %v", err)
	}
	if len(merged.Guesses) != 1 {
		t.Errorf("Guesses length = %d, want 1", len(merged.Guesses))
	}
}

func TestNames(t *testing.T) {
	d := DailyGuesses{Guesses: []PersonaName{"A", "B"}}
	if !reflect.DeepEqual(d.Names(), []string{"A", "B"}) {
		t.Errorf("Names = %v, want [A B]", d.Names())
	}

	var empty DailyGuesses
	if len(empty.Names()) != 0 {
		t.Errorf("Names of empty ledger = %v, want empty", empty.Names())
	}
}
