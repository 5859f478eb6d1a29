// Package service orchestrates the guess flow: resolve or mint the caller's
// identity, fetch today's ledger, merge the new guess, enforce the cap, and
// persist the merged record.
package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/whodle/whodle/internal/errors"
	"github.com/whodle/whodle/internal/guess"
	"github.com/whodle/whodle/internal/session"
	"github.com/whodle/whodle/internal/store"
)

// DefaultStoreTimeout bounds every store call made by the service so a
// hung backend surfaces as STORE_UNAVAILABLE instead of blocking forever.
const DefaultStoreTimeout = 5 * time.Second

// TodayFunc supplies the current instant. Injected rather than read from the
// wall clock so day-rollover behavior is deterministic in tests.
type TodayFunc func() time.Time

// Service is the guess-tracking core. It holds no mutable state between
// requests; the store is the single source of truth.
type Service struct {
	store        store.Store
	log          *logrus.Logger
	maxGuesses   int
	today        TodayFunc
	storeTimeout time.Duration
}

// GuessList is the read-path result: the guesses recorded today plus,
// when a fresh identity was minted for this request, the token the
// transport layer must issue to the client.
type GuessList struct {
	IssueToken *session.EncodedSessionID
	Guesses    []guess.PersonaName
}

// RecordResult is the write-path result. IssueToken is set only when the
// identity was minted during this call; a client holding a valid token gets
// nothing to re-issue.
type RecordResult struct {
	IssueToken *session.EncodedSessionID
}

// History is the cross-day result: every recorded day for the session.
type History struct {
	IssueToken *session.EncodedSessionID
	Days       []guess.DailyGuesses
}

// New constructs a Service. today must not be nil; maxGuesses <= 0 falls
// back to the default cap, nil logger to a default logger, zero timeout to
// DefaultStoreTimeout.
func New(st store.Store, log *logrus.Logger, maxGuesses int, today TodayFunc, storeTimeout time.Duration) *Service {
	if log == nil {
		log = logrus.New()
	}
	if maxGuesses <= 0 {
		maxGuesses = guess.DefaultMaxDailyGuesses
	}
	if storeTimeout <= 0 {
		storeTimeout = DefaultStoreTimeout
	}
	return &Service{
		store:        st,
		log:          log,
		maxGuesses:   maxGuesses,
		today:        today,
		storeTimeout: storeTimeout,
	}
}

// MaxGuesses returns the configured daily cap.
func (s *Service) MaxGuesses() int {
	return s.maxGuesses
}

// Today returns the current calendar day from the injected clock.
func (s *Service) Today() guess.Date {
	return guess.DateOf(s.today())
}

// CurrentGuesses returns the guesses the caller has made today. A missing or
// malformed token mints a fresh identity and returns it for issuance with an
// empty list; a read alone never writes to the store.
func (s *Service) CurrentGuesses(ctx context.Context, token *session.EncodedSessionID) (*GuessList, error) {
	hash, minted, err := s.resolveIdentity(token)
	if err != nil {
		return nil, err
	}

	if minted {
		return &GuessList{
			IssueToken: issueFor(hash),
			Guesses:    []guess.PersonaName{},
		}, nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	rec, err := s.store.Get(storeCtx, hash, s.Today())
	if err != nil {
		return nil, err
	}

	guesses := []guess.PersonaName{}
	if rec != nil {
		guesses = rec.Guesses
	}
	return &GuessList{Guesses: guesses}, nil
}

// RecordGuess merges one guess into the caller's ledger for today and
// persists the result. CapExceeded propagates without a write. The missing
// and malformed token cases mint exactly as the read path does.
func (s *Service) RecordGuess(ctx context.Context, token *session.EncodedSessionID, g guess.PersonaName) (*RecordResult, error) {
	if g == "" {
		return nil, errors.NewInvalidRequest("guess must not be empty")
	}

	hash, minted, err := s.resolveIdentity(token)
	if err != nil {
		return nil, err
	}

	today := s.Today()

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	var existing *guess.DailyGuesses
	if !minted {
		existing, err = s.store.Get(storeCtx, hash, today)
		if err != nil {
			return nil, err
		}
	}

	merged, err := guess.ApplyGuess(existing, hash, today, g, s.maxGuesses)
	if err != nil {
		return nil, err
	}

	if err := s.store.Put(storeCtx, merged); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"session": hash.Hex(),
		"date":    today,
		"guesses": len(merged.Guesses),
	}).Debug("recorded guess")

	if minted {
		return &RecordResult{IssueToken: issueFor(hash)}, nil
	}
	return &RecordResult{}, nil
}

// GuessHistory returns every recorded day for the caller's session. With no
// valid identity there is nothing to look up: a fresh token is issued
// alongside an empty history.
func (s *Service) GuessHistory(ctx context.Context, token *session.EncodedSessionID) (*History, error) {
	hash, minted, err := s.resolveIdentity(token)
	if err != nil {
		return nil, err
	}

	if minted {
		return &History{IssueToken: issueFor(hash), Days: []guess.DailyGuesses{}}, nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	days, err := s.store.QueryAll(storeCtx, hash)
	if err != nil {
		return nil, err
	}
	if days == nil {
		days = []guess.DailyGuesses{}
	}
	return &History{Days: days}, nil
}

// resolveIdentity decodes the supplied token or mints a fresh identity when
// the token is absent or malformed. Decode failure is recovered here and
// never escapes; only an entropy failure propagates.
func (s *Service) resolveIdentity(token *session.EncodedSessionID) (session.HashedSessionID, bool, error) {
	if token != nil && *token != "" {
		hash, err := session.Decode(*token)
		if err == nil {
			return hash, false, nil
		}
		s.log.WithField("reason", err.Error()).Info("discarding malformed session token")
	}

	hash, err := session.MintHashed()
	if err != nil {
		return session.HashedSessionID{}, false, err
	}
	s.log.WithField("session", hash.Hex()).Info("minted new session")
	return hash, true, nil
}

func issueFor(hash session.HashedSessionID) *session.EncodedSessionID {
	enc := session.Encode(hash)
	return &enc
}
