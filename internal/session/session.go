// Package session mints and transforms anonymous session identities.
//
// A raw SessionID is a 128-bit cryptographically random secret minted once
// per client. It is never stored, logged, or sent anywhere in raw form: the
// one-way SHA-256 hash of it is the durable identity, and the base64 encoding
// of that hash is what travels in the session cookie.
package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/whodle/whodle/internal/errors"
)

// IDBytes is the size of a raw session identifier in bytes.
const IDBytes = 16

// EncodedLen is the length of a well-formed EncodedSessionID
// (32 digest bytes in unpadded base64url).
const EncodedLen = 43

// SessionID is the raw, high-entropy session secret. Opaque, never derived
// from user input, never exposed in transport or storage form.
type SessionID [IDBytes]byte

// HashedSessionID is the one-way transform of a SessionID. Its hex form is
// the storage partition key and the only identity form that may be logged.
type HashedSessionID [sha256.Size]byte

// EncodedSessionID is the transport-safe encoding of a HashedSessionID,
// suitable for embedding in a cookie value.
type EncodedSessionID string

// Mint produces a fresh cryptographically random SessionID. An entropy
// source failure is fatal for the request and reported as ENTROPY_FAILURE.
func Mint() (SessionID, error) {
	var id SessionID
	if _, err := rand.Read(id[:]); err != nil {
		return SessionID{}, errors.NewEntropyFailure(err)
	}
	return id, nil
}

// MintHashed mints a fresh identity and returns its hash in one step.
// The raw secret is discarded immediately; nothing downstream needs it.
func MintHashed() (HashedSessionID, error) {
	id, err := Mint()
	if err != nil {
		return HashedSessionID{}, err
	}
	return Hash(id), nil
}

// Hash derives the durable identity from a raw session secret. Deterministic
// and one-way; the same function backs every store key, so changing it
// orphans all existing ledgers.
func Hash(id SessionID) HashedSessionID {
	return sha256.Sum256(id[:])
}

// Hex returns the lowercase hex form of the hash, used as the storage
// partition key and in log fields.
func (h HashedSessionID) Hex() string {
	return hex.EncodeToString(h[:])
}

// String returns the hex form. Implements fmt.Stringer so log formatting
// never exposes anything but the hash.
func (h HashedSessionID) String() string {
	return h.Hex()
}

// Encode produces the transport form of a hashed identity: unpadded
// base64url, fixed charset, no special characters.
func Encode(h HashedSessionID) EncodedSessionID {
	return EncodedSessionID(base64.RawURLEncoding.EncodeToString(h[:]))
}

// Decode recovers the HashedSessionID that produced an EncodedSessionID.
// Malformed input yields an INVALID_SESSION error, which callers must treat
// as "no valid identity present" and answer by minting a new one.
func Decode(e EncodedSessionID) (HashedSessionID, error) {
	if len(e) != EncodedLen {
		return HashedSessionID{}, errors.NewInvalidSession(
			fmt.Sprintf("session token has length %d, want %d", len(e), EncodedLen))
	}
	raw, err := base64.RawURLEncoding.DecodeString(string(e))
	if err != nil {
		return HashedSessionID{}, errors.NewInvalidSession("session token is not valid base64url")
	}
	if len(raw) != sha256.Size {
		return HashedSessionID{}, errors.NewInvalidSession(
			fmt.Sprintf("session token decodes to %d bytes, want %d", len(raw), sha256.Size))
	}
	var h HashedSessionID
	copy(h[:], raw)
	return h, nil
}
