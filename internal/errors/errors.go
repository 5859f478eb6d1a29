package errors

import "fmt"

// ErrorCode represents a whodle error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"    // 400
	ErrInvalidSession   ErrorCode = "INVALID_SESSION"    // 400, recovered locally by minting a fresh identity
	ErrNotFound         ErrorCode = "NOT_FOUND"          // 404
	ErrCapExceeded      ErrorCode = "GUESS_CAP_EXCEEDED" // 429, terminal for the request, never retried
	ErrInternal         ErrorCode = "INTERNAL"           // 500
	ErrEntropyFailure   ErrorCode = "ENTROPY_FAILURE"    // 500, secure randomness unavailable
	ErrStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"  // 503, transient, safe to retry externally
)

// GameError represents a structured error with code, status, and details.
type GameError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *GameError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *GameError {
	return &GameError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidSession creates a 400 error for a session token that fails to
// decode. Callers treat this as "no identity present" and mint a fresh one;
// it is never surfaced to the client as a failure.
func NewInvalidSession(msg string) *GameError {
	return &GameError{
		Code:    ErrInvalidSession,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing persona or resource.
func NewNotFound(identifier string) *GameError {
	return &GameError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewCapExceeded creates a 429 error for a guess that would push a session
// past its daily cap. This is a business-rule rejection, not a system fault.
func NewCapExceeded(max int) *GameError {
	return &GameError{
		Code:    ErrCapExceeded,
		Status:  429,
		Message: fmt.Sprintf("daily guess cap reached: %d", max),
		Details: map[string]any{"max_daily_guesses": max},
	}
}

// NewEntropyFailure creates a 500 error for a failed secure-randomness read.
// Identity minting cannot proceed without entropy; the request must abort.
func NewEntropyFailure(err error) *GameError {
	return &GameError{
		Code:    ErrEntropyFailure,
		Status:  500,
		Message: fmt.Sprintf("secure randomness unavailable: %v", err),
	}
}

// NewStoreUnavailable creates a 503 error for a store that is unreachable or
// timed out. Distinct from a true record absence, which is not an error.
func NewStoreUnavailable(err error) *GameError {
	msg := "guess store unavailable"
	if err != nil {
		msg = fmt.Sprintf("guess store unavailable: %v", err)
	}
	return &GameError{
		Code:    ErrStoreUnavailable,
		Status:  503,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *GameError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &GameError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a GameError with the given code.
func Is(err error, code ErrorCode) bool {
	if gErr, ok := err.(*GameError); ok {
		return gErr.Code == code
	}
	return false
}
