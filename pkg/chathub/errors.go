package chathub

import (
	"errors"
)

// Sentinel errors for the hub's failure taxonomy. Callers classify with
// errors.Is; wrapping keeps the underlying detail in the message chain.
var (
	// ErrInvalidInput marks a malformed or oversized message. Not retryable.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks a read against an unknown conversation id.
	ErrNotFound = errors.New("conversation not found")

	// ErrGenerationFailed marks a response generator failure. The
	// conversation stays consistent: no assistant turn was appended.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrTimeout marks a generator call that exceeded its deadline. Same
	// consistency guarantee as ErrGenerationFailed; retry is the caller's
	// decision.
	ErrTimeout = errors.New("generation timed out")

	// ErrNotConnected marks a push target without a live handle. Never
	// surfaced to the synchronous caller, only logged.
	ErrNotConnected = errors.New("client not connected")
)
