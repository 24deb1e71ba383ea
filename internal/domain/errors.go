package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode identifies the terminal outcome of a guarded call.
type ErrorCode string

const (
	ErrCircuitOpen    ErrorCode = "CIRCUIT_OPEN"
	ErrRetryExhausted ErrorCode = "RETRY_EXHAUSTED"
	ErrNonRetryable   ErrorCode = "NON_RETRYABLE"
)

// GuardError is the base type for all terminal errors returned by the
// executor. It carries the attempt count and whether the circuit breaker was
// the proximate cause, so callers can distinguish "the breaker tripped" from
// "the operation itself failed repeatedly".
type GuardError struct {
	Code           ErrorCode
	Target         string
	Message        string
	Attempts       int
	CircuitTripped bool
	Cause          error
}

func (e *GuardError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (cause: %v)", e.Code, e.Target, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Target, e.Message)
}

func (e *GuardError) Unwrap() error {
	return e.Cause
}

// Is matches guard errors by code.
func (e *GuardError) Is(target error) bool {
	if t, ok := target.(*GuardError); ok {
		return e.Code == t.Code
	}
	return false
}

// CircuitOpenError is returned when the breaker rejects a call without
// attempting the operation. It is terminal for the call and is never
// classified as an operation failure.
type CircuitOpenError struct {
	GuardError
	// ResetAt is when the breaker becomes eligible for a half-open probe.
	ResetAt time.Time
}

// Unwrap exposes the embedded GuardError so errors.As can find it through a
// *CircuitOpenError.
func (e *CircuitOpenError) Unwrap() error {
	return &e.GuardError
}

// NewCircuitOpenError creates a circuit open error.
func NewCircuitOpenError(target string, attempts int, resetAt time.Time) *CircuitOpenError {
	return &CircuitOpenError{
		GuardError: GuardError{
			Code:           ErrCircuitOpen,
			Target:         target,
			Message:        "circuit breaker is open",
			Attempts:       attempts,
			CircuitTripped: true,
		},
		ResetAt: resetAt,
	}
}

// NewRetryExhaustedError creates the terminal error for a retryable failure
// that consumed the full attempt budget.
func NewRetryExhaustedError(target string, attempts int, cause error) *GuardError {
	return &GuardError{
		Code:     ErrRetryExhausted,
		Target:   target,
		Message:  fmt.Sprintf("retry budget exhausted after %d attempts", attempts),
		Attempts: attempts,
		Cause:    cause,
	}
}

// NewNonRetryableError creates the terminal error for a failure classified as
// non-retryable.
func NewNonRetryableError(target string, attempts int, cause error) *GuardError {
	return &GuardError{
		Code:     ErrNonRetryable,
		Target:   target,
		Message:  fmt.Sprintf("non-retryable failure after %d attempts", attempts),
		Attempts: attempts,
		Cause:    cause,
	}
}

// IsCircuitOpen checks if err is a CircuitOpenError.
func IsCircuitOpen(err error) bool {
	var circuitErr *CircuitOpenError
	return errors.As(err, &circuitErr)
}

// IsRetryExhausted checks if err is a retry-exhausted guard error.
func IsRetryExhausted(err error) bool {
	var guardErr *GuardError
	return errors.As(err, &guardErr) && guardErr.Code == ErrRetryExhausted
}

// AsGuardError extracts a GuardError from the error chain.
func AsGuardError(err error) (*GuardError, bool) {
	var guardErr *GuardError
	if errors.As(err, &guardErr) {
		return guardErr, true
	}
	return nil, false
}

// AttemptCount returns the number of attempts recorded on a terminal error,
// or 0 if err is not a guard error.
func AttemptCount(err error) int {
	if guardErr, ok := AsGuardError(err); ok {
		return guardErr.Attempts
	}
	return 0
}
