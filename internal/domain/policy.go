package domain

import "time"

// BackoffKind selects how retry delays grow across attempts.
type BackoffKind string

const (
	// BackoffExponential doubles the base delay per attempt.
	BackoffExponential BackoffKind = "exponential"
	// BackoffLinear grows the delay linearly with the attempt index.
	BackoffLinear BackoffKind = "linear"
	// BackoffFixed waits the base delay between every attempt. Unknown kinds
	// fall back to this behavior.
	BackoffFixed BackoffKind = "fixed"
)

// RetryPolicy is the per-call retry configuration. It is immutable for the
// duration of an invocation. A policy with MaxRetries n performs at most n+1
// attempts.
type RetryPolicy struct {
	MaxRetries int           `json:"max_retries" yaml:"maxRetries"`
	BaseDelay  time.Duration `json:"base_delay" yaml:"baseDelay"`
	Backoff    BackoffKind   `json:"backoff" yaml:"backoff"`
	// JitterPercent randomizes each delay within +/- the given fraction.
	// Zero keeps delays deterministic.
	JitterPercent float64 `json:"jitter_percent" yaml:"jitterPercent"`
}

// DefaultRetryPolicy returns the documented defaults: 3 retries, 1s base
// delay, exponential backoff, no jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		Backoff:    BackoffExponential,
	}
}

// BreakerConfig defines circuit breaker behavior for a guarded target.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit.
	FailureThreshold int `json:"failure_threshold" yaml:"failureThreshold"`
	// OpenDuration is how long the circuit stays open before admitting a
	// half-open probe.
	OpenDuration time.Duration `json:"open_duration" yaml:"openDuration"`
}

// DefaultBreakerConfig returns the documented defaults: threshold 3, open
// duration 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		OpenDuration:     30 * time.Second,
	}
}

// CircuitState represents the circuit breaker state.
type CircuitState int

const (
	// CircuitClosed allows requests to pass through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects requests without attempting them.
	CircuitOpen
	// CircuitHalfOpen admits a single probe to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerState is a read-only snapshot of a circuit breaker.
type BreakerState struct {
	Target              string       `json:"target"`
	State               CircuitState `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastFailureTime     *time.Time   `json:"last_failure_time,omitempty"`
	// RemainingOpen is the time until a half-open probe becomes eligible.
	// Zero unless the circuit is open.
	RemainingOpen time.Duration `json:"remaining_open,omitempty"`
}

// RequestStatus describes where the most recent guarded call stands.
type RequestStatus string

const (
	StatusReady    RequestStatus = "ready"
	StatusLoading  RequestStatus = "loading"
	StatusRetrying RequestStatus = "retrying"
	StatusSuccess  RequestStatus = "success"
	StatusFailed   RequestStatus = "failed"
)

// RequestView is a derived, poll-friendly snapshot of the in-flight call.
// It is recomputed at every attempt boundary and is never authoritative.
type RequestView struct {
	Status      RequestStatus `json:"status"`
	Attempt     int           `json:"attempt"`
	MaxAttempts int           `json:"max_attempts"`
	// NextRetryAt is set while waiting out a backoff delay, zero otherwise.
	NextRetryAt time.Time `json:"next_retry_at,omitempty"`
}
