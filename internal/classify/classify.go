// Package classify maps failures to retryability. Classification is total
// and deterministic: every error maps to exactly one outcome, and it matches
// on the structured fault kind, never on message text.
package classify

import (
	"errors"
	"time"

	"github.com/auth-platform/platform/request-guard/internal/domain"
)

// Outcome is the retryability of a failure.
type Outcome int

const (
	// NonRetryable failures terminate the call immediately.
	NonRetryable Outcome = iota
	// Retryable failures are eligible for another attempt.
	Retryable
)

func (o Outcome) String() string {
	switch o {
	case Retryable:
		return "retryable"
	case NonRetryable:
		return "non-retryable"
	default:
		return "unknown"
	}
}

// KindOf extracts the structured kind from an error. Errors that carry no
// fault are unclassified.
func KindOf(err error) domain.Kind {
	var fault *domain.Fault
	if errors.As(err, &fault) {
		return fault.Kind
	}
	return domain.KindUnclassified
}

// Classify maps an error to its retryability. Non-retryable categories are
// checked first so an error matching both is treated conservatively, and
// unrecognized errors never trigger unbounded retry.
func Classify(err error) Outcome {
	switch KindOf(err) {
	case domain.KindClient:
		return NonRetryable

	case domain.KindTimeout,
		domain.KindRateLimited,
		domain.KindTransientServer,
		domain.KindNetwork,
		domain.KindConnection:
		return Retryable

	default:
		return NonRetryable
	}
}

// RetryAfterHint returns the upstream's suggested minimum wait, if the
// failure carries one. Zero means no suggestion.
func RetryAfterHint(err error) time.Duration {
	var fault *domain.Fault
	if errors.As(err, &fault) && fault.RetryAfter > 0 {
		return fault.RetryAfter
	}
	return 0
}
