// Package backoff computes retry delays. All functions are pure and
// deterministic unless jitter is explicitly applied.
package backoff

import (
	"math"
	"math/rand"
	"time"

	"github.com/auth-platform/platform/request-guard/internal/domain"
)

// Delay returns the wait duration before retrying after the given
// zero-based attempt index.
//
//	exponential: base * 2^attempt
//	linear:      base * (attempt + 1)
//	fixed:       base
//
// Unknown kinds fall back to fixed; that is the documented default, not an
// extension point. Negative attempt indexes are clamped to 0 and the result
// is never negative.
func Delay(attempt int, base time.Duration, kind domain.BackoffKind) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}

	switch kind {
	case domain.BackoffExponential:
		d := float64(base) * math.Pow(2, float64(attempt))
		if d > float64(math.MaxInt64) {
			return time.Duration(math.MaxInt64)
		}
		return time.Duration(d)

	case domain.BackoffLinear:
		d := float64(base) * float64(attempt+1)
		if d > float64(math.MaxInt64) {
			return time.Duration(math.MaxInt64)
		}
		return time.Duration(d)

	default:
		return base
	}
}

// Jittered randomizes a delay within +/- percent of its value. A percent of
// 0 returns the delay unchanged, keeping computation reproducible for tests.
func Jittered(delay time.Duration, percent float64) time.Duration {
	if percent <= 0 || delay <= 0 {
		return delay
	}

	jitter := float64(delay) * percent * (rand.Float64()*2 - 1)
	final := float64(delay) + jitter
	if final < 0 {
		return 0
	}
	return time.Duration(final)
}

// ForPolicy computes the delay for an attempt under a retry policy,
// applying the policy's jitter if configured.
func ForPolicy(attempt int, policy domain.RetryPolicy) time.Duration {
	return Jittered(Delay(attempt, policy.BaseDelay, policy.Backoff), policy.JitterPercent)
}
