// Package circuitbreaker implements the circuit breaker state machine
// guarding a single operation target.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/auth-platform/platform/request-guard/internal/domain"
)

// Breaker tracks consecutive failures for one target and gates whether new
// attempts are allowed. It is safe for concurrent use.
type Breaker struct {
	mu            sync.Mutex
	config        domain.BreakerConfig
	target        string
	state         domain.CircuitState
	failures      int
	lastFailure   time.Time
	probeInFlight bool
	events        *domain.EventBuilder
	now           func() time.Time
}

// Config holds breaker creation options.
type Config struct {
	Target string
	Config domain.BreakerConfig
	Events *domain.EventBuilder
	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// New creates a circuit breaker in the closed state. Zero threshold or open
// duration fall back to the documented defaults.
func New(cfg Config) *Breaker {
	conf := cfg.Config
	defaults := domain.DefaultBreakerConfig()
	if conf.FailureThreshold <= 0 {
		conf.FailureThreshold = defaults.FailureThreshold
	}
	if conf.OpenDuration <= 0 {
		conf.OpenDuration = defaults.OpenDuration
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Breaker{
		config: conf,
		target: cfg.Target,
		state:  domain.CircuitClosed,
		events: cfg.Events,
		now:    now,
	}
}

// Admit reports whether a new attempt may proceed. When the circuit has been
// open for at least the configured open duration, the call transitions the
// breaker to half-open and is admitted as the single probe. While a probe is
// in flight every other Admit is rejected.
func (b *Breaker) Admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case domain.CircuitClosed:
		return true

	case domain.CircuitOpen:
		if b.now().Sub(b.lastFailure) >= b.config.OpenDuration {
			b.transitionTo(domain.CircuitHalfOpen)
			b.probeInFlight = true
			return true
		}
		return false

	case domain.CircuitHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true

	default:
		return false
	}
}

// RecordSuccess records a successful attempt. A success always resets the
// consecutive failure count; in half-open it closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probeInFlight = false

	if b.state != domain.CircuitClosed {
		b.transitionTo(domain.CircuitClosed)
	}
}

// RecordFailure records a failed attempt. Rejections from an open circuit
// must not be reported here; only genuine operation failures count toward
// the threshold. A straggler failure arriving while the circuit is already
// open does not refresh the open window.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case domain.CircuitClosed:
		b.failures++
		b.lastFailure = b.now()
		if b.failures >= b.config.FailureThreshold {
			b.transitionTo(domain.CircuitOpen)
		}

	case domain.CircuitHalfOpen:
		b.probeInFlight = false
		b.lastFailure = b.now()
		b.transitionTo(domain.CircuitOpen)
	}
}

// RecordCancelled reports that an admitted attempt was abandoned with no
// outcome. A cancelled half-open probe returns the breaker to open without
// refreshing the window, so the next Admit re-arms the probe immediately.
func (b *Breaker) RecordCancelled() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == domain.CircuitHalfOpen && b.probeInFlight {
		b.probeInFlight = false
		b.transitionTo(domain.CircuitOpen)
	}
}

// State returns the current circuit state.
func (b *Breaker) State() domain.CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// RemainingOpen returns the time until a half-open probe becomes eligible.
// Zero unless the circuit is open.
func (b *Breaker) RemainingOpen() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remainingOpenLocked()
}

// ResetAt returns when the breaker becomes eligible for a probe. While
// half-open the reported time is in the past: the window has elapsed and a
// probe is already in flight. The zero time is returned while closed.
func (b *Breaker) ResetAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == domain.CircuitClosed {
		return time.Time{}
	}
	return b.lastFailure.Add(b.config.OpenDuration)
}

// Snapshot returns the complete breaker state.
func (b *Breaker) Snapshot() domain.BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := domain.BreakerState{
		Target:              b.target,
		State:               b.state,
		ConsecutiveFailures: b.failures,
		RemainingOpen:       b.remainingOpenLocked(),
	}
	if !b.lastFailure.IsZero() {
		last := b.lastFailure
		st.LastFailureTime = &last
	}
	return st
}

func (b *Breaker) remainingOpenLocked() time.Duration {
	if b.state != domain.CircuitOpen {
		return 0
	}
	remaining := b.config.OpenDuration - b.now().Sub(b.lastFailure)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// transitionTo changes the circuit state. Must be called with lock held.
func (b *Breaker) transitionTo(newState domain.CircuitState) {
	if b.state == newState {
		return
	}

	prevState := b.state
	b.state = newState

	var eventType domain.EventType
	switch newState {
	case domain.CircuitOpen:
		eventType = domain.EventCircuitOpened
	case domain.CircuitHalfOpen:
		eventType = domain.EventCircuitHalfOpened
	case domain.CircuitClosed:
		eventType = domain.EventCircuitClosed
	}

	b.events.Emit(eventType, map[string]any{
		"previous_state":       prevState.String(),
		"new_state":            newState.String(),
		"consecutive_failures": b.failures,
	})
}
