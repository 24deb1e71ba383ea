// Package executor orchestrates guarded execution of unreliable operations:
// retries with backoff, circuit breaking, statistics, and domain events.
package executor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/auth-platform/platform/request-guard/internal/backoff"
	"github.com/auth-platform/platform/request-guard/internal/circuitbreaker"
	"github.com/auth-platform/platform/request-guard/internal/classify"
	"github.com/auth-platform/platform/request-guard/internal/domain"
	"github.com/auth-platform/platform/request-guard/internal/eventbus"
	"github.com/auth-platform/platform/request-guard/internal/stats"
)

const instrumentationName = "request-guard/executor"

// Operation is the caller-supplied unreliable call. Failures should carry a
// *domain.Fault so classification can match on the structured kind.
type Operation[T any] func(ctx context.Context) (T, error)

// Guard wraps one logical operation target. It exclusively owns its circuit
// breaker and statistics; construct one per guarded target and share it
// across callers. All methods are safe for concurrent use.
type Guard struct {
	target  string
	policy  domain.RetryPolicy
	breaker *circuitbreaker.Breaker
	stats   *stats.Aggregator
	bus     *eventbus.Bus[domain.GuardEvent]
	events  *domain.EventBuilder
	tracer  trace.Tracer
	logger  *slog.Logger

	viewMu sync.Mutex
	view   domain.RequestView
}

// Config holds guard creation options. A fully zero Policy selects
// DefaultRetryPolicy; to make a no-retry policy the guard default, set at
// least one field explicitly (for example {MaxRetries: 0, Backoff:
// BackoffFixed}). RunWithPolicy never substitutes defaults. Zero-valued
// breaker settings fall back to the documented defaults.
type Config struct {
	Target  string
	Policy  domain.RetryPolicy
	Breaker domain.BreakerConfig
	Logger  *slog.Logger
	Tracer  trace.Tracer
}

// New creates a guard for a target.
func New(cfg Config) *Guard {
	policy := cfg.Policy
	if policy == (domain.RetryPolicy{}) {
		policy = domain.DefaultRetryPolicy()
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}

	bus := eventbus.New[domain.GuardEvent]()
	events := domain.NewEventBuilder(busEmitter{bus}, cfg.Target)

	return &Guard{
		target: cfg.Target,
		policy: policy,
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Target: cfg.Target,
			Config: cfg.Breaker,
			Events: events,
		}),
		stats:  stats.New(),
		bus:    bus,
		events: events,
		tracer: tracer,
		logger: logger,
		view:   domain.RequestView{Status: domain.StatusReady},
	}
}

// busEmitter adapts the event bus to the domain.EventEmitter interface.
type busEmitter struct {
	bus *eventbus.Bus[domain.GuardEvent]
}

func (e busEmitter) Emit(event domain.GuardEvent) {
	e.bus.Publish(event)
}

// Subscribe registers a handler for the guard's event stream. Handlers run
// synchronously on the publishing goroutine and must not call back into the
// guard.
func (g *Guard) Subscribe(handler func(domain.GuardEvent)) *eventbus.Subscription {
	return g.bus.Subscribe(handler)
}

// StatisticsSnapshot returns a read-only copy of the aggregated statistics.
func (g *Guard) StatisticsSnapshot() stats.Snapshot {
	return g.stats.Snapshot()
}

// CircuitState returns the breaker state and, when open, the time remaining
// until a half-open probe becomes eligible.
func (g *Guard) CircuitState() (domain.CircuitState, time.Duration) {
	return g.breaker.State(), g.breaker.RemainingOpen()
}

// BreakerSnapshot returns the full circuit breaker state.
func (g *Guard) BreakerSnapshot() domain.BreakerState {
	return g.breaker.Snapshot()
}

// CurrentRequest returns the derived view of the most recent call. It is
// recomputed at every attempt boundary and is not authoritative.
func (g *Guard) CurrentRequest() domain.RequestView {
	g.viewMu.Lock()
	defer g.viewMu.Unlock()
	return g.view
}

// Target returns the guarded target's name.
func (g *Guard) Target() string {
	return g.target
}

// Execute runs op under the guard's default policy.
func (g *Guard) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	return g.ExecuteWithPolicy(ctx, g.policy, op)
}

// ExecuteWithPolicy runs op under an explicit per-call policy.
func (g *Guard) ExecuteWithPolicy(ctx context.Context, policy domain.RetryPolicy, op func(ctx context.Context) error) error {
	_, err := RunWithPolicy(ctx, g, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Run executes a typed operation under the guard's default policy.
func Run[T any](ctx context.Context, g *Guard, op Operation[T]) (T, error) {
	return RunWithPolicy(ctx, g, g.policy, op)
}

// RunWithPolicy executes a typed operation with retries, breaker gating, and
// statistics. The returned error is always a typed terminal error: a
// *domain.CircuitOpenError when the breaker rejected the call, otherwise a
// *domain.GuardError wrapping the last operation failure, annotated with the
// attempt count.
func RunWithPolicy[T any](ctx context.Context, g *Guard, policy domain.RetryPolicy, op Operation[T]) (T, error) {
	var zero T

	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	maxAttempts := policy.MaxRetries + 1

	ctx, span := g.tracer.Start(ctx, "guard.execute", trace.WithAttributes(
		attribute.String("guard.target", g.target),
		attribute.Int("guard.max_attempts", maxAttempts),
	))
	defer span.End()

	g.stats.RecordCallStart()
	g.setView(domain.StatusLoading, 1, maxAttempts, time.Time{})

	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if !g.breaker.Admit() {
			resetAt := g.breaker.ResetAt()
			g.stats.RecordRejected()
			g.stats.RecordTerminalFailure()
			g.setView(domain.StatusFailed, attempt, maxAttempts, time.Time{})

			err := domain.NewCircuitOpenError(g.target, attempt, resetAt)
			span.SetStatus(codes.Error, "circuit open")
			g.logger.Warn("call rejected by open circuit",
				slog.String("target", g.target),
				slog.Time("reset_at", resetAt))
			return zero, err
		}

		g.stats.RecordAttemptStart()
		g.setView(domain.StatusLoading, attempt+1, maxAttempts, time.Time{})
		g.events.EmitWithContext(ctx, domain.EventAttemptStarted, map[string]any{
			"attempt":      attempt + 1,
			"max_attempts": maxAttempts,
		})

		start := time.Now()
		result, err := op(ctx)
		latency := time.Since(start)

		if err == nil {
			g.stats.RecordSuccess(latency)
			g.breaker.RecordSuccess()
			g.setView(domain.StatusSuccess, attempt+1, maxAttempts, time.Time{})
			g.events.EmitWithContext(ctx, domain.EventAttemptSucceeded, map[string]any{
				"attempt": attempt + 1,
				"latency": latency,
			})
			return result, nil
		}

		// A cancelled attempt is recorded as neither success nor failure;
		// the breaker only releases a probe slot the attempt may hold.
		if ctx.Err() != nil {
			g.breaker.RecordCancelled()
			g.stats.RecordTerminalFailure()
			g.setView(domain.StatusFailed, attempt+1, maxAttempts, time.Time{})
			span.SetStatus(codes.Error, "cancelled")
			return zero, ctx.Err()
		}

		lastErr = err
		kind := classify.KindOf(err)
		g.breaker.RecordFailure()
		g.stats.RecordFailure(kind)
		g.events.EmitWithContext(ctx, domain.EventAttemptFailed, map[string]any{
			"attempt": attempt + 1,
			"kind":    kind.String(),
			"latency": latency,
			"error":   err.Error(),
		})

		if classify.Classify(err) == classify.NonRetryable {
			g.stats.RecordTerminalFailure()
			g.setView(domain.StatusFailed, attempt+1, maxAttempts, time.Time{})
			span.SetStatus(codes.Error, "non-retryable failure")
			return zero, domain.NewNonRetryableError(g.target, attempt+1, err)
		}

		if attempt == policy.MaxRetries {
			g.stats.RecordTerminalFailure()
			g.setView(domain.StatusFailed, attempt+1, maxAttempts, time.Time{})
			span.SetStatus(codes.Error, "retry budget exhausted")
			g.logger.Warn("retry budget exhausted",
				slog.String("target", g.target),
				slog.Int("attempts", attempt+1),
				slog.String("kind", kind.String()))
			return zero, domain.NewRetryExhaustedError(g.target, attempt+1, err)
		}

		g.stats.RecordRetryScheduled()

		delay := backoff.ForPolicy(attempt, policy)
		if hint := classify.RetryAfterHint(err); hint > delay {
			delay = hint
		}

		nextRetryAt := time.Now().Add(delay)
		g.setView(domain.StatusRetrying, attempt+1, maxAttempts, nextRetryAt)
		g.events.EmitWithContext(ctx, domain.EventRetryScheduled, map[string]any{
			"attempt": attempt + 2,
			"delay":   delay,
			"kind":    kind.String(),
		})
		g.logger.Debug("retry scheduled",
			slog.String("target", g.target),
			slog.Int("next_attempt", attempt+2),
			slog.Duration("delay", delay))

		select {
		case <-ctx.Done():
			g.breaker.RecordCancelled()
			g.stats.RecordTerminalFailure()
			g.setView(domain.StatusFailed, attempt+1, maxAttempts, time.Time{})
			span.SetStatus(codes.Error, "cancelled")
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	// Unreachable: the loop always returns from a terminal branch.
	g.stats.RecordTerminalFailure()
	return zero, domain.NewRetryExhaustedError(g.target, policy.MaxRetries+1, lastErr)
}

func (g *Guard) setView(status domain.RequestStatus, attempt, maxAttempts int, nextRetryAt time.Time) {
	g.viewMu.Lock()
	defer g.viewMu.Unlock()
	g.view = domain.RequestView{
		Status:      status,
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
		NextRetryAt: nextRetryAt,
	}
}
