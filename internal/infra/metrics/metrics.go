// Package metrics exports guard activity as Prometheus metrics, driven by
// the guard's event stream.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/auth-platform/platform/request-guard/internal/domain"
)

// Recorder holds all Prometheus metrics for guarded execution.
type Recorder struct {
	AttemptsTotal      *prometheus.CounterVec
	AttemptFailures    *prometheus.CounterVec
	RetriesTotal       *prometheus.CounterVec
	RetryDelaySeconds  *prometheus.HistogramVec
	CircuitState       *prometheus.GaugeVec
	CircuitTransitions *prometheus.CounterVec
	AttemptLatency     *prometheus.HistogramVec
}

// New creates a Recorder with all metrics registered on reg.
func New(namespace string, reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		AttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_total",
				Help:      "Total number of attempts started against the guarded target",
			},
			[]string{"target"},
		),
		AttemptFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempt_failures_total",
				Help:      "Total number of failed attempts by error kind",
			},
			[]string{"target", "kind"},
		),
		RetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Total number of retries scheduled",
			},
			[]string{"target"},
		),
		RetryDelaySeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "retry_delay_seconds",
				Help:      "Backoff delay before scheduled retries",
				Buckets:   []float64{.1, .25, .5, 1, 2, 4, 8, 16, 32},
			},
			[]string{"target"},
		),
		CircuitState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Current state of the circuit breaker (0=closed, 1=open, 2=half-open)",
			},
			[]string{"target"},
		),
		CircuitTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_transitions_total",
				Help:      "Total number of circuit breaker state transitions",
			},
			[]string{"target", "to"},
		),
		AttemptLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "attempt_latency_seconds",
				Help:      "Latency of individual attempts",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"target", "result"},
		),
	}
}

// Observe updates metrics from a guard event. Wire it to the guard with
// guard.Subscribe(recorder.Observe).
func (r *Recorder) Observe(event domain.GuardEvent) {
	switch event.Type {
	case domain.EventAttemptStarted:
		r.AttemptsTotal.WithLabelValues(event.Target).Inc()

	case domain.EventAttemptSucceeded:
		if latency, ok := event.Metadata["latency"].(time.Duration); ok {
			r.AttemptLatency.WithLabelValues(event.Target, "success").Observe(latency.Seconds())
		}

	case domain.EventAttemptFailed:
		kind, _ := event.Metadata["kind"].(string)
		r.AttemptFailures.WithLabelValues(event.Target, kind).Inc()
		if latency, ok := event.Metadata["latency"].(time.Duration); ok {
			r.AttemptLatency.WithLabelValues(event.Target, "failure").Observe(latency.Seconds())
		}

	case domain.EventRetryScheduled:
		r.RetriesTotal.WithLabelValues(event.Target).Inc()
		if delay, ok := event.Metadata["delay"].(time.Duration); ok {
			r.RetryDelaySeconds.WithLabelValues(event.Target).Observe(delay.Seconds())
		}

	case domain.EventCircuitOpened:
		r.CircuitState.WithLabelValues(event.Target).Set(float64(domain.CircuitOpen))
		r.CircuitTransitions.WithLabelValues(event.Target, domain.CircuitOpen.String()).Inc()

	case domain.EventCircuitHalfOpened:
		r.CircuitState.WithLabelValues(event.Target).Set(float64(domain.CircuitHalfOpen))
		r.CircuitTransitions.WithLabelValues(event.Target, domain.CircuitHalfOpen.String()).Inc()

	case domain.EventCircuitClosed:
		r.CircuitState.WithLabelValues(event.Target).Set(float64(domain.CircuitClosed))
		r.CircuitTransitions.WithLabelValues(event.Target, domain.CircuitClosed.String()).Inc()
	}
}
