// Package stats accumulates health statistics for a guarded target: request
// counts, latency samples, and an error-kind histogram.
package stats

import (
	"sync"
	"time"

	"github.com/auth-platform/platform/request-guard/internal/domain"
)

// maxLatencySamples caps the retained latency window. Counters are exact;
// only the sample window is bounded.
const maxLatencySamples = 1024

// Snapshot is a read-only copy of the aggregated statistics.
type Snapshot struct {
	TotalRequests      uint64                 `json:"total_requests"`
	SuccessfulRequests uint64                 `json:"successful_requests"`
	FailedRequests     uint64                 `json:"failed_requests"`
	TotalRetries       uint64                 `json:"total_retries"`
	RejectedRequests   uint64                 `json:"rejected_requests"`
	AttemptsStarted    uint64                 `json:"attempts_started"`
	ResponseTimes      []time.Duration        `json:"response_times"`
	ErrorTypeCounts    map[domain.Kind]uint64 `json:"error_type_counts"`
}

// SuccessRate returns successfulRequests/totalRequests, or 0 when no
// requests completed.
func (s Snapshot) SuccessRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.SuccessfulRequests) / float64(s.TotalRequests)
}

// AverageLatency returns the mean of the retained latency samples, or 0 when
// there are none.
func (s Snapshot) AverageLatency() time.Duration {
	if len(s.ResponseTimes) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range s.ResponseTimes {
		total += d
	}
	return total / time.Duration(len(s.ResponseTimes))
}

// Aggregator accumulates statistics. All increments are monotonic and all
// methods are safe for concurrent use.
type Aggregator struct {
	mu sync.Mutex

	totalRequests      uint64
	successfulRequests uint64
	failedRequests     uint64
	totalRetries       uint64
	rejectedRequests   uint64
	attemptsStarted    uint64

	responseTimes []time.Duration
	errorCounts   map[domain.Kind]uint64
}

// New creates an empty aggregator.
func New() *Aggregator {
	return &Aggregator{
		errorCounts: make(map[domain.Kind]uint64),
	}
}

// RecordCallStart records that a top-level guarded call began.
func (a *Aggregator) RecordCallStart() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalRequests++
}

// RecordAttemptStart records that an individual attempt began.
func (a *Aggregator) RecordAttemptStart() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attemptsStarted++
}

// RecordSuccess records a successful call and its latency.
func (a *Aggregator) RecordSuccess(latency time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successfulRequests++
	a.appendLatencyLocked(latency)
}

// RecordFailure records a failed attempt's error kind. Kinds are created in
// the histogram on first occurrence. This tracks attempts, not terminal
// outcomes; call RecordTerminalFailure when the call as a whole fails.
func (a *Aggregator) RecordFailure(kind domain.Kind) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errorCounts[kind]++
}

// RecordTerminalFailure records that a top-level call failed for good.
func (a *Aggregator) RecordTerminalFailure() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failedRequests++
}

// RecordRetryScheduled records that a retry was scheduled.
func (a *Aggregator) RecordRetryScheduled() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalRetries++
}

// RecordRejected records a call rejected by the open circuit. Rejections are
// tracked separately from operation failures so fast-fail volume stays
// visible without extending the breaker's failure count.
func (a *Aggregator) RecordRejected() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejectedRequests++
}

// SuccessRate returns the current success rate. 0 when nothing completed.
func (a *Aggregator) SuccessRate() float64 {
	return a.Snapshot().SuccessRate()
}

// AverageLatency returns the current mean latency. 0 with no samples.
func (a *Aggregator) AverageLatency() time.Duration {
	return a.Snapshot().AverageLatency()
}

// Snapshot returns a consistent copy of all statistics. Two snapshots with
// no intervening recordings are equal.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	times := make([]time.Duration, len(a.responseTimes))
	copy(times, a.responseTimes)

	counts := make(map[domain.Kind]uint64, len(a.errorCounts))
	for k, v := range a.errorCounts {
		counts[k] = v
	}

	return Snapshot{
		TotalRequests:      a.totalRequests,
		SuccessfulRequests: a.successfulRequests,
		FailedRequests:     a.failedRequests,
		TotalRetries:       a.totalRetries,
		RejectedRequests:   a.rejectedRequests,
		AttemptsStarted:    a.attemptsStarted,
		ResponseTimes:      times,
		ErrorTypeCounts:    counts,
	}
}

func (a *Aggregator) appendLatencyLocked(latency time.Duration) {
	if len(a.responseTimes) >= maxLatencySamples {
		copy(a.responseTimes, a.responseTimes[1:])
		a.responseTimes = a.responseTimes[:maxLatencySamples-1]
	}
	a.responseTimes = append(a.responseTimes, latency)
}
