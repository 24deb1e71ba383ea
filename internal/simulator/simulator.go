// Package simulator provides a fault-injecting fake upstream. It is the
// point where structured fault kinds are attached to failures, standing in
// for a real transport in the demo server and tests.
package simulator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/auth-platform/platform/request-guard/internal/domain"
)

// Response is the payload a successful simulated call returns.
type Response struct {
	StatusCode int
	Body       string
}

// faultChoice pairs a fault constructor with a selection weight.
type faultChoice struct {
	weight int
	make   func() *domain.Fault
}

// Simulator produces successes and typed faults with configurable odds.
// Safe for concurrent use.
type Simulator struct {
	mu          sync.Mutex
	rng         *rand.Rand
	failureRate float64
	minLatency  time.Duration
	maxLatency  time.Duration
	faults      []faultChoice
	totalWeight int
}

// Config holds simulator options.
type Config struct {
	// FailureRate is the probability in [0,1] that a call fails.
	FailureRate float64
	MinLatency  time.Duration
	MaxLatency  time.Duration
	// Seed fixes the random sequence; 0 seeds from the clock.
	Seed int64
}

// New creates a simulator with the default fault mix: mostly transient
// server errors, timeouts, and network faults, with an occasional
// rate-limit and client error.
func New(cfg Config) *Simulator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Simulator{
		rng:         rand.New(rand.NewSource(seed)),
		failureRate: cfg.FailureRate,
		minLatency:  cfg.MinLatency,
		maxLatency:  cfg.MaxLatency,
	}

	s.faults = []faultChoice{
		{weight: 30, make: func() *domain.Fault { return domain.NewTransientServerFault(500, "internal server error") }},
		{weight: 15, make: func() *domain.Fault { return domain.NewTransientServerFault(503, "service unavailable") }},
		{weight: 15, make: func() *domain.Fault { return domain.NewTimeoutFault(5 * time.Second) }},
		{weight: 10, make: func() *domain.Fault { return domain.NewNetworkFault("no route to host") }},
		{weight: 10, make: func() *domain.Fault { return domain.NewConnectionFault("connection reset by peer") }},
		{weight: 10, make: func() *domain.Fault { return domain.NewRateLimitedFault(2 * time.Second) }},
		{weight: 10, make: func() *domain.Fault { return domain.NewClientFault(404, "not found") }},
	}
	for _, c := range s.faults {
		s.totalWeight += c.weight
	}

	return s
}

// Call simulates one upstream request: a latency in the configured range,
// then either a success response or a typed fault. Cancellation aborts the
// latency wait.
func (s *Simulator) Call(ctx context.Context) (Response, error) {
	latency, failed, fault := s.roll()

	if latency > 0 {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-time.After(latency):
		}
	}

	if failed {
		return Response{}, fault
	}
	return Response{StatusCode: 200, Body: "ok"}, nil
}

func (s *Simulator) roll() (time.Duration, bool, *domain.Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latency := s.minLatency
	if spread := s.maxLatency - s.minLatency; spread > 0 {
		latency += time.Duration(s.rng.Int63n(int64(spread)))
	}

	if s.rng.Float64() >= s.failureRate {
		return latency, false, nil
	}

	pick := s.rng.Intn(s.totalWeight)
	for _, c := range s.faults {
		if pick < c.weight {
			return latency, true, c.make()
		}
		pick -= c.weight
	}
	return latency, true, s.faults[len(s.faults)-1].make()
}
