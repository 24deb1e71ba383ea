package circuitbreaker

import (
	"sync"
	"testing"
	"time"

	"github.com/auth-platform/platform/request-guard/internal/domain"
	"github.com/auth-platform/platform/request-guard/internal/testutil"
)

// fakeClock is a manually advanced clock for deterministic timing tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// eventRecorder captures emitted events in order.
type eventRecorder struct {
	mu     sync.Mutex
	events []domain.GuardEvent
}

func (r *eventRecorder) Emit(event domain.GuardEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]domain.EventType, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type
	}
	return types
}

func newTestBreaker(clock *fakeClock, recorder *eventRecorder) *Breaker {
	cfg := Config{
		Target: "upstream",
		Config: domain.BreakerConfig{
			FailureThreshold: 3,
			OpenDuration:     30 * time.Second,
		},
		Now: clock.Now,
	}
	if recorder != nil {
		cfg.Events = domain.NewEventBuilder(recorder, "upstream")
	}
	return New(cfg)
}

func TestBreakerStartsClosed(t *testing.T) {
	b := newTestBreaker(newFakeClock(), nil)
	testutil.AssertEqual(t, b.State(), domain.CircuitClosed)
	if !b.Admit() {
		t.Fatal("closed breaker must admit")
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := newTestBreaker(newFakeClock(), nil)

	b.RecordFailure()
	b.RecordFailure()
	testutil.AssertEqual(t, b.State(), domain.CircuitClosed)

	b.RecordFailure()
	testutil.AssertEqual(t, b.State(), domain.CircuitOpen)

	if b.Admit() {
		t.Fatal("open breaker must reject")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := newTestBreaker(newFakeClock(), nil)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	testutil.AssertEqual(t, b.State(), domain.CircuitClosed)
	testutil.AssertEqual(t, b.Snapshot().ConsecutiveFailures, 2)
}

func TestBreakerHalfOpenAfterOpenDuration(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock, nil)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	testutil.AssertEqual(t, b.State(), domain.CircuitOpen)

	clock.Advance(29 * time.Second)
	if b.Admit() {
		t.Fatal("breaker must stay open before the duration elapses")
	}

	clock.Advance(time.Second)
	if !b.Admit() {
		t.Fatal("breaker must admit a probe once the open duration elapses")
	}
	testutil.AssertEqual(t, b.State(), domain.CircuitHalfOpen)
}

func TestBreakerHalfOpenAdmitsSingleProbe(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock, nil)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	clock.Advance(30 * time.Second)

	if !b.Admit() {
		t.Fatal("first call after the open window must be admitted as the probe")
	}
	if b.Admit() {
		t.Fatal("second call must be rejected while the probe is in flight")
	}
	if b.Admit() {
		t.Fatal("third call must be rejected while the probe is in flight")
	}
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock, nil)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	clock.Advance(30 * time.Second)

	if !b.Admit() {
		t.Fatal("probe must be admitted")
	}
	b.RecordSuccess()

	testutil.AssertEqual(t, b.State(), domain.CircuitClosed)
	testutil.AssertEqual(t, b.Snapshot().ConsecutiveFailures, 0)

	for i := 0; i < 10; i++ {
		if !b.Admit() {
			t.Fatal("closed breaker must admit without restriction")
		}
	}
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock, nil)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	clock.Advance(30 * time.Second)

	if !b.Admit() {
		t.Fatal("probe must be admitted")
	}
	b.RecordFailure()

	testutil.AssertEqual(t, b.State(), domain.CircuitOpen)

	// The failed probe refreshes the window; a new probe needs the full
	// open duration again.
	clock.Advance(29 * time.Second)
	if b.Admit() {
		t.Fatal("breaker must stay open for a full window after a failed probe")
	}
	clock.Advance(time.Second)
	if !b.Admit() {
		t.Fatal("breaker must admit a new probe after the refreshed window")
	}
}

func TestBreakerCancelledProbeReArms(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock, nil)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	clock.Advance(30 * time.Second)

	if !b.Admit() {
		t.Fatal("probe must be admitted")
	}
	b.RecordCancelled()

	testutil.AssertEqual(t, b.State(), domain.CircuitOpen)

	// The abandoned probe does not refresh the window; the next call is
	// admitted as a fresh probe right away.
	if !b.Admit() {
		t.Fatal("next call must be admitted as a new probe")
	}
	testutil.AssertEqual(t, b.State(), domain.CircuitHalfOpen)

	b.RecordSuccess()
	testutil.AssertEqual(t, b.State(), domain.CircuitClosed)
}

func TestBreakerRecordCancelledOutsideProbeIsNoOp(t *testing.T) {
	b := newTestBreaker(newFakeClock(), nil)

	b.RecordCancelled()
	testutil.AssertEqual(t, b.State(), domain.CircuitClosed)

	b.RecordFailure()
	b.RecordCancelled()
	testutil.AssertEqual(t, b.Snapshot().ConsecutiveFailures, 1)
	testutil.AssertEqual(t, b.State(), domain.CircuitClosed)
}

func TestBreakerStragglerFailureDoesNotExtendOpenWindow(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock, nil)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	clock.Advance(20 * time.Second)

	// A late failure from an attempt admitted before the trip must not
	// push the probe window out.
	b.RecordFailure()
	clock.Advance(10 * time.Second)

	if !b.Admit() {
		t.Fatal("open window must be measured from the tripping failure")
	}
	testutil.AssertEqual(t, b.State(), domain.CircuitHalfOpen)
}

func TestBreakerRemainingOpen(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock, nil)

	testutil.AssertEqual(t, b.RemainingOpen(), 0)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	testutil.AssertEqual(t, b.RemainingOpen(), 30*time.Second)

	clock.Advance(10 * time.Second)
	testutil.AssertEqual(t, b.RemainingOpen(), 20*time.Second)

	clock.Advance(25 * time.Second)
	testutil.AssertEqual(t, b.RemainingOpen(), 0)
}

func TestBreakerResetAt(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock, nil)

	testutil.AssertEqual(t, b.ResetAt(), time.Time{})

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	testutil.AssertEqual(t, b.ResetAt(), clock.Now().Add(30*time.Second))

	// Half-open still reports the elapsed window end, never the zero time.
	clock.Advance(30 * time.Second)
	if !b.Admit() {
		t.Fatal("probe must be admitted")
	}
	testutil.AssertEqual(t, b.State(), domain.CircuitHalfOpen)
	testutil.AssertEqual(t, b.ResetAt(), clock.Now())
}

func TestBreakerTransitionEvents(t *testing.T) {
	clock := newFakeClock()
	recorder := &eventRecorder{}
	b := newTestBreaker(clock, recorder)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	clock.Advance(30 * time.Second)
	b.Admit()
	b.RecordSuccess()

	want := []domain.EventType{
		domain.EventCircuitOpened,
		domain.EventCircuitHalfOpened,
		domain.EventCircuitClosed,
	}
	got := recorder.types()
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		testutil.AssertEqual(t, got[i], want[i])
	}

	recorder.mu.Lock()
	opened := recorder.events[0]
	recorder.mu.Unlock()
	testutil.AssertEqual(t, opened.Target, "upstream")
	testutil.AssertEqual(t, opened.Metadata["previous_state"].(string), "closed")
	testutil.AssertEqual(t, opened.Metadata["new_state"].(string), "open")
	testutil.AssertEqual(t, opened.Metadata["consecutive_failures"].(int), 3)
}

func TestBreakerDefaults(t *testing.T) {
	clock := newFakeClock()
	b := New(Config{Target: "upstream", Now: clock.Now})

	for i := 0; i < 2; i++ {
		b.RecordFailure()
	}
	testutil.AssertEqual(t, b.State(), domain.CircuitClosed)
	b.RecordFailure()
	testutil.AssertEqual(t, b.State(), domain.CircuitOpen)

	clock.Advance(30 * time.Second)
	if !b.Admit() {
		t.Fatal("default open duration must be 30s")
	}
}

func TestBreakerConcurrentProbeAdmission(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock, nil)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	clock.Advance(30 * time.Second)

	const goroutines = 32
	var admitted int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if b.Admit() {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	testutil.AssertEqual(t, admitted, 1)
}
