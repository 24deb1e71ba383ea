package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a guard domain event.
type EventType string

const (
	EventAttemptStarted    EventType = "attempt_started"
	EventAttemptSucceeded  EventType = "attempt_succeeded"
	EventAttemptFailed     EventType = "attempt_failed"
	EventRetryScheduled    EventType = "retry_scheduled"
	EventCircuitOpened     EventType = "circuit_opened"
	EventCircuitHalfOpened EventType = "circuit_half_opened"
	EventCircuitClosed     EventType = "circuit_closed"
)

// GuardEvent is the structured event published for every observable state
// change. The UI/telemetry collaborator subscribes to these; the core has no
// dependency on how they are displayed.
type GuardEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Target    string         `json:"target"`
	Timestamp time.Time      `json:"timestamp"`
	TraceID   string         `json:"trace_id,omitempty"`
	SpanID    string         `json:"span_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EventEmitter receives guard events.
type EventEmitter interface {
	Emit(event GuardEvent)
}

// EmitEvent safely emits an event, handling a nil emitter.
func EmitEvent(emitter EventEmitter, event GuardEvent) {
	if emitter == nil {
		return
	}
	emitter.Emit(event)
}

// GenerateEventID returns a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
