package domain

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// EventBuilder constructs guard events with automatic field population.
type EventBuilder struct {
	emitter EventEmitter
	target  string
}

// NewEventBuilder creates a new EventBuilder.
func NewEventBuilder(emitter EventEmitter, target string) *EventBuilder {
	return &EventBuilder{
		emitter: emitter,
		target:  target,
	}
}

// Build creates a GuardEvent with automatic ID and timestamp.
func (b *EventBuilder) Build(eventType EventType, metadata map[string]any) GuardEvent {
	return GuardEvent{
		ID:        GenerateEventID(),
		Type:      eventType,
		Target:    b.target,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

// BuildWithContext creates a GuardEvent with trace context propagation.
func (b *EventBuilder) BuildWithContext(ctx context.Context, eventType EventType, metadata map[string]any) GuardEvent {
	event := b.Build(eventType, metadata)

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		event.TraceID = spanCtx.TraceID().String()
		event.SpanID = spanCtx.SpanID().String()
	}

	return event
}

// Emit builds and emits an event. Safe to call on a nil builder or emitter.
func (b *EventBuilder) Emit(eventType EventType, metadata map[string]any) {
	if b == nil || b.emitter == nil {
		return
	}
	b.emitter.Emit(b.Build(eventType, metadata))
}

// EmitWithContext builds and emits an event with trace context. Safe to call
// on a nil builder or emitter.
func (b *EventBuilder) EmitWithContext(ctx context.Context, eventType EventType, metadata map[string]any) {
	if b == nil || b.emitter == nil {
		return
	}
	b.emitter.Emit(b.BuildWithContext(ctx, eventType, metadata))
}

// Target returns the target name configured in the builder.
func (b *EventBuilder) Target() string {
	if b == nil {
		return ""
	}
	return b.target
}
