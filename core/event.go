// Package core provides the fundamental interfaces and types for sluice.
package core

import "time"

// Event represents a single structured log occurrence flowing through the
// pipeline. Properties are mutable during enrichment and frozen before the
// event is handed to the dispatcher.
type Event struct {
	// Timestamp is when the event occurred. Set at creation, immutable.
	Timestamp time.Time

	// Level is the severity of the event.
	Level Level

	// MessageTemplate is the original message template with placeholders.
	MessageTemplate string

	// RenderedMessage is the template with placeholders substituted.
	// Computed once, at enrichment finalization.
	RenderedMessage string

	// Exception associated with the event, if any.
	Exception error

	// Properties contains the event's properties, keyed by name.
	Properties map[string]any

	frozen bool
}

// NewEvent creates an event with the given severity and template.
func NewEvent(level Level, messageTemplate string) *Event {
	return &Event{
		Timestamp:       time.Now().UTC(),
		Level:           level,
		MessageTemplate: messageTemplate,
		Properties:      make(map[string]any),
	}
}

// AddPropertyIfAbsent adds a property to the event if it doesn't already
// exist. Adding to a frozen event is a silent no-op.
func (e *Event) AddPropertyIfAbsent(name string, value any) {
	if e.frozen {
		return
	}
	if _, exists := e.Properties[name]; !exists {
		e.Properties[name] = value
	}
}

// Freeze closes the property set for modification. Idempotent.
func (e *Event) Freeze() {
	e.frozen = true
}

// Frozen reports whether the property set is closed.
func (e *Event) Frozen() bool {
	return e.frozen
}
