package enrichers

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/sluicekit/sluice/core"
)

// SequenceEnricher adds a monotonically increasing sequence number to
// events. Safe for concurrent producers; numbering reflects enrichment
// order, not dispatch order.
type SequenceEnricher struct {
	propertyName string
	counter      atomic.Uint64
}

// NewSequenceEnricher creates a sequence enricher using the "Sequence"
// property.
func NewSequenceEnricher() *SequenceEnricher {
	return &SequenceEnricher{propertyName: "Sequence"}
}

// Enrich adds the next sequence number to the event.
func (s *SequenceEnricher) Enrich(event *core.Event) {
	event.AddPropertyIfAbsent(s.propertyName, s.counter.Add(1))
}

// EventIDEnricher adds a unique "EventId" to every event, for correlating
// an occurrence across destinations.
type EventIDEnricher struct{}

// NewEventIDEnricher creates an event id enricher.
func NewEventIDEnricher() *EventIDEnricher {
	return &EventIDEnricher{}
}

// Enrich adds a fresh uuid to the event.
func (e *EventIDEnricher) Enrich(event *core.Event) {
	event.AddPropertyIfAbsent("EventId", uuid.NewString())
}
