package core

// Enricher adds contextual properties to events. Enrichers only ever add
// missing properties; a key set earlier in the chain is never replaced.
type Enricher interface {
	// Enrich adds properties to the provided event.
	Enrich(event *Event)
}

// EnricherFunc adapts a function to the Enricher interface.
type EnricherFunc func(event *Event)

// Enrich calls f.
func (f EnricherFunc) Enrich(event *Event) {
	f(event)
}
