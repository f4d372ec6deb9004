package sluice

import (
	"github.com/sluicekit/sluice/core"
)

// Registry holds the activated sinks and fans events out to them. It is
// populated during construction and closed for modification afterwards, so
// dispatch needs no locking.
type Registry struct {
	sinks       []*Sink
	activations []Activation
}

// Sinks returns the activated sinks, in registration order.
func (r *Registry) Sinks() []*Sink {
	out := make([]*Sink, len(r.sinks))
	copy(out, r.sinks)
	return out
}

// Activations reports the health gate's verdict for every configured sink,
// including the skipped ones, in configuration order.
func (r *Registry) Activations() []Activation {
	out := make([]Activation, len(r.activations))
	copy(out, r.activations)
	return out
}

// Dispatch fans one enriched, globally filtered event out to every enabled
// sink whose own threshold admits it. Each delivery is independent: a
// failing or slow sink never delays a sibling, and nothing propagates back
// to the producer. Control returns once every delivery has been initiated;
// buffered sinks complete later.
func (r *Registry) Dispatch(event *core.Event) {
	for _, s := range r.sinks {
		if s.enabled && event.Level >= s.minimumLevel {
			s.emit(event)
		}
	}
}
