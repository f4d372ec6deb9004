// Package enrichers provides the built-in event enrichers. All enrichers
// are additive: a property already present on the event is never replaced.
package enrichers

import (
	"github.com/sluicekit/sluice/core"
)

// ConstantEnricher adds a fixed property value to every event, e.g. an
// application version string.
type ConstantEnricher struct {
	name  string
	value any
}

// NewConstantEnricher creates an enricher with a fixed name and value.
func NewConstantEnricher(name string, value any) *ConstantEnricher {
	return &ConstantEnricher{name: name, value: value}
}

// Enrich adds the constant property to the event.
func (c *ConstantEnricher) Enrich(event *core.Event) {
	event.AddPropertyIfAbsent(c.name, c.value)
}
