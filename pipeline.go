package sluice

import (
	"github.com/sluicekit/sluice/core"
	"github.com/sluicekit/sluice/parser"
	"github.com/sluicekit/sluice/projection"
)

// pipeline is the immutable processing chain behind a Logger: enrichment,
// projection finalization, message rendering, then fan-out. Events arriving
// here have already passed the global level switch.
type pipeline struct {
	enrichers   []core.Enricher
	projections *projection.Registry
	registry    *Registry
}

// process runs one event through every stage. The event is frozen before
// it reaches the dispatcher; no stage after freeze may touch its
// properties.
func (p *pipeline) process(event *core.Event) {
	for _, enricher := range p.enrichers {
		enricher.Enrich(event)
	}

	if p.projections != nil {
		for name, value := range event.Properties {
			if tagged, ok := value.(projection.Tagged); ok {
				event.Properties[name] = p.projections.Project(tagged.Tag, tagged.Value)
			}
		}
	}

	event.RenderedMessage = parser.ParseCached(event.MessageTemplate).Render(event.Properties)
	event.Freeze()

	p.registry.Dispatch(event)
}
