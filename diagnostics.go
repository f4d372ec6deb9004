package sluice

import (
	"time"

	"github.com/sluicekit/sluice/core"
	"github.com/sluicekit/sluice/parser"
	"github.com/sluicekit/sluice/selflog"
)

// diagnostics is the pipeline's own reporting channel: the inline sinks
// that were already activated when a problem occurred. Health-gate skips,
// delivery failures, and shutdown drops are recorded here so they are never
// lost silently. If nothing reliable is activated yet, selflog is the
// fallback.
type diagnostics struct {
	sinks []*Sink
}

func (d *diagnostics) add(s *Sink) {
	d.sinks = append(d.sinks, s)
}

// emit synthesizes a pipeline diagnostic event and writes it directly to
// the diagnostic sinks. Failures here go to selflog only; diagnostics must
// never recurse into failure handling.
func (d *diagnostics) emit(level core.Level, template string, properties map[string]any) {
	if len(d.sinks) == 0 {
		if selflog.IsEnabled() {
			selflog.Printf("[diag] %s %s", level.Short(), parser.ParseCached(template).Render(properties))
		}
		return
	}

	event := &core.Event{
		Timestamp:       time.Now().UTC(),
		Level:           level,
		MessageTemplate: template,
		Properties:      properties,
	}
	event.RenderedMessage = parser.ParseCached(template).Render(properties)
	event.Freeze()

	for _, s := range d.sinks {
		d.accept(s, event)
	}
}

func (d *diagnostics) accept(s *Sink, event *core.Event) {
	defer func() {
		if r := recover(); r != nil {
			if selflog.IsEnabled() {
				selflog.Printf("[diag] sink %s panicked on diagnostic: %v", s.id, r)
			}
		}
	}()
	if err := s.dest.Accept(event); err != nil {
		if selflog.IsEnabled() {
			selflog.Printf("[diag] sink %s rejected diagnostic: %v", s.id, err)
		}
	}
}
