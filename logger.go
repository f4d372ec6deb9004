package sluice

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sluicekit/sluice/core"
	"github.com/sluicekit/sluice/parser"
	"github.com/sluicekit/sluice/selflog"
)

// Logger is the producer-facing surface of the pipeline. Methods are safe
// for concurrent use; emitting never blocks beyond the cost of the inline
// sinks and never fails because of a downstream destination.
type Logger struct {
	levels   *LevelSwitch
	pipeline *pipeline
	registry *Registry
	diag     *diagnostics

	// context properties bound with ForContext/With, applied add-if-absent
	// after template arguments.
	properties []contextProperty

	closed    *atomic.Bool
	closeOnce *sync.Once
	closeErr  *error
}

type contextProperty struct {
	name  string
	value any
}

// Verbose writes a verbose-level event.
func (l *Logger) Verbose(messageTemplate string, args ...any) {
	l.Write(core.VerboseLevel, messageTemplate, args...)
}

// Debug writes a debug-level event.
func (l *Logger) Debug(messageTemplate string, args ...any) {
	l.Write(core.DebugLevel, messageTemplate, args...)
}

// Information writes an information-level event.
func (l *Logger) Information(messageTemplate string, args ...any) {
	l.Write(core.InformationLevel, messageTemplate, args...)
}

// Info is an alias for Information.
func (l *Logger) Info(messageTemplate string, args ...any) {
	l.Write(core.InformationLevel, messageTemplate, args...)
}

// Warning writes a warning-level event.
func (l *Logger) Warning(messageTemplate string, args ...any) {
	l.Write(core.WarningLevel, messageTemplate, args...)
}

// Warn is an alias for Warning.
func (l *Logger) Warn(messageTemplate string, args ...any) {
	l.Write(core.WarningLevel, messageTemplate, args...)
}

// Error writes an error-level event.
func (l *Logger) Error(messageTemplate string, args ...any) {
	l.Write(core.ErrorLevel, messageTemplate, args...)
}

// Fatal writes a fatal-level event. Severity only; whether anything
// escalates is decided by sink failure policies, not by this method.
func (l *Logger) Fatal(messageTemplate string, args ...any) {
	l.Write(core.FatalLevel, messageTemplate, args...)
}

// IsEnabled returns true if events at the given level currently pass the
// global switch.
func (l *Logger) IsEnabled(level core.Level) bool {
	return l.levels.IsEnabled(level)
}

// Write emits one event at the specified level. Events below the global
// minimum are dropped before any further work; lowering the switch at
// runtime admits subsequent events only.
func (l *Logger) Write(level core.Level, messageTemplate string, args ...any) {
	if l.closed.Load() || !l.levels.IsEnabled(level) {
		return
	}

	event := core.NewEvent(level, messageTemplate)
	l.bindArguments(event, messageTemplate, args)
	for _, p := range l.properties {
		event.AddPropertyIfAbsent(p.name, p.value)
	}

	l.pipeline.process(event)
}

// bindArguments pairs template placeholders with args positionally. A
// trailing error argument beyond the placeholders becomes the event's
// exception.
func (l *Logger) bindArguments(event *core.Event, messageTemplate string, args []any) {
	names := parser.ExtractPropertyNames(messageTemplate)
	n := len(names)
	if len(args) < n {
		n = len(args)
	}
	for i := 0; i < n; i++ {
		event.AddPropertyIfAbsent(names[i], args[i])
	}

	rest := args[n:]
	if len(rest) > 0 {
		if err, ok := rest[len(rest)-1].(error); ok {
			event.Exception = err
			rest = rest[:len(rest)-1]
		}
	}
	if len(rest) > 0 && selflog.IsEnabled() {
		selflog.Printf("[logger] template %q has %d placeholders but %d surplus arguments",
			messageTemplate, len(names), len(rest))
	}
}

// ForContext returns a logger that adds the property to every event it
// emits. The derived logger shares the pipeline, level switch, and sinks.
func (l *Logger) ForContext(name string, value any) *Logger {
	child := *l
	child.properties = append(l.properties[:len(l.properties):len(l.properties)],
		contextProperty{name: name, value: value})
	return &child
}

// With returns a logger carrying the given key-value pairs. Keys must be
// strings; an odd trailing argument is ignored.
func (l *Logger) With(args ...any) *Logger {
	props := l.properties[:len(l.properties):len(l.properties)]
	for i := 0; i+1 < len(args); i += 2 {
		name, ok := args[i].(string)
		if !ok {
			continue
		}
		props = append(props, contextProperty{name: name, value: args[i+1]})
	}
	child := *l
	child.properties = props
	return &child
}

// LevelSwitch returns the shared global minimum-level switch.
func (l *Logger) LevelSwitch() *LevelSwitch {
	return l.levels
}

// Activations reports the health gate's verdict for every configured sink.
func (l *Logger) Activations() []Activation {
	return l.registry.Activations()
}

// Close drains every buffered sink within the context deadline, flushes
// and closes the destinations, and reports events that could not be
// delivered. Without a deadline, DefaultDrainTimeout applies. Idempotent;
// emitting after Close is a no-op.
func (l *Logger) Close(ctx context.Context) error {
	l.closeOnce.Do(func() {
		l.closed.Store(true)

		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, DefaultDrainTimeout)
			defer cancel()
		}

		// Drain buffered sinks first, while the inline diagnostic sinks
		// are still open to receive the drop warnings.
		for _, s := range l.registry.sinks {
			result, undelivered := s.drain(ctx)
			if result != core.FlushOK {
				l.diag.emit(core.WarningLevel,
					"Sink {SinkId} shutdown flush {Result}; {Dropped} events dropped",
					map[string]any{
						"SinkId":  s.id,
						"Result":  result.String(),
						"Dropped": undelivered,
					})
			}
		}

		var errs []error
		for i := len(l.registry.sinks) - 1; i >= 0; i-- {
			if err := l.registry.sinks[i].close(); err != nil {
				errs = append(errs, err)
			}
		}
		err := errors.Join(errs...)
		*l.closeErr = err
	})
	return *l.closeErr
}

// CloseWithTimeout is a convenience wrapper around Close with a fresh
// deadline.
func (l *Logger) CloseWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return l.Close(ctx)
}
