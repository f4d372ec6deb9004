// Package projection replaces rich property values with simplified shapes
// before an event reaches any destination, so destinations that cannot
// represent arbitrary structures still receive something legible.
//
// Values opt in by being wrapped in Tagged; the Registry maps a tag to a
// projection function. Resolution is a plain map lookup on the declared
// tag, never runtime type inspection.
package projection

import (
	"sync"

	"github.com/sluicekit/sluice/selflog"
)

// Tagged wraps a property value with the tag its projection is registered
// under.
type Tagged struct {
	// Tag names the value's declared kind, e.g. "user" or "http.request".
	Tag string

	// Value is the rich value to be projected.
	Value any
}

// Func converts a rich value into its destination-safe shape.
type Func func(value any) any

// Registry maps tags to projection functions. Registration happens during
// startup; lookups are concurrent-safe.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func

	warned sync.Map // tag -> struct{}, one selflog line per unknown tag
}

// NewRegistry creates an empty projection registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register associates a tag with a projection function. A later Register
// for the same tag replaces the earlier one.
func (r *Registry) Register(tag string, fn Func) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.funcs[tag] = fn
	r.mu.Unlock()
}

// Project applies the tag's projection to value. Unknown tags pass the
// value through unchanged.
func (r *Registry) Project(tag string, value any) any {
	r.mu.RLock()
	fn, ok := r.funcs[tag]
	r.mu.RUnlock()
	if !ok {
		if _, seen := r.warned.LoadOrStore(tag, struct{}{}); !seen && selflog.IsEnabled() {
			selflog.Printf("[projection] no projection registered for tag %q", tag)
		}
		return value
	}
	return fn(value)
}

// Apply resolves a property value: Tagged values are projected (or
// unwrapped when the tag is unknown), everything else is returned as-is.
func (r *Registry) Apply(value any) any {
	tagged, ok := value.(Tagged)
	if !ok {
		return value
	}
	return r.Project(tagged.Tag, tagged.Value)
}

// Fields is the common projected shape: a small set of named fields.
type Fields map[string]any
