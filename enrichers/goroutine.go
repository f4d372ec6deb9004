package enrichers

import (
	"runtime"
	"strconv"

	"github.com/sluicekit/sluice/core"
)

// GoroutineIDEnricher adds the emitting goroutine's id to events. Go does
// not expose goroutine ids, so this parses the id out of a stack header.
type GoroutineIDEnricher struct{}

// NewGoroutineIDEnricher creates a goroutine id enricher.
func NewGoroutineIDEnricher() *GoroutineIDEnricher {
	return &GoroutineIDEnricher{}
}

// Enrich adds GoroutineId to the event.
func (g *GoroutineIDEnricher) Enrich(event *core.Event) {
	if id, ok := goroutineID(); ok {
		event.AddPropertyIfAbsent("GoroutineId", id)
	}
}

func goroutineID() (int, bool) {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	stack := string(buf[:n])

	// The stack header is "goroutine <id> [...".
	const prefix = "goroutine "
	if len(stack) <= len(prefix) || stack[:len(prefix)] != prefix {
		return 0, false
	}
	for i := len(prefix); i < len(stack); i++ {
		if stack[i] == ' ' {
			id, err := strconv.Atoi(stack[len(prefix):i])
			return id, err == nil
		}
	}
	return 0, false
}
