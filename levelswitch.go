// Package sluice is a structured-event fan-out pipeline. Events are
// enriched with contextual properties, gated by a shared minimum level,
// and dispatched to independently configured sinks, each with its own
// severity threshold, startup health gate, and failure-recovery policy.
package sluice

import (
	"sync/atomic"

	"github.com/sluicekit/sluice/core"
)

// LevelSwitch is the process-wide minimum severity gate. Reads are a single
// atomic load, so it is cheap enough to consult once per event; writes (an
// operator raising or lowering verbosity at runtime) take effect for all
// subsequently emitted events.
//
// A LevelSwitch is always passed to its readers explicitly at construction.
type LevelSwitch struct {
	level atomic.Int32
}

// NewLevelSwitch creates a level switch with the specified initial minimum.
func NewLevelSwitch(initial core.Level) *LevelSwitch {
	ls := &LevelSwitch{}
	ls.SetLevel(initial)
	return ls
}

// Level returns the current minimum level.
func (ls *LevelSwitch) Level() core.Level {
	return core.Level(ls.level.Load())
}

// SetLevel updates the minimum level. Takes effect immediately.
func (ls *LevelSwitch) SetLevel(level core.Level) {
	ls.level.Store(int32(level))
}

// IsEnabled returns true if events at the specified level pass the switch.
func (ls *LevelSwitch) IsEnabled(level core.Level) bool {
	return level >= ls.Level()
}

// Verbose sets the minimum level to Verbose.
func (ls *LevelSwitch) Verbose() *LevelSwitch {
	ls.SetLevel(core.VerboseLevel)
	return ls
}

// Debug sets the minimum level to Debug.
func (ls *LevelSwitch) Debug() *LevelSwitch {
	ls.SetLevel(core.DebugLevel)
	return ls
}

// Information sets the minimum level to Information.
func (ls *LevelSwitch) Information() *LevelSwitch {
	ls.SetLevel(core.InformationLevel)
	return ls
}

// Warning sets the minimum level to Warning.
func (ls *LevelSwitch) Warning() *LevelSwitch {
	ls.SetLevel(core.WarningLevel)
	return ls
}

// Error sets the minimum level to Error.
func (ls *LevelSwitch) Error() *LevelSwitch {
	ls.SetLevel(core.ErrorLevel)
	return ls
}

// Fatal sets the minimum level to Fatal.
func (ls *LevelSwitch) Fatal() *LevelSwitch {
	ls.SetLevel(core.FatalLevel)
	return ls
}
