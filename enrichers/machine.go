package enrichers

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/sluicekit/sluice/core"
)

// MachineNameEnricher adds the host name to events.
type MachineNameEnricher struct {
	propertyName string
	machineName  string
	once         sync.Once
}

// NewMachineNameEnricher creates a machine name enricher using the
// "MachineName" property.
func NewMachineNameEnricher() *MachineNameEnricher {
	return &MachineNameEnricher{propertyName: "MachineName"}
}

// Enrich adds the host name to the event.
func (me *MachineNameEnricher) Enrich(event *core.Event) {
	me.once.Do(func() {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		me.machineName = hostname
	})
	event.AddPropertyIfAbsent(me.propertyName, me.machineName)
}

// ProcessEnricher adds the process id and executable name to events.
type ProcessEnricher struct {
	processID   int
	processName string
	once        sync.Once
}

// NewProcessEnricher creates a process enricher.
func NewProcessEnricher() *ProcessEnricher {
	return &ProcessEnricher{}
}

// Enrich adds ProcessId and ProcessName to the event.
func (pe *ProcessEnricher) Enrich(event *core.Event) {
	pe.once.Do(func() {
		pe.processID = os.Getpid()
		pe.processName = filepath.Base(os.Args[0])
	})
	event.AddPropertyIfAbsent("ProcessId", pe.processID)
	event.AddPropertyIfAbsent("ProcessName", pe.processName)
}
