package enrichers

import (
	"os"

	"github.com/sluicekit/sluice/core"
)

// EnvironmentEnricher adds the value of an environment variable to events.
type EnvironmentEnricher struct {
	variableName string
	propertyName string
	cached       bool
	cachedValue  string
}

// NewEnvironmentEnricher creates an enricher that reads the variable on
// every event.
func NewEnvironmentEnricher(variableName, propertyName string) *EnvironmentEnricher {
	return &EnvironmentEnricher{
		variableName: variableName,
		propertyName: propertyName,
	}
}

// NewEnvironmentEnricherCached creates an enricher that reads the variable
// once, at construction.
func NewEnvironmentEnricherCached(variableName, propertyName string) *EnvironmentEnricher {
	return &EnvironmentEnricher{
		variableName: variableName,
		propertyName: propertyName,
		cached:       true,
		cachedValue:  os.Getenv(variableName),
	}
}

// Enrich adds the environment variable value to the event.
func (e *EnvironmentEnricher) Enrich(event *core.Event) {
	value := e.cachedValue
	if !e.cached {
		value = os.Getenv(e.variableName)
	}
	if value != "" {
		event.AddPropertyIfAbsent(e.propertyName, value)
	}
}

// CommonEnvironmentEnrichers returns enrichers for deployment-identity
// variables commonly present in service environments.
func CommonEnvironmentEnrichers() []core.Enricher {
	return []core.Enricher{
		NewEnvironmentEnricherCached("ENVIRONMENT", "Environment"),
		NewEnvironmentEnricherCached("SERVICE_NAME", "ServiceName"),
		NewEnvironmentEnricherCached("SERVICE_VERSION", "ServiceVersion"),
		NewEnvironmentEnricherCached("REGION", "Region"),
	}
}
