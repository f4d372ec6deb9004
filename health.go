package sluice

import (
	"context"
	"time"

	"github.com/sluicekit/sluice/core"
)

// DefaultProbeTimeout bounds each startup connectivity probe.
const DefaultProbeTimeout = 5 * time.Second

// ActivationState is the health gate's verdict for one configured sink.
type ActivationState int

const (
	// Activated means the sink participates in dispatch.
	Activated ActivationState = iota

	// SkippedNotConfigured means the sink's connection parameter was
	// absent. Not an error; no diagnostic is recorded.
	SkippedNotConfigured

	// SkippedUnreachable means the startup probe failed or timed out. One
	// diagnostic is recorded through the sinks already activated.
	SkippedUnreachable
)

// String returns the label for the activation state.
func (s ActivationState) String() string {
	switch s {
	case Activated:
		return "activated"
	case SkippedNotConfigured:
		return "skipped (not configured)"
	case SkippedUnreachable:
		return "skipped (unreachable)"
	default:
		return "unknown"
	}
}

// Activation records the health gate's decision for a sink. Probes run
// exactly once, at construction; they are never retried.
type Activation struct {
	// SinkID names the configured sink.
	SinkID string

	// State is the gate's verdict.
	State ActivationState

	// Reason carries the probe error for SkippedUnreachable.
	Reason error
}

// probeDestination runs the destination's connectivity check under the
// timeout. Destinations without a Prober are assumed reachable: local
// destinations (console, file) fail fast on their own at construction.
func probeDestination(dest core.Destination, timeout time.Duration) error {
	prober, ok := dest.(core.Prober)
	if !ok {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return prober.Probe(ctx)
}
