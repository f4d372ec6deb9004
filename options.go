package sluice

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sluicekit/sluice/core"
	"github.com/sluicekit/sluice/enrichers"
	"github.com/sluicekit/sluice/projection"
)

// DestinationFactory constructs a destination from its opaque connection
// parameter. Factories should be cheap; real I/O belongs in Probe.
type DestinationFactory func(connection string) (core.Destination, error)

type sinkDef struct {
	id           string
	minimumLevel core.Level
	dest         core.Destination
	connection   string
	factory      DestinationFactory
	gated        bool
	policy       FailurePolicy
	buffer       *BufferOptions
	probeTimeout time.Duration
}

type builderConfig struct {
	levels       *LevelSwitch
	initialLevel core.Level
	enrichers    []core.Enricher
	projections  *projection.Registry
	sinkDefs     []sinkDef
	fatal        func(*FailureRecord)
	probeTimeout time.Duration
}

// Option configures the pipeline under construction.
type Option func(*builderConfig)

// WithMinimumLevel sets the initial global minimum level. Ignored when an
// explicit level switch is supplied.
func WithMinimumLevel(level core.Level) Option {
	return func(c *builderConfig) {
		c.initialLevel = level
	}
}

// WithLevelSwitch wires a shared level switch into the pipeline, letting
// the caller retain a handle for runtime adjustment.
func WithLevelSwitch(ls *LevelSwitch) Option {
	return func(c *builderConfig) {
		c.levels = ls
	}
}

// WithEnricher appends enrichers to the chain, in call order. Each
// enricher sees the properties added by its predecessors.
func WithEnricher(enricher ...core.Enricher) Option {
	return func(c *builderConfig) {
		c.enrichers = append(c.enrichers, enricher...)
	}
}

// WithProperty adds a constant property to every event.
func WithProperty(name string, value any) Option {
	return func(c *builderConfig) {
		c.enrichers = append(c.enrichers, enrichers.NewConstantEnricher(name, value))
	}
}

// WithProjections wires a projection registry, applied once per event at
// enrichment finalization.
func WithProjections(registry *projection.Registry) Option {
	return func(c *builderConfig) {
		c.projections = registry
	}
}

// WithProjection registers a single tag projection, creating the registry
// if needed.
func WithProjection(tag string, fn projection.Func) Option {
	return func(c *builderConfig) {
		if c.projections == nil {
			c.projections = projection.NewRegistry()
		}
		c.projections.Register(tag, fn)
	}
}

// WithFatalHandler sets the handler invoked when a sink with an
// EscalateAction rejects an event. The default handler panics, aborting
// the process unless the caller recovers.
func WithFatalHandler(fn func(*FailureRecord)) Option {
	return func(c *builderConfig) {
		c.fatal = fn
	}
}

// WithProbeTimeout overrides the default health-probe timeout for all
// gated sinks.
func WithProbeTimeout(timeout time.Duration) Option {
	return func(c *builderConfig) {
		c.probeTimeout = timeout
	}
}

// WithSink registers a sink over an already constructed destination. If
// the destination implements core.Prober it is still health-gated at
// startup.
func WithSink(id string, dest core.Destination, opts ...SinkOption) Option {
	return func(c *builderConfig) {
		def := sinkDef{
			id:           id,
			minimumLevel: core.VerboseLevel,
			dest:         dest,
			policy:       DefaultFailurePolicy(),
		}
		for _, opt := range opts {
			opt(&def)
		}
		c.sinkDefs = append(c.sinkDefs, def)
	}
}

// WithGatedSink registers a sink whose destination is built from a
// connection parameter. An empty connection skips the sink silently; a
// failed probe skips it with one recorded diagnostic.
func WithGatedSink(id, connection string, factory DestinationFactory, opts ...SinkOption) Option {
	return func(c *builderConfig) {
		def := sinkDef{
			id:           id,
			minimumLevel: core.VerboseLevel,
			connection:   connection,
			factory:      factory,
			gated:        true,
			policy:       DefaultFailurePolicy(),
		}
		for _, opt := range opts {
			opt(&def)
		}
		c.sinkDefs = append(c.sinkDefs, def)
	}
}

// SinkOption configures a single sink.
type SinkOption func(*sinkDef)

// SinkMinimumLevel sets the sink-local severity threshold.
func SinkMinimumLevel(level core.Level) SinkOption {
	return func(d *sinkDef) {
		d.minimumLevel = level
	}
}

// SinkPolicy replaces the sink's failure actions. The record step is
// always performed even when not listed.
func SinkPolicy(actions ...FailureAction) SinkOption {
	return func(d *sinkDef) {
		d.policy = FailurePolicy{Actions: actions}
	}
}

// SinkBuffered moves delivery onto a background worker with the given
// queue, preserving per-producer submission order.
func SinkBuffered(opts BufferOptions) SinkOption {
	return func(d *sinkDef) {
		o := opts
		d.buffer = &o
	}
}

// SinkProbeTimeout overrides the health-probe timeout for this sink.
func SinkProbeTimeout(timeout time.Duration) SinkOption {
	return func(d *sinkDef) {
		d.probeTimeout = timeout
	}
}

// New constructs the pipeline: sinks are health-gated in configuration
// order, the registry is sealed, and a Logger over the shared level switch
// is returned. Construction is the only stage allowed to fail hard.
func New(opts ...Option) (*Logger, error) {
	cfg := &builderConfig{
		initialLevel: core.InformationLevel,
		probeTimeout: DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.levels == nil {
		cfg.levels = NewLevelSwitch(cfg.initialLevel)
	}
	if cfg.fatal == nil {
		cfg.fatal = func(rec *FailureRecord) {
			panic(&escalatedError{rec: rec})
		}
	}

	registry := &Registry{}
	diag := &diagnostics{}
	seen := make(map[string]bool)

	for _, def := range cfg.sinkDefs {
		if def.id == "" {
			return nil, fmt.Errorf("sluice: sink with empty id")
		}
		if seen[def.id] {
			return nil, fmt.Errorf("sluice: duplicate sink id %q", def.id)
		}
		seen[def.id] = true

		dest, activation := activateSink(def, cfg.probeTimeout, diag)
		registry.activations = append(registry.activations, activation)
		if activation.State != Activated {
			continue
		}

		s := &Sink{
			id:           def.id,
			minimumLevel: def.minimumLevel,
			dest:         dest,
			enabled:      true,
		}
		s.handler = &failureHandler{
			sinkID: def.id,
			policy: def.policy.normalize(),
			diag:   diag,
			fatal:  cfg.fatal,
		}
		if def.buffer != nil {
			s.buffer = newBufferedDelivery(s, *def.buffer)
		} else {
			diag.add(s)
		}
		registry.sinks = append(registry.sinks, s)
	}

	var closeErr error
	logger := &Logger{
		levels: cfg.levels,
		pipeline: &pipeline{
			enrichers:   cfg.enrichers,
			projections: cfg.projections,
			registry:    registry,
		},
		registry:  registry,
		diag:      diag,
		closed:    &atomic.Bool{},
		closeOnce: &sync.Once{},
		closeErr:  &closeErr,
	}
	return logger, nil
}

// activateSink runs the health gate for one configured sink. Probes run
// exactly once; an unreachable destination is skipped for the process
// lifetime with a single diagnostic through the sinks activated so far.
func activateSink(def sinkDef, defaultTimeout time.Duration, diag *diagnostics) (core.Destination, Activation) {
	dest := def.dest

	if def.gated {
		if def.connection == "" {
			return nil, Activation{SinkID: def.id, State: SkippedNotConfigured}
		}
		built, err := def.factory(def.connection)
		if err != nil {
			diag.emit(core.ErrorLevel,
				"Sink {SinkId} skipped: destination could not be constructed: {Reason}",
				map[string]any{"SinkId": def.id, "Reason": err.Error()})
			return nil, Activation{SinkID: def.id, State: SkippedUnreachable, Reason: err}
		}
		dest = built
	}

	timeout := def.probeTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if err := probeDestination(dest, timeout); err != nil {
		_ = dest.Close()
		diag.emit(core.ErrorLevel,
			"Sink {SinkId} skipped: destination unreachable: {Reason}",
			map[string]any{"SinkId": def.id, "Reason": err.Error()})
		return nil, Activation{SinkID: def.id, State: SkippedUnreachable, Reason: err}
	}

	return dest, Activation{SinkID: def.id, State: Activated}
}
