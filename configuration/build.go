package configuration

import (
	"fmt"
	"sort"

	"github.com/sluicekit/sluice"
	"github.com/sluicekit/sluice/core"
	"github.com/sluicekit/sluice/destinations"
)

// Build constructs a Logger from configuration. Sinks are registered
// local-first (console and file before the gated remote kinds) so that the
// reliable sinks are already activated when a remote probe fails and needs
// somewhere to record its diagnostic. Extra options are appended after the
// configured ones, so code can add enrichers, callbacks, or more sinks.
func Build(cfg *Config, extra ...sluice.Option) (*sluice.Logger, error) {
	initialLevel, err := ParseLevel(cfg.MinimumLevel)
	if err != nil {
		return nil, fmt.Errorf("minimumLevel: %w", err)
	}

	redirects, err := buildRedirects(cfg.Destinations)
	if err != nil {
		return nil, err
	}

	opts := []sluice.Option{sluice.WithMinimumLevel(initialLevel)}
	for _, name := range orderedSinkNames(cfg.Sinks) {
		opt, err := sinkOption(name, cfg.Sinks[name], redirects)
		if err != nil {
			return nil, fmt.Errorf("sink %q: %w", name, err)
		}
		opts = append(opts, opt)
	}
	opts = append(opts, extra...)

	return sluice.New(opts...)
}

// orderedSinkNames yields a deterministic registration order: local kinds
// first, then gated kinds, alphabetical within each group.
func orderedSinkNames(sinks map[string]SinkConfig) []string {
	names := make([]string, 0, len(sinks))
	for name := range sinks {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		gi, gj := isGatedType(kindOf(names[i], sinks[names[i]])), isGatedType(kindOf(names[j], sinks[names[j]]))
		if gi != gj {
			return !gi
		}
		return names[i] < names[j]
	})
	return names
}

func kindOf(name string, sc SinkConfig) string {
	if sc.Type != "" {
		return sc.Type
	}
	return name
}

func isGatedType(kind string) bool {
	switch kind {
	case "index", "sqlite", "kafka":
		return true
	default:
		return false
	}
}

func sinkOption(name string, sc SinkConfig, redirects map[string]core.Destination) (sluice.Option, error) {
	sinkOpts, err := commonSinkOptions(sc, redirects)
	if err != nil {
		return nil, err
	}

	kind := kindOf(name, sc)
	switch kind {
	case "console":
		return sluice.WithSink(name, destinations.NewConsole(), sinkOpts...), nil

	case "file":
		if sc.Path == "" {
			return nil, fmt.Errorf("file sink requires a path")
		}
		dest, err := destinations.NewFile(sc.Path)
		if err != nil {
			return nil, err
		}
		return sluice.WithSink(name, dest, sinkOpts...), nil

	case "index":
		factory := func(connection string) (core.Destination, error) {
			return destinations.NewHTTPIndex(connection)
		}
		return sluice.WithGatedSink(name, sc.Connection, factory, sinkOpts...), nil

	case "sqlite":
		factory := func(connection string) (core.Destination, error) {
			return destinations.NewSQLite(connection)
		}
		return sluice.WithGatedSink(name, sc.Connection, factory, sinkOpts...), nil

	case "kafka":
		topic := sc.Topic
		if topic == "" {
			topic = "events"
		}
		factory := func(connection string) (core.Destination, error) {
			return destinations.NewKafka(connection, topic)
		}
		return sluice.WithGatedSink(name, sc.Connection, factory, sinkOpts...), nil

	default:
		return nil, fmt.Errorf("unknown sink type %q", kind)
	}
}

func commonSinkOptions(sc SinkConfig, redirects map[string]core.Destination) ([]sluice.SinkOption, error) {
	var sinkOpts []sluice.SinkOption

	if sc.MinimumLevel != "" {
		level, err := ParseLevel(sc.MinimumLevel)
		if err != nil {
			return nil, fmt.Errorf("minimumLevel: %w", err)
		}
		sinkOpts = append(sinkOpts, sluice.SinkMinimumLevel(level))
	}

	if sc.Buffer != nil {
		sinkOpts = append(sinkOpts, sluice.SinkBuffered(sluice.BufferOptions{
			Size:  sc.Buffer.Size,
			Batch: sc.Buffer.Batch,
		}))
	}

	if sc.Failure != nil {
		actions := []sluice.FailureAction{sluice.RecordAction{}}
		if sc.Failure.Redirect != "" {
			target, ok := redirects[sc.Failure.Redirect]
			if !ok {
				return nil, fmt.Errorf("redirect target %q is not declared under destinations", sc.Failure.Redirect)
			}
			actions = append(actions, sluice.RedirectAction{Target: target})
		}
		if sc.Failure.Fatal {
			actions = append(actions, sluice.EscalateAction{})
		}
		sinkOpts = append(sinkOpts, sluice.SinkPolicy(actions...))
	}

	return sinkOpts, nil
}

// buildRedirects constructs the named fallback destinations eagerly;
// redirect targets must be available even if the sink they back up never
// fails.
func buildRedirects(configs map[string]DestinationConfig) (map[string]core.Destination, error) {
	out := make(map[string]core.Destination, len(configs))
	for name, dc := range configs {
		dest, err := buildDestination(name, dc)
		if err != nil {
			return nil, fmt.Errorf("destination %q: %w", name, err)
		}
		out[name] = dest
	}
	return out, nil
}

func buildDestination(name string, dc DestinationConfig) (core.Destination, error) {
	kind := dc.Type
	if kind == "" {
		kind = name
	}
	switch kind {
	case "console":
		return destinations.NewConsole(), nil
	case "file":
		if dc.Path == "" {
			return nil, fmt.Errorf("file destination requires a path")
		}
		return destinations.NewFile(dc.Path)
	case "index":
		return destinations.NewHTTPIndex(dc.Connection)
	case "sqlite":
		return destinations.NewSQLite(dc.Connection)
	case "kafka":
		topic := dc.Topic
		if topic == "" {
			topic = "dead-letters"
		}
		return destinations.NewKafka(dc.Connection, topic)
	default:
		return nil, fmt.Errorf("unknown destination type %q", kind)
	}
}
