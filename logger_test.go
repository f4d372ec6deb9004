package sluice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sluicekit/sluice/core"
	"github.com/sluicekit/sluice/destinations"
	"github.com/sluicekit/sluice/enrichers"
	"github.com/sluicekit/sluice/projection"
)

func TestGlobalThresholdGatesDispatch(t *testing.T) {
	mem := destinations.NewMemory()
	log, err := New(
		WithMinimumLevel(core.WarningLevel),
		WithSink("memory", mem),
	)
	require.NoError(t, err)
	defer log.CloseWithTimeout(time.Second)

	log.Information("below threshold")
	log.Warning("at threshold")
	log.Error("above threshold")

	require.Equal(t, 2, mem.Count())
	assert.Equal(t, "at threshold", mem.Events()[0].RenderedMessage)
}

func TestLoweringThresholdAdmitsSubsequentEvents(t *testing.T) {
	mem := destinations.NewMemory()
	ls := NewLevelSwitch(core.ErrorLevel)
	log, err := New(
		WithLevelSwitch(ls),
		WithSink("memory", mem),
	)
	require.NoError(t, err)
	defer log.CloseWithTimeout(time.Second)

	log.Debug("blocked")
	require.Equal(t, 0, mem.Count())

	ls.Debug()
	log.Debug("admitted")

	require.Equal(t, 1, mem.Count())
	assert.Equal(t, "admitted", mem.Events()[0].RenderedMessage)
}

func TestSinkLevelIndependentOfGlobal(t *testing.T) {
	verbose := destinations.NewMemory()
	errorsOnly := destinations.NewMemory()
	log, err := New(
		WithMinimumLevel(core.VerboseLevel),
		WithSink("verbose", verbose),
		WithSink("errors", errorsOnly, SinkMinimumLevel(core.ErrorLevel)),
	)
	require.NoError(t, err)
	defer log.CloseWithTimeout(time.Second)

	log.Warning("warning event")
	log.Error("error event")

	assert.Equal(t, 2, verbose.Count())
	require.Equal(t, 1, errorsOnly.Count(), "a Warning never reaches a sink with minimum Error")
	assert.Equal(t, "error event", errorsOnly.Events()[0].RenderedMessage)
}

func TestSinkIsolation(t *testing.T) {
	failing := destinations.NewMemory()
	failing.FailWith(core.ErrCodeWriteFailed, "backend down")
	healthy := destinations.NewMemory()
	diag := destinations.NewMemory()

	log, err := New(
		WithMinimumLevel(core.VerboseLevel),
		WithSink("diag", diag, SinkMinimumLevel(core.FatalLevel)),
		WithSink("failing", failing),
		WithSink("healthy", healthy),
	)
	require.NoError(t, err)
	defer log.CloseWithTimeout(time.Second)

	for i := 0; i < 5; i++ {
		log.Information("event {n}", i)
	}

	require.Equal(t, 5, healthy.Count(), "a permanently failing sibling never blocks delivery")
	for i, event := range healthy.Events() {
		assert.Equal(t, fmt.Sprintf("event %d", i), event.RenderedMessage, "submission order preserved")
	}
	assert.Equal(t, 5, failing.Rejected())
}

func TestPanickingDestinationIsContained(t *testing.T) {
	panicking := panicDestination{}
	healthy := destinations.NewMemory()

	log, err := New(
		WithMinimumLevel(core.VerboseLevel),
		WithSink("panicking", panicking),
		WithSink("healthy", healthy),
	)
	require.NoError(t, err)
	defer log.CloseWithTimeout(time.Second)

	assert.NotPanics(t, func() {
		log.Information("survives")
	})
	assert.Equal(t, 1, healthy.Count())
}

func TestRenderedMessageAndProperties(t *testing.T) {
	mem := destinations.NewMemory()
	log, err := New(
		WithMinimumLevel(core.VerboseLevel),
		WithSink("memory", mem),
	)
	require.NoError(t, err)
	defer log.CloseWithTimeout(time.Second)

	log.Warning("disk at {pct}%", 91)

	require.Equal(t, 1, mem.Count())
	event := mem.Events()[0]
	assert.Equal(t, "disk at 91%", event.RenderedMessage)
	assert.Equal(t, "disk at {pct}%", event.MessageTemplate)
	assert.Equal(t, 91, event.Properties["pct"])
	assert.True(t, event.Frozen())
}

func TestTrailingErrorBecomesException(t *testing.T) {
	mem := destinations.NewMemory()
	log, err := New(
		WithMinimumLevel(core.VerboseLevel),
		WithSink("memory", mem),
	)
	require.NoError(t, err)
	defer log.CloseWithTimeout(time.Second)

	cause := errors.New("connection reset")
	log.Error("request {id} failed", "r-42", cause)

	require.Equal(t, 1, mem.Count())
	event := mem.Events()[0]
	assert.Equal(t, "r-42", event.Properties["id"])
	assert.Equal(t, cause, event.Exception)
}

func TestForContextAndWith(t *testing.T) {
	mem := destinations.NewMemory()
	log, err := New(
		WithMinimumLevel(core.VerboseLevel),
		WithSink("memory", mem),
	)
	require.NoError(t, err)
	defer log.CloseWithTimeout(time.Second)

	log.ForContext("RequestId", "abc").Information("scoped")
	log.With("UserId", 9, "Tenant", "acme").Information("paired")
	log.Information("bare")

	events := mem.Events()
	require.Len(t, events, 3)
	assert.Equal(t, "abc", events[0].Properties["RequestId"])
	assert.Equal(t, 9, events[1].Properties["UserId"])
	assert.Equal(t, "acme", events[1].Properties["Tenant"])
	assert.NotContains(t, events[2].Properties, "RequestId", "context never leaks to the parent logger")
}

func TestTemplateArgumentsBeatContextProperties(t *testing.T) {
	mem := destinations.NewMemory()
	log, err := New(
		WithMinimumLevel(core.VerboseLevel),
		WithSink("memory", mem),
	)
	require.NoError(t, err)
	defer log.CloseWithTimeout(time.Second)

	log.ForContext("pct", 10).Warning("disk at {pct}%", 91)

	require.Equal(t, 1, mem.Count())
	assert.Equal(t, 91, mem.Events()[0].Properties["pct"])
	assert.Equal(t, "disk at 91%", mem.Events()[0].RenderedMessage)
}

func TestEnrichmentChain(t *testing.T) {
	mem := destinations.NewMemory()
	log, err := New(
		WithMinimumLevel(core.VerboseLevel),
		WithEnricher(enrichers.NewConstantEnricher("App", "sluice")),
		WithProperty("Version", "1.0.0"),
		WithSink("memory", mem),
	)
	require.NoError(t, err)
	defer log.CloseWithTimeout(time.Second)

	log.Information("enriched")

	event := mem.Events()[0]
	assert.Equal(t, "sluice", event.Properties["App"])
	assert.Equal(t, "1.0.0", event.Properties["Version"])
}

func TestProjectionAppliedBeforeFreeze(t *testing.T) {
	mem := destinations.NewMemory()
	log, err := New(
		WithMinimumLevel(core.VerboseLevel),
		WithProjection("user", func(value any) any {
			return projection.Fields{"name": value.(string)}
		}),
		WithSink("memory", mem),
	)
	require.NoError(t, err)
	defer log.CloseWithTimeout(time.Second)

	log.Information("user {u} active", projection.Tagged{Tag: "user", Value: "ada"})

	event := mem.Events()[0]
	fields, ok := event.Properties["u"].(projection.Fields)
	require.True(t, ok, "tagged property was projected")
	assert.Equal(t, "ada", fields["name"])
}

func TestHealthGateNotConfigured(t *testing.T) {
	diag := destinations.NewMemory()
	log, err := New(
		WithMinimumLevel(core.VerboseLevel),
		WithSink("console", diag),
		WithGatedSink("index", "", func(string) (core.Destination, error) {
			t.Fatal("factory must not run for an absent connection")
			return nil, nil
		}),
	)
	require.NoError(t, err)
	defer log.CloseWithTimeout(time.Second)

	activations := log.Activations()
	require.Len(t, activations, 2)
	assert.Equal(t, Activated, activations[0].State)
	assert.Equal(t, SkippedNotConfigured, activations[1].State)
	assert.Equal(t, 0, diag.Count(), "not-configured sinks are skipped without noise")
}

func TestHealthGateUnreachable(t *testing.T) {
	diag := destinations.NewMemory()
	unreachable := destinations.NewMemory()
	unreachable.FailProbe(errors.New("connection refused"))

	log, err := New(
		WithMinimumLevel(core.VerboseLevel),
		WithSink("console", diag),
		WithGatedSink("index", "http://search:9200", func(string) (core.Destination, error) {
			return unreachable, nil
		}),
	)
	require.NoError(t, err)
	defer log.CloseWithTimeout(time.Second)

	activations := log.Activations()
	require.Len(t, activations, 2)
	assert.Equal(t, SkippedUnreachable, activations[1].State)
	require.Error(t, activations[1].Reason)

	require.Equal(t, 1, diag.Count(), "exactly one diagnostic through the activated sink")
	diagnostic := diag.Events()[0]
	assert.Equal(t, core.ErrorLevel, diagnostic.Level)
	assert.Contains(t, diagnostic.RenderedMessage, "index")
	assert.Contains(t, diagnostic.RenderedMessage, "connection refused")

	log.Error("high severity event")
	assert.Equal(t, 0, unreachable.Count(), "a skipped sink never sees accept")
}

func TestEndToEndUnreachableRemote(t *testing.T) {
	console := destinations.NewMemory()
	remote := destinations.NewMemory()
	remote.FailProbe(errors.New("no route to host"))

	log, err := New(
		WithMinimumLevel(core.InformationLevel),
		WithSink("console", console, SinkMinimumLevel(core.VerboseLevel)),
		WithGatedSink("remote-index", "http://search:9200",
			func(string) (core.Destination, error) { return remote, nil },
			SinkMinimumLevel(core.InformationLevel)),
	)
	require.NoError(t, err)
	defer log.CloseWithTimeout(time.Second)

	log.Warning("disk at {pct}%", 91)

	events := console.Events()
	require.Len(t, events, 2, "one startup diagnostic plus the warning")
	assert.Contains(t, events[0].RenderedMessage, "remote-index")
	assert.Equal(t, "disk at 91%", events[1].RenderedMessage)
	assert.Equal(t, 0, remote.Count())
}

func TestDuplicateSinkIDFailsConstruction(t *testing.T) {
	_, err := New(
		WithSink("a", destinations.NewMemory()),
		WithSink("a", destinations.NewMemory()),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate sink id")
}

func TestCloseIsIdempotentAndStopsEmission(t *testing.T) {
	mem := destinations.NewMemory()
	log, err := New(
		WithMinimumLevel(core.VerboseLevel),
		WithSink("memory", mem),
	)
	require.NoError(t, err)

	log.Information("before close")
	require.NoError(t, log.Close(context.Background()))
	require.NoError(t, log.Close(context.Background()))

	log.Information("after close")
	assert.Equal(t, 1, mem.Count())
}

func TestShutdownDeadlineDropsAndWarnsOnce(t *testing.T) {
	diag := destinations.NewMemory()
	slow := destinations.NewMemory()
	slow.DelayAccept(20 * time.Millisecond)

	log, err := New(
		WithMinimumLevel(core.VerboseLevel),
		WithSink("console", diag, SinkMinimumLevel(core.WarningLevel)),
		WithSink("slow", slow, SinkBuffered(BufferOptions{Size: 2000})),
	)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		log.Information("queued event {n}", i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, log.Close(ctx))

	assert.Less(t, slow.Count(), 1000, "the deadline expired before the queue drained")

	warnings := 0
	for _, event := range diag.Events() {
		if strings.Contains(event.MessageTemplate, "shutdown flush") {
			warnings++
			assert.Equal(t, core.WarningLevel, event.Level)
			assert.Contains(t, event.RenderedMessage, "slow")
		}
	}
	assert.Equal(t, 1, warnings, "the drop warning is recorded exactly once")
}

// panicDestination always panics on accept.
type panicDestination struct{}

func (panicDestination) Accept(*core.Event) error               { panic("destination bug") }
func (panicDestination) Flush(context.Context) core.FlushResult { return core.FlushOK }
func (panicDestination) Close() error                           { return nil }
