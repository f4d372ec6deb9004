package sluice

import (
	"context"

	"github.com/sluicekit/sluice/core"
	"github.com/sluicekit/sluice/selflog"
)

// Sink is one registered destination: the destination handle plus the
// sink-local severity threshold, failure policy, and delivery mode. Sinks
// are created during construction, health-checked once, and immutable for
// the life of the pipeline.
type Sink struct {
	id           string
	minimumLevel core.Level
	dest         core.Destination
	enabled      bool
	handler      *failureHandler
	buffer       *bufferedDelivery // nil for inline sinks
}

// ID returns the sink's unique name.
func (s *Sink) ID() string { return s.id }

// MinimumLevel returns the sink-local severity threshold.
func (s *Sink) MinimumLevel() core.Level { return s.minimumLevel }

// Enabled reports whether the health gate activated this sink.
func (s *Sink) Enabled() bool { return s.enabled }

// Buffered reports whether delivery runs on a background worker.
func (s *Sink) Buffered() bool { return s.buffer != nil }

// emit hands the event to this sink. Inline sinks deliver on the calling
// goroutine; buffered sinks enqueue and return immediately.
func (s *Sink) emit(event *core.Event) {
	if s.buffer != nil {
		s.buffer.enqueue(event)
		return
	}
	s.deliver(event)
}

// deliver performs one Accept and routes any rejection to the failure
// handler. Panics in a destination are contained here so one sink can
// never take down the producer or a sibling sink.
func (s *Sink) deliver(event *core.Event) {
	defer func() {
		if r := recover(); r != nil {
			if esc, ok := r.(*escalatedError); ok {
				// Raised by the failure chain, not the destination.
				panic(esc)
			}
			if selflog.IsEnabled() {
				selflog.Printf("[sink] %s panicked on accept: %v", s.id, r)
			}
			s.handler.onFailure(event, core.NewDeliveryError(core.ErrCodeRejected, "panic: %v", r))
		}
	}()

	if err := s.dest.Accept(event); err != nil {
		s.handler.onFailure(event, err)
	}
}

// deliverBatch delivers a drained batch, preferring the destination's batch
// contract. A batch-level rejection is reported per event.
func (s *Sink) deliverBatch(events []*core.Event) {
	if len(events) == 0 {
		return
	}
	ba, ok := s.dest.(core.BatchAccepter)
	if !ok {
		for _, event := range events {
			s.deliver(event)
		}
		return
	}

	defer func() {
		if r := recover(); r != nil {
			if esc, ok := r.(*escalatedError); ok {
				panic(esc)
			}
			if selflog.IsEnabled() {
				selflog.Printf("[sink] %s panicked on batch accept: %v", s.id, r)
			}
			err := core.NewDeliveryError(core.ErrCodeRejected, "panic: %v", r)
			for _, event := range events {
				s.handler.onFailure(event, err)
			}
		}
	}()

	if err := ba.AcceptBatch(events); err != nil {
		for _, event := range events {
			s.handler.onFailure(event, err)
		}
	}
}

// drain gives a buffered sink a bounded window to flush its queue, then
// flushes the destination itself. Inline sinks only flush the destination.
func (s *Sink) drain(ctx context.Context) (core.FlushResult, int) {
	if s.buffer != nil {
		return s.buffer.drain(ctx)
	}
	return s.dest.Flush(ctx), 0
}

func (s *Sink) close() error {
	return s.dest.Close()
}
