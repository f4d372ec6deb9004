package sluice

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sluicekit/sluice/core"
	"github.com/sluicekit/sluice/selflog"
)

// BufferOptions configures a sink's background delivery.
type BufferOptions struct {
	// Size is the queue capacity. Default 1000.
	Size int

	// Batch is the maximum number of events handed to the destination per
	// delivery cycle. Default 1 (no batching).
	Batch int
}

func (o BufferOptions) withDefaults() BufferOptions {
	if o.Size <= 0 {
		o.Size = 1000
	}
	if o.Batch <= 0 {
		o.Batch = 1
	}
	return o
}

// DefaultDrainTimeout bounds the shutdown flush when the caller's context
// carries no deadline.
const DefaultDrainTimeout = 30 * time.Second

// bufferedDelivery drains a sink's FIFO queue on a single background
// worker, so one producer's events reach the destination in submission
// order and producers never wait on a network round-trip.
type bufferedDelivery struct {
	sink   *Sink
	opts   BufferOptions
	events chan *core.Event
	quit   chan struct{}
	abort  chan struct{}
	done   chan struct{}

	draining  atomic.Bool
	dropped   atomic.Uint64
	delivered atomic.Uint64
}

func newBufferedDelivery(s *Sink, opts BufferOptions) *bufferedDelivery {
	opts = opts.withDefaults()
	b := &bufferedDelivery{
		sink:   s,
		opts:   opts,
		events: make(chan *core.Event, opts.Size),
		quit:   make(chan struct{}),
		abort:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	go b.worker()
	return b
}

// enqueue queues the event without blocking. A full buffer drops the event
// and counts it; the first drop and every 1000th are noted via selflog.
func (b *bufferedDelivery) enqueue(event *core.Event) {
	if b.draining.Load() {
		b.dropped.Add(1)
		return
	}
	select {
	case b.events <- event:
	default:
		dropped := b.dropped.Add(1)
		if selflog.IsEnabled() && (dropped == 1 || dropped%1000 == 0) {
			selflog.Printf("[buffered] sink %s queue full, dropped %d events total", b.sink.id, dropped)
		}
	}
}

// drainAbortGrace bounds the wait for the worker to finish its in-flight
// delivery after an aborted drain.
const drainAbortGrace = time.Second

// drain stops intake, gives the worker until the context deadline to empty
// the queue, then flushes the destination. Events still queued when the
// deadline expires are dropped; the second return value is that count.
func (b *bufferedDelivery) drain(ctx context.Context) (core.FlushResult, int) {
	if !b.draining.CompareAndSwap(false, true) {
		return core.FlushOK, 0
	}

	deliveredBefore := b.delivered.Load()
	close(b.quit)

	select {
	case <-b.done:
		return b.sink.dest.Flush(ctx), 0
	case <-ctx.Done():
	}

	// Abort the worker rather than waiting on an unresponsive destination;
	// shutdown must not hang. The worker completes its in-flight delivery
	// before stopping, so the remainder is counted only once it is done
	// and can no longer shrink.
	close(b.abort)
	select {
	case <-b.done:
	case <-time.After(drainAbortGrace):
		// Destination wedged mid-Accept; the count below is approximate.
	}

	pending := len(b.events)
	b.dropped.Add(uint64(pending))
	if b.delivered.Load() > deliveredBefore {
		return core.FlushPartial, pending
	}
	return core.FlushTimedOut, pending
}

// Dropped returns the number of events lost to overflow or shutdown.
func (b *bufferedDelivery) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *bufferedDelivery) worker() {
	defer close(b.done)
	for b.cycle() {
	}
}

// cycle runs deliveries until shutdown or a recovered panic. An escalation
// raised by the failure chain re-panics out of the goroutine: it is a
// process-level failure, not a delivery problem. Anything else is logged
// and the loop resumes so one bad event cannot kill the sink for good.
func (b *bufferedDelivery) cycle() (again bool) {
	defer func() {
		if r := recover(); r != nil {
			if esc, ok := r.(*escalatedError); ok {
				panic(esc)
			}
			if selflog.IsEnabled() {
				selflog.Printf("[buffered] sink %s worker panic: %v", b.sink.id, r)
			}
			again = true
		}
	}()

	batch := make([]*core.Event, 0, b.opts.Batch)

	for {
		select {
		case event := <-b.events:
			batch = b.gather(batch, event)
			b.flush(batch)
			batch = batch[:0]

		case <-b.quit:
			for {
				select {
				case <-b.abort:
					return false
				case event := <-b.events:
					batch = b.gather(batch, event)
					b.flush(batch)
					batch = batch[:0]
				default:
					return false
				}
			}

		case <-b.abort:
			return false
		}
	}
}

// gather fills the batch with whatever is already queued, without waiting.
func (b *bufferedDelivery) gather(batch []*core.Event, first *core.Event) []*core.Event {
	batch = append(batch, first)
	for len(batch) < b.opts.Batch {
		select {
		case event := <-b.events:
			batch = append(batch, event)
		default:
			return batch
		}
	}
	return batch
}

func (b *bufferedDelivery) flush(batch []*core.Event) {
	b.sink.deliverBatch(batch)
	b.delivered.Add(uint64(len(batch)))
}
