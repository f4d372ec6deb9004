package core

import (
	"context"
	"errors"
	"fmt"
)

// FlushResult reports the outcome of a bounded flush.
type FlushResult int

const (
	// FlushOK means every pending event was delivered.
	FlushOK FlushResult = iota

	// FlushPartial means some pending events were delivered before the
	// deadline expired.
	FlushPartial

	// FlushTimedOut means the deadline expired before anything could be
	// delivered.
	FlushTimedOut
)

// String returns the label for the flush result.
func (r FlushResult) String() string {
	switch r {
	case FlushOK:
		return "ok"
	case FlushPartial:
		return "partial"
	case FlushTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// Destination is the narrow contract the pipeline depends on for delivering
// events to the outside world. How a destination physically stores bytes is
// its own business.
type Destination interface {
	// Accept delivers a single event. A non-nil error means the event was
	// rejected; the error should be (or wrap) a *DeliveryError.
	Accept(event *Event) error

	// Flush pushes any internally buffered state out, bounded by ctx.
	Flush(ctx context.Context) FlushResult

	// Close releases resources held by the destination.
	Close() error
}

// BatchAccepter is implemented by destinations that can deliver a batch in
// one round-trip. Buffered sinks use it when draining their queue.
type BatchAccepter interface {
	// AcceptBatch delivers events as a unit. A non-nil error means the
	// whole batch was rejected.
	AcceptBatch(events []*Event) error
}

// Prober is implemented by destinations that can verify connectivity before
// activation. Destinations without a Prober are assumed reachable.
type Prober interface {
	// Probe performs a bounded connectivity check.
	Probe(ctx context.Context) error
}

// Well-known delivery error codes.
const (
	ErrCodePayloadTooLarge = "payload_too_large"
	ErrCodeWriteFailed     = "write_failed"
	ErrCodeClosed          = "closed"
	ErrCodeRejected        = "rejected"
	ErrCodeUnreachable     = "unreachable"
)

// DeliveryError describes a per-event rejection from a destination.
type DeliveryError struct {
	// Code identifies the failure class, e.g. "payload_too_large".
	Code string

	// Message is the destination's human-readable detail.
	Message string
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed (%s): %s", e.Code, e.Message)
}

// NewDeliveryError creates a delivery error with the given code.
func NewDeliveryError(code, format string, args ...any) *DeliveryError {
	return &DeliveryError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsDeliveryError extracts a *DeliveryError from err, wrapping unknown
// errors under the "rejected" code so failure policies always see one.
func AsDeliveryError(err error) *DeliveryError {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de
	}
	return &DeliveryError{Code: ErrCodeRejected, Message: err.Error()}
}
