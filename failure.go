package sluice

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sluicekit/sluice/core"
	"github.com/sluicekit/sluice/selflog"
)

// FailureRecord describes one rejected delivery and what was done about it.
type FailureRecord struct {
	// FailureID uniquely identifies this failure.
	FailureID string

	// Timestamp is when the failure was observed.
	Timestamp time.Time

	// SinkID names the sink whose destination rejected the event.
	SinkID string

	// Event is the original event. Frozen; read-only.
	Event *core.Event

	// ErrorCode and ErrorMessage come from the destination's DeliveryError.
	ErrorCode    string
	ErrorMessage string

	// Actions lists what the failure handler did, in execution order,
	// e.g. ["recorded", "redirected"].
	Actions []string
}

// FailureAction is one step of a sink's failure policy. The concrete
// variants are RecordAction, CallbackAction, RedirectAction, and
// EscalateAction; they always execute in that order, each unconditionally,
// regardless of whether an earlier action failed.
type FailureAction interface {
	isFailureAction()
}

// RecordAction appends the failure to the pipeline's diagnostic channel.
// Every policy performs this step whether or not it is listed.
type RecordAction struct{}

func (RecordAction) isFailureAction() {}

// CallbackAction invokes a caller-supplied handler with the failure detail.
// Errors and panics inside the handler are caught and recorded, never
// re-raised.
type CallbackAction struct {
	Handler func(*FailureRecord)
}

func (CallbackAction) isFailureAction() {}

// RedirectAction projects the failing event into a reduced dead-letter
// document and delivers it to a fallback destination.
type RedirectAction struct {
	Target core.Destination
}

func (RedirectAction) isFailureAction() {}

// EscalateAction surfaces the failure as a process-level error through the
// pipeline's fatal handler. Reserve it for sinks whose unavailability must
// stop processing.
type EscalateAction struct{}

func (EscalateAction) isFailureAction() {}

// FailurePolicy is the per-sink list of recovery actions.
type FailurePolicy struct {
	Actions []FailureAction
}

// DefaultFailurePolicy records failures and does nothing else: every sink
// is fire-and-forget unless explicitly configured otherwise.
func DefaultFailurePolicy() FailurePolicy {
	return FailurePolicy{Actions: []FailureAction{RecordAction{}}}
}

// normalized resolves the policy into its fixed execution order, folding
// duplicates and guaranteeing the record step.
type normalizedPolicy struct {
	callback func(*FailureRecord)
	redirect core.Destination
	escalate bool
}

func (p FailurePolicy) normalize() normalizedPolicy {
	var n normalizedPolicy
	for _, action := range p.Actions {
		switch a := action.(type) {
		case RecordAction:
			// Always performed; nothing to resolve.
		case CallbackAction:
			if n.callback == nil {
				n.callback = a.Handler
			}
		case RedirectAction:
			if n.redirect == nil {
				n.redirect = a.Target
			}
		case EscalateAction:
			n.escalate = true
		}
	}
	return n
}

// DeadLetter is the reduced projection of a failing event, carrying just
// enough to be legible at a fallback destination. Event properties are
// deliberately excluded: an oversized or malformed property is the usual
// reason the original delivery was rejected.
type DeadLetter struct {
	FailureID    string    `json:"failure_id"`
	Timestamp    time.Time `json:"timestamp"`
	Level        string    `json:"level"`
	Message      string    `json:"message"`
	Template     string    `json:"template"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
	Exception    string    `json:"exception,omitempty"`
	SinkID       string    `json:"sink"`
}

// NewDeadLetter projects a failure record into its dead-letter document.
func NewDeadLetter(rec *FailureRecord) DeadLetter {
	dl := DeadLetter{
		FailureID:    rec.FailureID,
		Timestamp:    rec.Event.Timestamp,
		Level:        rec.Event.Level.String(),
		Message:      rec.Event.RenderedMessage,
		Template:     rec.Event.MessageTemplate,
		ErrorCode:    rec.ErrorCode,
		ErrorMessage: rec.ErrorMessage,
		SinkID:       rec.SinkID,
	}
	if rec.Event.Exception != nil {
		dl.Exception = rec.Event.Exception.Error()
	}
	return dl
}

// AsEvent re-expresses the dead letter as an event so it can travel through
// the ordinary destination contract.
func (dl DeadLetter) AsEvent() *core.Event {
	event := &core.Event{
		Timestamp:       dl.Timestamp,
		Level:           parseLevelLabel(dl.Level),
		MessageTemplate: dl.Template,
		RenderedMessage: dl.Message,
		Properties: map[string]any{
			"FailureId":    dl.FailureID,
			"ErrorCode":    dl.ErrorCode,
			"ErrorMessage": dl.ErrorMessage,
			"SinkId":       dl.SinkID,
		},
	}
	if dl.Exception != "" {
		event.Properties["Exception"] = dl.Exception
	}
	event.Freeze()
	return event
}

func parseLevelLabel(label string) core.Level {
	for l := core.VerboseLevel; l <= core.FatalLevel; l++ {
		if l.String() == label {
			return l
		}
	}
	return core.ErrorLevel
}

// failureHandler applies a sink's normalized policy to each rejected event.
type failureHandler struct {
	sinkID string
	policy normalizedPolicy
	diag   *diagnostics
	fatal  func(*FailureRecord)
}

func (h *failureHandler) onFailure(event *core.Event, err error) {
	de := core.AsDeliveryError(err)
	rec := &FailureRecord{
		FailureID:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		SinkID:       h.sinkID,
		Event:        event,
		ErrorCode:    de.Code,
		ErrorMessage: de.Message,
	}

	h.record(rec)
	if h.policy.callback != nil {
		h.runCallback(rec)
	}
	if h.policy.redirect != nil {
		h.redirect(rec)
	}
	if h.policy.escalate {
		rec.Actions = append(rec.Actions, "escalated")
		h.fatal(rec)
	}
}

func (h *failureHandler) record(rec *FailureRecord) {
	rec.Actions = append(rec.Actions, "recorded")
	h.diag.emit(core.ErrorLevel,
		"Delivery to sink {SinkId} failed ({ErrorCode}): {ErrorMessage}",
		map[string]any{
			"SinkId":       rec.SinkID,
			"ErrorCode":    rec.ErrorCode,
			"ErrorMessage": rec.ErrorMessage,
			"FailureId":    rec.FailureID,
		})
}

func (h *failureHandler) runCallback(rec *FailureRecord) {
	defer func() {
		if r := recover(); r != nil {
			rec.Actions = append(rec.Actions, "callback-failed")
			if selflog.IsEnabled() {
				selflog.Printf("[failure] callback panic for sink %s: %v", h.sinkID, r)
			}
		}
	}()
	h.policy.callback(rec)
	rec.Actions = append(rec.Actions, "callback")
}

func (h *failureHandler) redirect(rec *FailureRecord) {
	defer func() {
		if r := recover(); r != nil {
			rec.Actions = append(rec.Actions, "redirect-failed")
			if selflog.IsEnabled() {
				selflog.Printf("[failure] redirect panic for sink %s: %v", h.sinkID, r)
			}
		}
	}()

	dl := NewDeadLetter(rec)
	if err := h.policy.redirect.Accept(dl.AsEvent()); err != nil {
		// Dead letters are best effort; a failing fallback is not retried.
		rec.Actions = append(rec.Actions, "redirect-failed")
		if selflog.IsEnabled() {
			selflog.Printf("[failure] redirect for sink %s rejected: %v", h.sinkID, err)
		}
		return
	}
	rec.Actions = append(rec.Actions, "redirected")
}

// errEscalated wraps an escalated failure for the default fatal handler.
type escalatedError struct {
	rec *FailureRecord
}

func (e *escalatedError) Error() string {
	return fmt.Sprintf("fatal sink %s: delivery failed (%s): %s",
		e.rec.SinkID, e.rec.ErrorCode, e.rec.ErrorMessage)
}
