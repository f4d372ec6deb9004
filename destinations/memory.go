package destinations

import (
	"context"
	"sync"
	"time"

	"github.com/sluicekit/sluice/core"
)

// Memory records accepted events in memory. It is the observable endpoint
// used throughout the test suite, with scriptable failure and probe
// injection so delivery, gating, and recovery paths can be exercised
// without a real backend.
type Memory struct {
	mu     sync.RWMutex
	events []core.Event

	failWith    *core.DeliveryError // non-nil: reject every Accept
	failNext    int                 // reject this many Accepts, then succeed
	probeErr    error
	flushDelay  time.Duration
	acceptDelay time.Duration
	accepted    int
	rejected    int
}

// NewMemory creates an empty memory destination.
func NewMemory() *Memory {
	return &Memory{}
}

// FailWith makes every subsequent Accept reject with the given code.
func (m *Memory) FailWith(code, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = &core.DeliveryError{Code: code, Message: message}
}

// FailNext makes the next n Accepts reject with the given code.
func (m *Memory) FailNext(n int, code, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = &core.DeliveryError{Code: code, Message: message}
	m.failNext = n
}

// Succeed clears any injected failure.
func (m *Memory) Succeed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = nil
	m.failNext = 0
}

// FailProbe makes Probe return the given error.
func (m *Memory) FailProbe(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probeErr = err
}

// DelayAccept makes each Accept take at least d; for exercising drain
// deadlines.
func (m *Memory) DelayAccept(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acceptDelay = d
}

// DelayFlush makes each Flush wait; for exercising shutdown deadlines.
func (m *Memory) DelayFlush(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushDelay = d
}

// Accept records the event, or rejects it if a failure is scripted.
func (m *Memory) Accept(event *core.Event) error {
	m.mu.RLock()
	delay := m.acceptDelay
	m.mu.RUnlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		err := m.failWith
		if m.failNext > 0 {
			m.failNext--
			if m.failNext == 0 {
				m.failWith = nil
			}
		}
		m.rejected++
		return err
	}

	// Copy so later pipeline stages cannot alias stored state.
	stored := *event
	if event.Properties != nil {
		stored.Properties = make(map[string]any, len(event.Properties))
		for k, v := range event.Properties {
			stored.Properties[k] = v
		}
	}
	m.events = append(m.events, stored)
	m.accepted++
	return nil
}

// Probe returns the scripted probe error, if any.
func (m *Memory) Probe(ctx context.Context) error {
	m.mu.RLock()
	err := m.probeErr
	delay := m.flushDelay
	m.mu.RUnlock()
	if err != nil {
		return err
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Flush honors any scripted delay, bounded by ctx.
func (m *Memory) Flush(ctx context.Context) core.FlushResult {
	m.mu.RLock()
	delay := m.flushDelay
	m.mu.RUnlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return core.FlushTimedOut
		}
	}
	return core.FlushOK
}

// Close does nothing.
func (m *Memory) Close() error {
	return nil
}

// Events returns a copy of the recorded events.
func (m *Memory) Events() []core.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Event, len(m.events))
	copy(out, m.events)
	return out
}

// Count returns the number of recorded events.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// Rejected returns the number of rejected Accepts.
func (m *Memory) Rejected() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rejected
}

// LastEvent returns the most recent event, or nil.
func (m *Memory) LastEvent() *core.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.events) == 0 {
		return nil
	}
	event := m.events[len(m.events)-1]
	return &event
}

// HasEvent reports whether any recorded event matches the predicate.
func (m *Memory) HasEvent(predicate func(*core.Event) bool) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.events {
		if predicate(&m.events[i]) {
			return true
		}
	}
	return false
}

// Clear drops all recorded events.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = m.events[:0]
}
