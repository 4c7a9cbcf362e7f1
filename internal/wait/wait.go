// Package wait turns "a step is waiting on something external" into a
// first-class, schedulable state instead of a blocked goroutine. It backs
// the tool invoker's async flow and the UI handler's Confirm/Select modes.
package wait

import (
	"context"
	"sync"
	"time"

	streamyerrors "github.com/alexisbeaulieu97/streamy/pkg/errors"
	"github.com/alexisbeaulieu97/streamy/internal/events"
	"github.com/alexisbeaulieu97/streamy/internal/wfvalue"
)

// Kind identifies what a step is waiting on.
type Kind string

const (
	KindUI     Kind = "ui"
	KindTool   Kind = "tool"
	KindSignal Kind = "signal"
)

// TimeoutStrategy selects what happens when a wait's deadline elapses
// without a resume.
type TimeoutStrategy int

const (
	// TimeoutError rejects the future with a Timeout error.
	TimeoutError TimeoutStrategy = iota
	// TimeoutDefault resolves the future with a pre-set default value.
	TimeoutDefault
	// TimeoutIgnore re-arms the timer and leaves the wait active.
	TimeoutIgnore
)

// TimeoutConfig configures the strategy applied when a wait's timer fires.
type TimeoutConfig struct {
	Strategy TimeoutStrategy
	Default  wfvalue.Value
}

// Info describes an active wait, exposed to callers via GetWaitingInfo.
type Info struct {
	Kind      Kind
	TargetID  string
	StartTime time.Time
	Timeout   time.Duration
	Data      wfvalue.Value
}

// Result is delivered to a waiter's Future on resolution.
type Result struct {
	Value wfvalue.Value
	Err   error
}

// Future is a single-shot, externally-resolved result channel.
type Future struct {
	ch chan Result
}

// Wait blocks until the wait resolves (resume, cancel, or timeout) or ctx
// is done, whichever comes first.
func (f *Future) Wait(ctx context.Context) (wfvalue.Value, error) {
	select {
	case r := <-f.ch:
		return r.Value, r.Err
	case <-ctx.Done():
		return wfvalue.Null(), ctx.Err()
	}
}

type item struct {
	info      Info
	future    *Future
	timeout   TimeoutConfig
	timer     *time.Timer
	deadline  time.Time
	resolved  bool
}

// Manager owns every active wait for a single workflow instance.
type Manager struct {
	mu         sync.Mutex
	waiting    map[string]*item
	bus        *events.Bus
	instanceID string
}

// NewManager constructs an empty Manager that publishes wait lifecycle
// events to bus.
func NewManager(bus *events.Bus, instanceID string) *Manager {
	return &Manager{
		waiting:    make(map[string]*item),
		bus:        bus,
		instanceID: instanceID,
	}
}

// StartWait registers stepID as waiting on kind/targetID, optionally with a
// timeout, and returns a Future that resolves on resume/cancel/timeout. At
// most one active wait may exist per step; starting a second wait for a
// step already waiting replaces the first (the caller is responsible for
// that invariant at a higher level — the engine never does this).
func (m *Manager) StartWait(stepID string, kind Kind, targetID string, timeout time.Duration, data wfvalue.Value) *Future {
	return m.StartWaitWithConfig(stepID, kind, targetID, timeout, data, TimeoutConfig{Strategy: TimeoutError})
}

// StartWaitWithConfig is StartWait with an explicit timeout strategy.
func (m *Manager) StartWaitWithConfig(stepID string, kind Kind, targetID string, timeout time.Duration, data wfvalue.Value, cfg TimeoutConfig) *Future {
	m.mu.Lock()

	future := &Future{ch: make(chan Result, 1)}
	it := &item{
		info: Info{
			Kind:      kind,
			TargetID:  targetID,
			StartTime: time.Now(),
			Timeout:   timeout,
			Data:      data,
		},
		future:  future,
		timeout: cfg,
	}

	if timeout > 0 {
		it.deadline = it.info.StartTime.Add(timeout)
		it.timer = time.AfterFunc(timeout, func() { m.onTimeout(stepID) })
	}

	m.waiting[stepID] = it
	m.mu.Unlock()

	m.publish(events.KindWaitStarted, stepID, wfvalue.Map(map[string]wfvalue.Value{
		"kind":     wfvalue.String(string(kind)),
		"targetId": wfvalue.String(targetID),
	}))

	return future
}

func (m *Manager) onTimeout(stepID string) {
	m.mu.Lock()
	it, ok := m.waiting[stepID]
	if !ok || it.resolved {
		m.mu.Unlock()
		return
	}

	switch it.timeout.Strategy {
	case TimeoutDefault:
		it.resolved = true
		delete(m.waiting, stepID)
		m.mu.Unlock()
		it.future.ch <- Result{Value: it.timeout.Default}
		m.publish(events.KindWaitTimedOut, stepID, wfvalue.Map(map[string]wfvalue.Value{
			"strategy": wfvalue.String("default"),
		}))
	case TimeoutIgnore:
		it.deadline = time.Now().Add(it.info.Timeout)
		it.timer = time.AfterFunc(it.info.Timeout, func() { m.onTimeout(stepID) })
		m.mu.Unlock()
		m.publish(events.KindWaitTimedOut, stepID, wfvalue.Map(map[string]wfvalue.Value{
			"strategy": wfvalue.String("ignore"),
		}))
	default:
		it.resolved = true
		delete(m.waiting, stepID)
		m.mu.Unlock()
		ms := it.info.Timeout.Milliseconds()
		it.future.ch <- Result{Err: streamyerrors.NewTimeoutError(stepID, ms)}
		m.publish(events.KindWaitTimedOut, stepID, wfvalue.Map(map[string]wfvalue.Value{
			"strategy": wfvalue.String("error"),
		}))
	}
}

// ResumeWait resolves stepID's active wait with value, returning true if a
// wait existed. It is a no-op returning false if no wait is active.
func (m *Manager) ResumeWait(stepID string, value wfvalue.Value) bool {
	m.mu.Lock()
	it, ok := m.waiting[stepID]
	if !ok || it.resolved {
		m.mu.Unlock()
		return false
	}
	it.resolved = true
	if it.timer != nil {
		it.timer.Stop()
	}
	delete(m.waiting, stepID)
	m.mu.Unlock()

	it.future.ch <- Result{Value: value}
	m.publish(events.KindWaitResolved, stepID, wfvalue.Null())
	return true
}

// FailWait rejects stepID's active wait with an arbitrary error, returning
// true if a wait existed. Unlike CancelWait, the error is not wrapped as a
// CancelledError — it is used for external resolution paths that fail for
// a domain reason other than cancellation (e.g. respondToToolError).
func (m *Manager) FailWait(stepID string, err error) bool {
	m.mu.Lock()
	it, ok := m.waiting[stepID]
	if !ok || it.resolved {
		m.mu.Unlock()
		return false
	}
	it.resolved = true
	if it.timer != nil {
		it.timer.Stop()
	}
	delete(m.waiting, stepID)
	m.mu.Unlock()

	it.future.ch <- Result{Err: err}
	m.publish(events.KindWaitResolved, stepID, wfvalue.Map(map[string]wfvalue.Value{
		"error": wfvalue.String(err.Error()),
	}))
	return true
}

// CancelWait rejects stepID's active wait with a CancelledError carrying
// reason, returning true if a wait existed.
func (m *Manager) CancelWait(stepID string, reason string) bool {
	m.mu.Lock()
	it, ok := m.waiting[stepID]
	if !ok || it.resolved {
		m.mu.Unlock()
		return false
	}
	it.resolved = true
	if it.timer != nil {
		it.timer.Stop()
	}
	delete(m.waiting, stepID)
	m.mu.Unlock()

	it.future.ch <- Result{Err: streamyerrors.NewCancelledError(stepID, reason)}
	m.publish(events.KindWaitCancelled, stepID, wfvalue.Map(map[string]wfvalue.Value{
		"reason": wfvalue.String(reason),
	}))
	return true
}

// CancelAllWaits cancels every active wait, e.g. on workflow cancel.
func (m *Manager) CancelAllWaits(reason string) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.waiting))
	for id := range m.waiting {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.CancelWait(id, reason)
	}
}

// ExtendTimeout pushes an active wait's deadline forward by extraMs. If the
// resulting remaining time is non-positive, the timeout path fires
// immediately. A wait started without a timeout has no deadline and is
// left unchanged.
func (m *Manager) ExtendTimeout(stepID string, extraMs int64) {
	m.mu.Lock()
	it, ok := m.waiting[stepID]
	if !ok || it.resolved || it.deadline.IsZero() {
		m.mu.Unlock()
		return
	}
	if it.timer != nil {
		it.timer.Stop()
	}
	it.deadline = it.deadline.Add(time.Duration(extraMs) * time.Millisecond)
	remaining := time.Until(it.deadline)
	if remaining <= 0 {
		m.mu.Unlock()
		m.onTimeout(stepID)
		return
	}
	it.timer = time.AfterFunc(remaining, func() { m.onTimeout(stepID) })
	m.mu.Unlock()
}

// IsWaiting reports whether stepID has an active wait.
func (m *Manager) IsWaiting(stepID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.waiting[stepID]
	return ok
}

// GetWaitingInfo returns the Info for stepID's active wait, if any.
func (m *Manager) GetWaitingInfo(stepID string) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.waiting[stepID]
	if !ok {
		return Info{}, false
	}
	return it.info, true
}

// GetRemainingTime returns the time remaining before stepID's wait times
// out. It returns zero if there is no timeout or no active wait.
func (m *Manager) GetRemainingTime(stepID string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.waiting[stepID]
	if !ok || it.deadline.IsZero() {
		return 0
	}
	remaining := time.Until(it.deadline)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// GetWaitingStepIDs returns the ids of every step with an active wait.
func (m *Manager) GetWaitingStepIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.waiting))
	for id := range m.waiting {
		ids = append(ids, id)
	}
	return ids
}

// GetWaitingCount returns the number of active waits.
func (m *Manager) GetWaitingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiting)
}

func (m *Manager) publish(kind events.Kind, stepID string, data wfvalue.Value) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(context.Background(), events.Event{
		Kind:       kind,
		InstanceID: m.instanceID,
		StepID:     stepID,
		Data:       data,
	})
}
