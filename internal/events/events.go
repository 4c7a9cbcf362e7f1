// Package events implements the workflow engine's synchronous, typed,
// multi-subscriber event stream. Every component of a running instance
// (hooks, retries, waits, tools, UI, the step executor, the orchestrator)
// publishes through a single Bus so external observers see one ordered,
// consistent feed.
package events

import (
	"context"
	"sort"
	"sync"

	"github.com/alexisbeaulieu97/streamy/internal/wfvalue"
)

// Kind enumerates every event the engine emits.
type Kind string

const (
	KindWorkflowLoaded    Kind = "workflow.loaded"
	KindWorkflowStarted   Kind = "workflow.started"
	KindWorkflowPaused    Kind = "workflow.paused"
	KindWorkflowResumed   Kind = "workflow.resumed"
	KindWorkflowCompleted Kind = "workflow.completed"
	KindWorkflowFailed    Kind = "workflow.failed"
	KindWorkflowCancelled Kind = "workflow.cancelled"

	KindStepStart    Kind = "step.start"
	KindStepRetry    Kind = "step.retry"
	KindStepSkipped  Kind = "step.skipped"
	KindStepFailed   Kind = "step.failed"
	KindStepComplete Kind = "step.complete"

	KindHookFailed Kind = "hook.failed"

	KindWaitStarted   Kind = "wait.started"
	KindWaitResolved  Kind = "wait.resolved"
	KindWaitCancelled Kind = "wait.cancelled"
	KindWaitTimedOut  Kind = "wait.timed_out"

	KindToolInvoked  Kind = "tool.invoked"
	KindToolResolved Kind = "tool.resolved"
	KindToolFailed   Kind = "tool.failed"

	KindUIRequested Kind = "ui.requested"
	KindUIResolved  Kind = "ui.resolved"

	KindStepBarUpdate   Kind = "progress.step_bar_update"
	KindProgressUpdate  Kind = "progress.update"
)

// Event is a single point-in-time occurrence published to the bus.
type Event struct {
	Kind       Kind
	InstanceID string
	StepID     string
	Data       wfvalue.Value
}

// Handler processes one event. A Handler must not block indefinitely;
// Publish is synchronous and a slow handler delays every other subscriber
// and the publisher itself.
type Handler func(ctx context.Context, evt Event)

// Subscription is returned by Subscribe; callers must call Unsubscribe to
// stop receiving events.
type Subscription interface {
	Unsubscribe()
}

// Bus is a synchronous, multi-subscriber event dispatcher. Publish delivers
// first to the event kind's own subscribers and then to wildcard
// subscribers, each group in the order it was registered, and to each
// subscriber in the order events were published. A handler that panics, or a
// Subscribe/Unsubscribe call made from within a handler, never disrupts
// delivery to the remaining subscribers in the same Publish call, because
// the subscriber list is copied under lock before dispatch begins.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Kind][]entry
	all    []entry
	nextID int
}

type entry struct {
	id      int
	handler Handler
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Kind][]entry)}
}

// Subscribe registers handler for a single event kind.
func (b *Bus) Subscribe(kind Kind, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], entry{id: id, handler: handler})
	return &subscription{bus: b, kind: kind, id: id}
}

// SubscribeAll registers handler for every event kind the bus ever
// publishes. Wildcard subscribers receive each event after that event's
// kind-specific subscribers.
func (b *Bus) SubscribeAll(handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, entry{id: id, handler: handler})
	return &subscription{bus: b, kind: "", id: id, wildcard: true}
}

// Publish delivers evt to every subscriber registered for evt.Kind, then to
// every wildcard subscriber, each group in registration order. A handler that panics
// is recovered and swallowed so it cannot disrupt delivery to the
// remaining subscribers or unwind the publisher's goroutine.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	b.mu.RLock()
	specific := append([]entry(nil), b.subs[evt.Kind]...)
	wildcard := append([]entry(nil), b.all...)
	b.mu.RUnlock()

	for _, e := range specific {
		dispatch(ctx, e.handler, evt)
	}
	for _, e := range wildcard {
		dispatch(ctx, e.handler, evt)
	}
}

func dispatch(ctx context.Context, handler Handler, evt Event) {
	defer func() { _ = recover() }()
	if handler != nil {
		handler(ctx, evt)
	}
}

func (b *Bus) unsubscribe(kind Kind, id int, wildcard bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if wildcard {
		b.all = removeEntry(b.all, id)
		return
	}
	b.subs[kind] = removeEntry(b.subs[kind], id)
}

func removeEntry(entries []entry, id int) []entry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.id != id {
			out = append(out, e)
		}
	}
	return out
}

type subscription struct {
	bus      *Bus
	kind     Kind
	id       int
	wildcard bool
}

func (s *subscription) Unsubscribe() {
	s.bus.unsubscribe(s.kind, s.id, s.wildcard)
}

// Kinds returns every kind that has ever had a kind-specific subscriber,
// sorted, for diagnostics/testing. A kind stays listed after its last
// subscriber unsubscribes; wildcard subscribers add no kinds.
func (b *Bus) Kinds() []Kind {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Kind, 0, len(b.subs))
	for k := range b.subs {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
