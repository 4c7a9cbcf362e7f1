// Package tool implements synchronous and asynchronous tool invocation:
// registration lookup, input-schema validation, per-call timeouts, and the
// external response matching (respondToTool/respondToToolError) that backs
// async calls.
package tool

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	streamyerrors "github.com/alexisbeaulieu97/streamy/pkg/errors"
	"github.com/alexisbeaulieu97/streamy/internal/events"
	"github.com/alexisbeaulieu97/streamy/internal/registry"
	"github.com/alexisbeaulieu97/streamy/internal/wait"
	"github.com/alexisbeaulieu97/streamy/internal/wfcontext"
	"github.com/alexisbeaulieu97/streamy/internal/wfvalue"
	"github.com/alexisbeaulieu97/streamy/internal/workflow"
)

// Executor runs a tool's body synchronously, given its params.
type Executor func(ctx context.Context, params wfvalue.Value) (wfvalue.Value, error)

// Descriptor is a registered tool: its identity, optional input schema,
// optional per-call timeout, and the function that performs the call.
type Descriptor struct {
	ID          string
	Name        string
	Description string
	InputSchema *Schema
	Timeout     time.Duration
	Async       bool
	Execute     Executor
}

// Result is the outcome of a tool invocation.
type Result struct {
	ToolID   string
	Value    wfvalue.Value
	Duration time.Duration
	Err      error
}

type pendingKey struct {
	stepID string
	toolID string
}

// Invoker dispatches tool calls, synchronous or asynchronous, against a
// shared Registry of Descriptors.
type Invoker struct {
	registry   *registry.Registry[Descriptor]
	waitMgr    *wait.Manager
	bus        *events.Bus
	instanceID string

	mu      sync.Mutex
	pending map[pendingKey]bool
}

// NewRegistry constructs the shared tool Descriptor registry.
func NewRegistry() *registry.Registry[Descriptor] {
	return registry.New[Descriptor](func(id string) error {
		return streamyerrors.NewToolNotFoundError(id)
	})
}

// NewInvoker constructs an Invoker. waitMgr backs the async flow per
// spec.md §4.5 ("C7 is used by C8 and C9").
func NewInvoker(reg *registry.Registry[Descriptor], waitMgr *wait.Manager, bus *events.Bus, instanceID string) *Invoker {
	return &Invoker{
		registry:   reg,
		waitMgr:    waitMgr,
		bus:        bus,
		instanceID: instanceID,
		pending:    make(map[pendingKey]bool),
	}
}

// Invoke runs toolID synchronously against params, racing the call against
// the tool's configured timeout if one is set.
func (inv *Invoker) Invoke(ctx context.Context, toolID string, params wfvalue.Value, stepID string) Result {
	desc, err := inv.registry.Get(toolID)
	if err != nil {
		return Result{ToolID: toolID, Err: err}
	}

	if desc.InputSchema != nil {
		if failures := Validate(desc.InputSchema, params); len(failures) > 0 {
			schemaErr := streamyerrors.NewSchemaValidationError(failures)
			inv.publish(events.KindToolFailed, stepID, toolID, schemaErr)
			return Result{ToolID: toolID, Err: schemaErr}
		}
	}

	inv.publish(events.KindToolInvoked, stepID, toolID, nil)

	start := time.Now()
	value, err := inv.runWithTimeout(ctx, desc, params, stepID)
	duration := time.Since(start)

	if err != nil {
		wrapped := wrapToolError(toolID, stepID, err)
		inv.publish(events.KindToolFailed, stepID, toolID, wrapped)
		return Result{ToolID: toolID, Duration: duration, Err: wrapped}
	}

	inv.publish(events.KindToolResolved, stepID, toolID, nil)
	return Result{ToolID: toolID, Value: value, Duration: duration}
}

func (inv *Invoker) runWithTimeout(ctx context.Context, desc Descriptor, params wfvalue.Value, stepID string) (wfvalue.Value, error) {
	if desc.Timeout <= 0 {
		return desc.Execute(ctx, params)
	}

	callCtx, cancel := context.WithTimeout(ctx, desc.Timeout)
	defer cancel()

	type outcome struct {
		value wfvalue.Value
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := desc.Execute(callCtx, params)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-callCtx.Done():
		return wfvalue.Null(), streamyerrors.NewTimeoutError(stepID, desc.Timeout.Milliseconds())
	}
}

func wrapToolError(toolID, stepID string, err error) error {
	var timeoutErr *streamyerrors.TimeoutError
	if stderrors.As(err, &timeoutErr) {
		return err
	}
	return streamyerrors.NewToolExecutionError(toolID, stepID, err)
}

// InvokeAsync enqueues a pending async call keyed by (stepID, toolID) and
// returns a future resolved externally via RespondToTool/
// RespondToToolError, or by the tool's timeout.
func (inv *Invoker) InvokeAsync(toolID string, params wfvalue.Value, stepID string, timeout time.Duration) (*wait.Future, error) {
	desc, err := inv.registry.Get(toolID)
	if err != nil {
		return nil, err
	}

	if desc.InputSchema != nil {
		if failures := Validate(desc.InputSchema, params); len(failures) > 0 {
			schemaErr := streamyerrors.NewSchemaValidationError(failures)
			inv.publish(events.KindToolFailed, stepID, toolID, schemaErr)
			return nil, schemaErr
		}
	}

	key := pendingKey{stepID: stepID, toolID: toolID}
	inv.mu.Lock()
	inv.pending[key] = true
	inv.mu.Unlock()

	inv.publish(events.KindToolInvoked, stepID, toolID, nil)

	if timeout <= 0 {
		timeout = desc.Timeout
	}
	future := inv.waitMgr.StartWait(stepID, wait.KindTool, toolID, timeout, wfvalue.Null())
	return future, nil
}

// RespondToTool resolves a pending async call with a successful result.
func (inv *Invoker) RespondToTool(stepID, toolID string, result wfvalue.Value) bool {
	key := pendingKey{stepID: stepID, toolID: toolID}
	inv.mu.Lock()
	_, ok := inv.pending[key]
	delete(inv.pending, key)
	inv.mu.Unlock()
	if !ok {
		return false
	}

	resolved := inv.waitMgr.ResumeWait(stepID, result)
	if resolved {
		inv.publish(events.KindToolResolved, stepID, toolID, nil)
	}
	return resolved
}

// RespondToToolError resolves a pending async call with a failure.
func (inv *Invoker) RespondToToolError(stepID, toolID string, callErr error) bool {
	key := pendingKey{stepID: stepID, toolID: toolID}
	inv.mu.Lock()
	_, ok := inv.pending[key]
	delete(inv.pending, key)
	inv.mu.Unlock()
	if !ok {
		return false
	}

	wrapped := streamyerrors.NewToolExecutionError(toolID, stepID, callErr)
	resolved := inv.waitMgr.FailWait(stepID, wrapped)
	if resolved {
		inv.publish(events.KindToolFailed, stepID, toolID, wrapped)
	}
	return resolved
}

// CancelPendingCalls rejects pending async calls for stepID. If toolID is
// non-empty, only the matching call is cancelled; otherwise every pending
// call for stepID is.
func (inv *Invoker) CancelPendingCalls(stepID, toolID string) {
	inv.mu.Lock()
	var keys []pendingKey
	for key := range inv.pending {
		if key.stepID != stepID {
			continue
		}
		if toolID != "" && key.toolID != toolID {
			continue
		}
		keys = append(keys, key)
	}
	for _, key := range keys {
		delete(inv.pending, key)
	}
	inv.mu.Unlock()

	for range keys {
		inv.waitMgr.CancelWait(stepID, "tool call cancelled")
	}
}

// ExecuteToolInvocations runs a step's declared tool invocations
// sequentially against ctx. On success, if OutputKey is set, the result is
// additionally written to ctx.Globals[OutputKey] (preserved per spec.md §9
// even though the same value is also returned in the batch result). On the
// first failure, execution stops and the results collected so far are
// returned alongside the error.
func ExecuteToolInvocations(ctx context.Context, inv *Invoker, invocations []workflow.ToolInvocation, execCtx *wfcontext.Context, stepID string) ([]Result, error) {
	results := make([]Result, 0, len(invocations))

	for _, tl := range invocations {
		res := inv.Invoke(ctx, tl.ToolID, tl.Params, stepID)
		results = append(results, res)

		if res.Err != nil {
			return results, res.Err
		}

		if tl.OutputKey != "" {
			execCtx.SetGlobal(tl.OutputKey, res.Value)
		}
	}

	return results, nil
}

func (inv *Invoker) publish(kind events.Kind, stepID, toolID string, err error) {
	if inv.bus == nil {
		return
	}
	fields := map[string]wfvalue.Value{"toolId": wfvalue.String(toolID)}
	if err != nil {
		fields["error"] = wfvalue.String(err.Error())
	}
	inv.bus.Publish(context.Background(), events.Event{
		Kind:       kind,
		InstanceID: inv.instanceID,
		StepID:     stepID,
		Data:       wfvalue.Map(fields),
	})
}
