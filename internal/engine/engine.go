// Package engine implements the orchestrator: the main loop that couples
// the DAG scheduler, execution context, hooks, retry/skip, wait, tool and
// UI subsystems into a running workflow instance, while emitting the
// engine's event stream.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alexisbeaulieu97/streamy/internal/dag"
	"github.com/alexisbeaulieu97/streamy/internal/events"
	"github.com/alexisbeaulieu97/streamy/internal/executor"
	"github.com/alexisbeaulieu97/streamy/internal/hooks"
	infraevents "github.com/alexisbeaulieu97/streamy/internal/infrastructure/events"
	infralogging "github.com/alexisbeaulieu97/streamy/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/streamy/internal/ports"
	"github.com/alexisbeaulieu97/streamy/internal/registry"
	"github.com/alexisbeaulieu97/streamy/internal/tool"
	"github.com/alexisbeaulieu97/streamy/internal/ui"
	"github.com/alexisbeaulieu97/streamy/internal/wait"
	"github.com/alexisbeaulieu97/streamy/internal/wfcontext"
	"github.com/alexisbeaulieu97/streamy/internal/wfvalue"
	"github.com/alexisbeaulieu97/streamy/internal/workflow"
	streamyerrors "github.com/alexisbeaulieu97/streamy/pkg/errors"
)

// pollInterval is how often the main loop re-checks for progress while
// Paused or while waiting on in-flight async work with nothing newly ready.
const pollInterval = 20 * time.Millisecond

// StepTypeDescriptor is metadata-only catalog entry for a registered step
// type, used by external editors to introspect what a definition can use.
type StepTypeDescriptor struct {
	Type        string
	Description string
}

// Dependencies bundles the shared, process-wide registries and logger an
// Orchestrator is constructed with. Registries are shared across
// instances; each Orchestrator gets its own wait manager, context, and
// progress manager.
type Dependencies struct {
	ToolRegistry     *registry.Registry[tool.Descriptor]
	UIRegistry       *registry.Registry[ui.Descriptor]
	StepTypeRegistry *registry.Registry[StepTypeDescriptor]
	Logger           ports.Logger
}

// NewStructuredLogger builds the charmbracelet/log-backed ports.Logger the
// rest of the engine's ambient logging assumes, scoped to component. A
// caller that does not care about log configuration can pass this directly
// to NewDependencies; one that wants JSON output, a different level, or a
// different writer should call internal/infrastructure/logging.New itself.
func NewStructuredLogger(component string) (ports.Logger, error) {
	return infralogging.New(infralogging.Options{
		Layer:     "engine",
		Component: component,
	})
}

// NewDependencies constructs a Dependencies with fresh registries seeded
// with the three built-in step types (task, ui, tool). A nil logger is
// replaced with a no-op logger rather than left nil, so every subsystem can
// call deps.Logger unconditionally.
func NewDependencies(logger ports.Logger) *Dependencies {
	if logger == nil {
		logger = infralogging.NewNoOpLogger()
	}
	stepTypes := registry.New[StepTypeDescriptor](func(id string) error {
		return streamyerrors.NewValidationError("type", "unknown step type: "+id, nil)
	})
	_ = stepTypes.Register("task", StepTypeDescriptor{Type: "task", Description: "pass-through or custom task body"})
	_ = stepTypes.Register("ui", StepTypeDescriptor{Type: "ui", Description: "delegates to the UI interaction handler"})
	_ = stepTypes.Register("tool", StepTypeDescriptor{Type: "tool", Description: "runs one or more tool invocations"})

	return &Dependencies{
		ToolRegistry:     tool.NewRegistry(),
		UIRegistry:       ui.NewRegistry(),
		StepTypeRegistry: stepTypes,
		Logger:           logger,
	}
}

// Orchestrator manages the lifecycle of a single workflow instance.
type Orchestrator struct {
	deps       *Dependencies
	def        *workflow.Definition
	graph      *dag.Graph
	instanceID string

	execCtx     *wfcontext.Context
	bus         *events.Bus
	hooksMgr    *hooks.Manager
	waitMgr     *wait.Manager
	toolInvoker *tool.Invoker
	uiHandler   *ui.Handler
	stepExec    *executor.Executor
	progress    *progressManager

	mu         sync.RWMutex
	status     workflow.WorkflowStatus
	stepStatus map[string]workflow.Status
	stepErr    map[string]error

	paused    atomic.Bool
	cancelled atomic.Bool
	cancelFn  context.CancelFunc
}

// LoadWorkflow validates def, builds its DAG, allocates a fresh instance,
// and wires up every per-instance subsystem. It does not start execution.
func LoadWorkflow(def *workflow.Definition, deps *Dependencies) (*Orchestrator, error) {
	buffer := infralogging.NewEventBuffer(0)
	bootLogger := infralogging.NewBufferedLogger(buffer)
	defer buffer.Flush(deps.Logger)

	bootLogger.Info(context.Background(), "validating workflow definition", "name", def.Name, "step_count", len(def.Steps))
	if err := def.Validate(); err != nil {
		bootLogger.Error(context.Background(), "definition validation failed", "error", err)
		return nil, err
	}

	graph, err := dag.Build(def)
	if err != nil {
		bootLogger.Error(context.Background(), "dependency graph build failed", "error", err)
		return nil, err
	}

	instanceID := uuid.NewString()
	bus := events.NewBus()
	infraevents.NewLoggingSubscriber(deps.Logger).Attach(bus)

	execCtx := wfcontext.New()
	waitMgr := wait.NewManager(bus, instanceID)
	hooksMgr := hooks.NewManager(def.GlobalHooks)
	stepExec := executor.New(hooksMgr, bus, deps.Logger, instanceID)
	toolInvoker := tool.NewInvoker(deps.ToolRegistry, waitMgr, bus, instanceID)
	uiHandler := ui.NewHandler(deps.UIRegistry, waitMgr, bus, instanceID)

	stepStatus := make(map[string]workflow.Status, len(def.Steps))
	for _, s := range def.Steps {
		stepStatus[s.ID] = workflow.StatusPending
	}

	orch := &Orchestrator{
		deps:        deps,
		def:         def,
		graph:       graph,
		instanceID:  instanceID,
		execCtx:     execCtx,
		bus:         bus,
		hooksMgr:    hooksMgr,
		waitMgr:     waitMgr,
		toolInvoker: toolInvoker,
		uiHandler:   uiHandler,
		stepExec:    stepExec,
		progress:    newProgressManager(def.Steps, bus, instanceID),
		status:      workflow.WorkflowIdle,
		stepStatus:  stepStatus,
		stepErr:     make(map[string]error),
	}

	bootLogger.Info(context.Background(), "instance wired", "instance_id", instanceID)
	orch.publish(events.KindWorkflowLoaded, "", nil)
	return orch, nil
}

// Start populates the execution context's globals, transitions to Running,
// and drives the main loop to completion. It blocks until the workflow
// reaches a terminal status (Completed or Failed).
func (o *Orchestrator) Start(ctx context.Context, globals map[string]wfvalue.Value) error {
	for k, v := range globals {
		o.execCtx.SetGlobal(k, v)
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.cancelFn = cancel
	defer cancel()

	totalSteps := len(o.def.Steps)

	o.setWorkflowStatus(workflow.WorkflowRunning)
	o.publish(events.KindWorkflowStarted, "", map[string]wfvalue.Value{
		"totalSteps": wfvalue.Number(float64(totalSteps)),
		"startTime":  wfvalue.String(time.Now().Format(time.RFC3339Nano)),
	})

	err := o.mainLoop(runCtx)

	completed, _ := o.completionSets()
	completedSteps := len(completed)
	var percentage float64
	if totalSteps > 0 {
		percentage = float64(completedSteps) / float64(totalSteps) * 100
	}
	endTime := wfvalue.String(time.Now().Format(time.RFC3339Nano))

	if err != nil {
		o.setWorkflowStatus(workflow.WorkflowFailed)

		var failedStepID string
		var execErr *streamyerrors.ExecutionError
		if errors.As(err, &execErr) {
			failedStepID = execErr.StepID
		}

		o.publish(events.KindWorkflowFailed, "", map[string]wfvalue.Value{
			"error":          wfvalue.String(err.Error()),
			"errorName":      wfvalue.String(errorName(err)),
			"failedStepId":   wfvalue.String(failedStepID),
			"totalSteps":     wfvalue.Number(float64(totalSteps)),
			"completedSteps": wfvalue.Number(float64(completedSteps)),
			"percentage":     wfvalue.Number(percentage),
			"endTime":        endTime,
		})
		return err
	}

	o.setWorkflowStatus(workflow.WorkflowCompleted)
	o.publish(events.KindWorkflowCompleted, "", map[string]wfvalue.Value{
		"totalSteps":     wfvalue.Number(float64(totalSteps)),
		"completedSteps": wfvalue.Number(float64(completedSteps)),
		"percentage":     wfvalue.Number(100),
		"endTime":        endTime,
	})
	return nil
}

// errorName derives a short, stable label for err's concrete type, e.g.
// "ExecutionError" for a *streamyerrors.ExecutionError, for use in
// WorkflowFailed's errorName field.
func errorName(err error) string {
	if err == nil {
		return ""
	}
	name := fmt.Sprintf("%T", err)
	name = strings.TrimPrefix(name, "*")
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

func (o *Orchestrator) mainLoop(ctx context.Context) error {
	for {
		if o.cancelled.Load() {
			return streamyerrors.NewCancelledError("", "workflow cancelled")
		}
		if o.paused.Load() {
			time.Sleep(pollInterval)
			continue
		}
		if o.GetStatus() != workflow.WorkflowRunning {
			return nil
		}

		completed, failed := o.completionSets()
		ready := o.graph.ReadySteps(completed, failed)

		if len(ready) == 0 {
			if len(completed)+len(failed) == len(o.def.Steps) {
				if len(failed) > 0 {
					return newStepsFailedError(failed)
				}
				return nil
			}
			if len(failed) > 0 && !o.hasWaitingSteps() {
				return newStepsFailedError(failed)
			}
			time.Sleep(pollInterval)
			continue
		}

		o.runBatch(ctx, ready)
	}
}

func (o *Orchestrator) runBatch(ctx context.Context, ready []string) {
	var wg sync.WaitGroup
	for _, stepID := range ready {
		step := o.stepByID(stepID)
		if step == nil {
			continue
		}
		wg.Add(1)
		go func(step *workflow.Step) {
			defer wg.Done()
			o.setStepStatus(step.ID, workflow.StatusRunning)

			input := o.dependencyInput(step)
			res := o.stepExec.ExecuteStep(ctx, step, o.execCtx, o.dispatchBody, input)

			o.setStepStatus(step.ID, res.Status)
			if res.Err != nil {
				o.mu.Lock()
				o.stepErr[step.ID] = res.Err
				o.mu.Unlock()
			}
		}(step)
	}
	wg.Wait()
}

// dependencyInput merges every dependency's recorded output into a single
// map-shaped input value, keyed by dependency step id.
func (o *Orchestrator) dependencyInput(step *workflow.Step) wfvalue.Value {
	if len(step.DependsOn) == 0 {
		return wfvalue.Null()
	}
	merged := make(map[string]wfvalue.Value, len(step.DependsOn))
	for _, dep := range step.DependsOn {
		if out, ok := o.execCtx.GetStepOutput(dep); ok {
			merged[dep] = out
		}
	}
	return wfvalue.Map(merged)
}

func (o *Orchestrator) completionSets() (completed, failed map[string]bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	completed = make(map[string]bool, len(o.stepStatus))
	failed = make(map[string]bool, len(o.stepStatus))
	for id, status := range o.stepStatus {
		switch status {
		case workflow.StatusSuccess, workflow.StatusSkipped:
			completed[id] = true
		case workflow.StatusFailed:
			failed[id] = true
		}
	}
	return completed, failed
}

func (o *Orchestrator) hasWaitingSteps() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, status := range o.stepStatus {
		if status == workflow.StatusRunning || status == workflow.StatusWaitingInput {
			return true
		}
	}
	return false
}

func (o *Orchestrator) stepByID(id string) *workflow.Step {
	for i := range o.def.Steps {
		if o.def.Steps[i].ID == id {
			return &o.def.Steps[i]
		}
	}
	return nil
}

func (o *Orchestrator) setStepStatus(stepID string, status workflow.Status) {
	o.mu.Lock()
	o.stepStatus[stepID] = status
	o.mu.Unlock()
	o.progress.recordTransition(stepID, status)
}

func (o *Orchestrator) setWorkflowStatus(status workflow.WorkflowStatus) {
	o.mu.Lock()
	o.status = status
	o.mu.Unlock()
}

// Pause is legal only while Running. It flips a flag observed by the main
// loop; in-flight steps run to completion.
func (o *Orchestrator) Pause() error {
	if o.GetStatus() != workflow.WorkflowRunning {
		return streamyerrors.NewValidationError("status", "pause is only legal while running", nil)
	}
	o.paused.Store(true)
	o.setWorkflowStatus(workflow.WorkflowPaused)
	o.publish(events.KindWorkflowPaused, "", nil)
	return nil
}

// Resume is legal only while Paused.
func (o *Orchestrator) Resume() error {
	if o.GetStatus() != workflow.WorkflowPaused {
		return streamyerrors.NewValidationError("status", "resume is only legal while paused", nil)
	}
	o.paused.Store(false)
	o.setWorkflowStatus(workflow.WorkflowRunning)
	o.publish(events.KindWorkflowResumed, "", nil)
	return nil
}

// Cancel fails every active wait, marks the instance Failed, and signals
// the main loop to exit. In-flight synchronous step bodies are not
// forcibly aborted; their results are discarded once they return, since
// the main loop no longer schedules downstream work.
func (o *Orchestrator) Cancel() {
	o.cancelled.Store(true)
	o.waitMgr.CancelAllWaits("workflow cancelled")
	if o.cancelFn != nil {
		o.cancelFn()
	}
	o.setWorkflowStatus(workflow.WorkflowFailed)
	o.publish(events.KindWorkflowCancelled, "", nil)
}

func (o *Orchestrator) publish(kind events.Kind, stepID string, fields map[string]wfvalue.Value) {
	var data wfvalue.Value
	if fields != nil {
		data = wfvalue.Map(fields)
	} else {
		data = wfvalue.Null()
	}
	o.bus.Publish(context.Background(), events.Event{
		Kind:       kind,
		InstanceID: o.instanceID,
		StepID:     stepID,
		Data:       data,
	})
}

// newStepsFailedError reports every failed step id, sorted for determinism,
// and carries the first one as StepID so callers can surface it as
// WorkflowFailed's failedStepId.
func newStepsFailedError(failed map[string]bool) error {
	ids := make([]string, 0, len(failed))
	for id := range failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var stepID string
	if len(ids) > 0 {
		stepID = ids[0]
	}
	return streamyerrors.NewExecutionError(stepID, fmt.Errorf("step(s) failed: %s", strings.Join(ids, ", ")))
}
