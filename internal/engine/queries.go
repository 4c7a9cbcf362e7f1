package engine

import (
	"github.com/alexisbeaulieu97/streamy/internal/dag"
	"github.com/alexisbeaulieu97/streamy/internal/tool"
	"github.com/alexisbeaulieu97/streamy/internal/ui"
	"github.com/alexisbeaulieu97/streamy/internal/wfvalue"
	"github.com/alexisbeaulieu97/streamy/internal/workflow"
)

// GetStatus returns the workflow instance's current lifecycle status.
func (o *Orchestrator) GetStatus() workflow.WorkflowStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

// GetStepStatus returns the current status of a single step.
func (o *Orchestrator) GetStepStatus(stepID string) (workflow.Status, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.stepStatus[stepID]
	return s, ok
}

// GetStepError returns the error recorded for a failed step, if any.
func (o *Orchestrator) GetStepError(stepID string) (error, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	err, ok := o.stepErr[stepID]
	return err, ok
}

// GetContext exposes the live execution context's read-only projection.
func (o *Orchestrator) GetContext() workflow.ContextProjection {
	return o.execCtx
}

// GetStepBarState returns a snapshot of the current progress bar state.
func (o *Orchestrator) GetStepBarState() (steps []struct {
	ID     string
	Name   string
	Status workflow.Status
}, activeStepID string, completed, total int) {
	snap := o.progress.snapshot()
	for _, s := range snap.Steps {
		steps = append(steps, struct {
			ID     string
			Name   string
			Status workflow.Status
		}{ID: s.ID, Name: s.Name, Status: s.Status})
	}
	return steps, snap.ActiveStepID, snap.Completed, snap.Total
}

// RegisterTool adds desc to the shared tool registry.
func (o *Orchestrator) RegisterTool(desc tool.Descriptor) error {
	return o.deps.ToolRegistry.Register(desc.ID, desc)
}

// UnregisterTool removes a tool by id.
func (o *Orchestrator) UnregisterTool(id string) {
	o.deps.ToolRegistry.Unregister(id)
}

// GetRegisteredTools returns every registered tool id, sorted.
func (o *Orchestrator) GetRegisteredTools() []string {
	return o.deps.ToolRegistry.IDs()
}

// RegisterUIComponent adds desc to the shared UI component registry.
func (o *Orchestrator) RegisterUIComponent(desc ui.Descriptor) error {
	return o.deps.UIRegistry.Register(desc.ID, desc)
}

// UnregisterUIComponent removes a UI component by id.
func (o *Orchestrator) UnregisterUIComponent(id string) {
	o.deps.UIRegistry.Unregister(id)
}

// GetRegisteredUIComponents returns every registered UI component id, sorted.
func (o *Orchestrator) GetRegisteredUIComponents() []string {
	return o.deps.UIRegistry.IDs()
}

// RegisterStepType adds a step type descriptor to the shared catalog.
func (o *Orchestrator) RegisterStepType(desc StepTypeDescriptor) error {
	return o.deps.StepTypeRegistry.Register(desc.Type, desc)
}

// GetRegisteredStepTypes returns every registered step type id, sorted.
func (o *Orchestrator) GetRegisteredStepTypes() []string {
	return o.deps.StepTypeRegistry.IDs()
}

// AddGlobalHook registers a before or after hook at the definition level.
func (o *Orchestrator) AddGlobalHook(before bool, h workflow.Hook) {
	if before {
		o.hooksMgr.RegisterGlobalBefore(h)
	} else {
		o.hooksMgr.RegisterGlobalAfter(h)
	}
}

// RespondToUI resolves a pending Confirm/Select interaction for stepID.
func (o *Orchestrator) RespondToUI(stepID string, result ui.RenderResult) bool {
	return o.uiHandler.RespondToUI(stepID, result)
}

// RespondToTool resolves a pending async tool call with a success result.
func (o *Orchestrator) RespondToTool(stepID, toolID string, result wfvalue.Value) bool {
	return o.toolInvoker.RespondToTool(stepID, toolID, result)
}

// RespondToToolError resolves a pending async tool call with a failure.
func (o *Orchestrator) RespondToToolError(stepID, toolID string, callErr error) bool {
	return o.toolInvoker.RespondToToolError(stepID, toolID, callErr)
}

// ValidateWorkflowDefinition runs the same structural and DAG checks
// LoadWorkflow performs, without constructing an instance. Useful for
// editors validating a definition before a run is started.
func ValidateWorkflowDefinition(def *workflow.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	_, err := dag.Build(def)
	return err
}

// ExportState exports the running instance's status and per-step outcomes
// (instance id, workflow status, step statuses/outputs/errors) -- a
// runtime snapshot, distinct from ExportDefinition's declarative export.
func (o *Orchestrator) ExportState() ([]byte, error) {
	steps := make([]workflow.ExportedStep, 0, len(o.def.Steps))
	o.mu.RLock()
	for _, s := range o.def.Steps {
		exported := workflow.ExportedStep{ID: s.ID, Status: o.stepStatus[s.ID]}
		if err, ok := o.stepErr[s.ID]; ok {
			exported.Error = err.Error()
		}
		if out, ok := o.execCtx.GetStepOutput(s.ID); ok {
			exported.Output = &out
		}
		steps = append(steps, exported)
	}
	status := o.status
	o.mu.RUnlock()

	return workflow.MarshalExportedState(&workflow.ExportedState{
		InstanceID: o.instanceID,
		Status:     status,
		Steps:      steps,
	})
}

// ExportDefinition exports the instance's Definition as canonical JSON per
// spec.md §6 (id, name, description, steps, globalHooks), independent of
// the instance's current runtime state.
func (o *Orchestrator) ExportDefinition() ([]byte, error) {
	return workflow.MarshalDefinition(o.def)
}

// ImportDefinition decodes canonical Definition JSON produced by
// ExportDefinition, re-validating it the same way LoadWorkflow does. The
// result still needs to be passed to LoadWorkflow to run; this is the
// declarative round-trip half of spec.md §6's export/import pair.
func ImportDefinition(data []byte) (*workflow.Definition, error) {
	return workflow.UnmarshalDefinition(data)
}
