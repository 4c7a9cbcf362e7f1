// Package workflow defines the declarative data model for a workflow
// definition: steps, dependencies, retry/skip policies, hook sets, UI
// configuration and tool invocations. Values here are immutable once a
// Definition has been loaded by the engine.
package workflow

import (
	"context"

	"github.com/alexisbeaulieu97/streamy/internal/wfvalue"
)

// Status enumerates the lifecycle states of a single step's runtime
// execution.
type Status string

const (
	StatusPending      Status = "pending"
	StatusRunning      Status = "running"
	StatusWaitingInput Status = "waiting_input"
	StatusSuccess      Status = "success"
	StatusFailed       Status = "failed"
	StatusSkipped      Status = "skipped"
)

// WorkflowStatus enumerates the lifecycle states of a workflow instance.
type WorkflowStatus string

const (
	WorkflowIdle      WorkflowStatus = "idle"
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowPaused    WorkflowStatus = "paused"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
)

// UIMode enumerates the interaction modes a UI-backed step may request.
type UIMode string

const (
	UIModeDisplay UIMode = "display"
	UIModeConfirm UIMode = "confirm"
	UIModeSelect  UIMode = "select"
)

// Definition describes a complete, named workflow: an ordered list of
// steps plus an optional workflow-scoped hook set. It is immutable once
// loaded.
type Definition struct {
	ID          string
	Name        string
	Description string
	Steps       []Step
	GlobalHooks HookSet
}

// Step is a single unit of work within a Definition.
type Step struct {
	ID          string
	Name        string
	Type        string
	DependsOn   []string
	Config      wfvalue.Value
	RetryPolicy *RetryPolicy
	SkipPolicy  *SkipPolicy
	Hooks       *HookSet
	UI          *UIConfig
	Tools       []ToolInvocation
}

// RetryPolicy bounds the number of attempts and the delay between them.
// MaxRetries counts attempts *after* the first; total attempts is
// MaxRetries+1.
type RetryPolicy struct {
	MaxRetries         int
	IntervalMs         int64
	ExponentialBackoff bool
	Multiplier         float64
}

// EffectiveMultiplier returns the configured multiplier, defaulting to 2
// when unset (zero value) and exponential backoff is requested.
func (p *RetryPolicy) EffectiveMultiplier() float64 {
	if p == nil || p.Multiplier <= 0 {
		return 2
	}
	return p.Multiplier
}

// SkipPredicate decides, given a read-only context projection, whether a
// step should be skipped.
type SkipPredicate func(ctx context.Context, proj ContextProjection) (bool, error)

// ContextProjection is the read-only view of an execution context exposed
// to skip predicates and expression evaluation: step outputs, globals, and
// the two convenience lookups named by spec.
type ContextProjection interface {
	GetStepOutput(id string) (wfvalue.Value, bool)
	GetGlobal(key string) (wfvalue.Value, bool)
}

// SkipPolicy decides whether to bypass a step, substituting DefaultOutput
// (if set) as the step's output. Exactly one of Predicate or Expression
// should be set; Predicate takes precedence if both are present.
type SkipPolicy struct {
	Predicate     SkipPredicate
	Expression    string
	DefaultOutput *wfvalue.Value
}

// HookFunc is a before- or after-step hook callback.
type HookFunc func(ctx context.Context, hctx *HookContext) error

// HookContext is passed to every hook invocation. Input is a pointer so
// before-hooks can mutate it in place for the remainder of the chain and
// for the step body; Output is nil during the before phase.
type HookContext struct {
	StepID string
	Input  *wfvalue.Value
	Proj   ContextProjection
	Output *wfvalue.Value
}

// Hook is a single named callback in a before/after pipeline.
type Hook struct {
	ID   string
	Name string
	Fn   HookFunc
}

// HookSet groups the before- and after-step hook pipelines for a step or
// for an entire definition (global hooks).
type HookSet struct {
	Before []Hook
	After  []Hook
}

// UIOption is one selectable choice in a Select-mode UI interaction.
// NextStepId is declarative only; the engine never reads it (see
// spec.md §9 open questions).
type UIOption struct {
	ID         string
	Label      string
	Value      wfvalue.Value
	NextStepID string
}

// UIConfig describes the UI interaction a step requires.
type UIConfig struct {
	ComponentID string
	Mode        UIMode
	Data        wfvalue.Value
	TimeoutMs   int64
	Options     []UIOption
}

// ToolInvocation describes a single tool call a step makes. If OutputKey is
// set, the tool's result is additionally written to ctx.Globals[OutputKey].
type ToolInvocation struct {
	ToolID    string
	Params    wfvalue.Value
	OutputKey string
}
