// Package executor runs a single step through its full lifecycle: a
// pre-cancellation check, skip evaluation, before-hooks, the retry-wrapped
// body, always-run after-hooks, and the final output commit.
package executor

import (
	"context"

	"github.com/alexisbeaulieu97/streamy/internal/events"
	"github.com/alexisbeaulieu97/streamy/internal/hooks"
	"github.com/alexisbeaulieu97/streamy/internal/ports"
	"github.com/alexisbeaulieu97/streamy/internal/retry"
	"github.com/alexisbeaulieu97/streamy/internal/skip"
	"github.com/alexisbeaulieu97/streamy/internal/wfcontext"
	"github.com/alexisbeaulieu97/streamy/internal/wfvalue"
	"github.com/alexisbeaulieu97/streamy/internal/workflow"
	streamyerrors "github.com/alexisbeaulieu97/streamy/pkg/errors"
)

// Body performs a single attempt at a step's work, given its effective
// input. ExecuteStep wraps every error returned here as a
// StepExecutionError before it reaches the retry runner.
type Body func(ctx context.Context, step *workflow.Step, input wfvalue.Value) (wfvalue.Value, error)

// Result is the outcome of running one step through the pipeline.
type Result struct {
	StepID   string
	Status   workflow.Status
	Output   wfvalue.Value
	Err      error
	Attempts int
}

// Executor drives the per-step pipeline for a single workflow instance.
type Executor struct {
	hooksMgr   *hooks.Manager
	bus        *events.Bus
	logger     ports.Logger
	instanceID string
}

// New constructs an Executor.
func New(hooksMgr *hooks.Manager, bus *events.Bus, logger ports.Logger, instanceID string) *Executor {
	return &Executor{hooksMgr: hooksMgr, bus: bus, logger: logger, instanceID: instanceID}
}

// ExecuteStep runs step through the full pipeline described in spec.md
// §4.7. input is the step's raw input (typically the union of its
// dependencies' outputs, computed by the caller); execCtx is the shared
// instance context that outputs are ultimately written to.
func (e *Executor) ExecuteStep(ctx context.Context, step *workflow.Step, execCtx *wfcontext.Context, body Body, input wfvalue.Value) Result {
	if ctx.Err() != nil {
		return Result{StepID: step.ID, Status: workflow.StatusFailed, Err: streamyerrors.NewCancelledError(step.ID, "cancelled before start")}
	}

	shouldSkip, err := skip.ShouldSkip(ctx, step.SkipPolicy, execCtx, e.logger, step.ID)
	if err != nil {
		return Result{StepID: step.ID, Status: workflow.StatusFailed, Err: err}
	}
	if shouldSkip {
		output := wfvalue.Null()
		if step.SkipPolicy.DefaultOutput != nil {
			output = *step.SkipPolicy.DefaultOutput
		}
		execCtx.SetStepOutput(step.ID, output)
		e.publish(events.KindStepSkipped, step.ID, nil)
		return Result{StepID: step.ID, Status: workflow.StatusSkipped, Output: output}
	}

	hctx := &workflow.HookContext{StepID: step.ID, Input: &input, Proj: execCtx}
	if err := e.hooksMgr.RunBefore(ctx, step, hctx); err != nil {
		e.publish(events.KindStepFailed, step.ID, map[string]wfvalue.Value{
			"phase": wfvalue.String("beforeHook"),
			"error": wfvalue.String(err.Error()),
		})
		return Result{StepID: step.ID, Status: workflow.StatusFailed, Err: err}
	}
	effectiveInput := *hctx.Input

	runner := retry.NewRunner(step.RetryPolicy)
	var attempts int
	output, bodyErr := runner.Execute(ctx, func(attempt, max int, lastErr error) {
		e.publish(events.KindStepRetry, step.ID, map[string]wfvalue.Value{
			"attempt": wfvalue.Number(float64(attempt + 1)),
			"max":     wfvalue.Number(float64(max)),
			"error":   wfvalue.String(lastErr.Error()),
		})
	}, func(attemptCtx context.Context, attempt int) (interface{}, error) {
		attempts = attempt
		if attempt == 1 {
			e.publish(events.KindStepStart, step.ID, map[string]wfvalue.Value{
				"attempt": wfvalue.Number(1),
			})
		}
		result, err := body(attemptCtx, step, effectiveInput)
		if err != nil {
			return nil, streamyerrors.NewStepExecutionError(step.ID, err)
		}
		return result, nil
	})

	retries := attempts - 1
	if retries < 0 {
		retries = 0
	}

	if bodyErr != nil {
		e.publish(events.KindStepFailed, step.ID, map[string]wfvalue.Value{
			"error":      wfvalue.String(bodyErr.Error()),
			"retryCount": wfvalue.Number(float64(retries)),
		})
		e.runAfterHooks(ctx, step, hctx, nil)
		return Result{StepID: step.ID, Status: workflow.StatusFailed, Err: bodyErr, Attempts: attempts}
	}

	stepOutput, _ := output.(wfvalue.Value)
	e.publish(events.KindStepComplete, step.ID, map[string]wfvalue.Value{
		"output":     stepOutput,
		"retryCount": wfvalue.Number(float64(retries)),
	})

	e.runAfterHooks(ctx, step, hctx, &stepOutput)

	if ctx.Err() == nil {
		execCtx.SetStepOutput(step.ID, stepOutput)
	}

	return Result{StepID: step.ID, Status: workflow.StatusSuccess, Output: stepOutput, Attempts: attempts}
}

func (e *Executor) runAfterHooks(ctx context.Context, step *workflow.Step, hctx *workflow.HookContext, output *wfvalue.Value) {
	hctx.Output = output
	failures := e.hooksMgr.RunAfter(ctx, step, hctx)
	for _, failure := range failures {
		if e.logger != nil {
			e.logger.Warn(ctx, "after-hook failed", "step_id", step.ID, "error", failure)
		}
	}
}

func (e *Executor) publish(kind events.Kind, stepID string, fields map[string]wfvalue.Value) {
	if e.bus == nil {
		return
	}
	var data wfvalue.Value
	if fields != nil {
		data = wfvalue.Map(fields)
	} else {
		data = wfvalue.Null()
	}
	e.bus.Publish(context.Background(), events.Event{
		Kind:       kind,
		InstanceID: e.instanceID,
		StepID:     stepID,
		Data:       data,
	})
}
