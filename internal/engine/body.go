package engine

import (
	"context"

	streamyerrors "github.com/alexisbeaulieu97/streamy/pkg/errors"
	"github.com/alexisbeaulieu97/streamy/internal/tool"
	"github.com/alexisbeaulieu97/streamy/internal/wfvalue"
	"github.com/alexisbeaulieu97/streamy/internal/workflow"
)

// dispatchBody is the step body the orchestrator hands to the executor. A
// step with a UI config runs the interaction; otherwise a step with one or
// more tool invocations runs them in order; otherwise the step is a
// pass-through that simply echoes its input as its output.
func (o *Orchestrator) dispatchBody(ctx context.Context, step *workflow.Step, input wfvalue.Value) (wfvalue.Value, error) {
	switch {
	case step.UI != nil:
		return o.runUIBody(ctx, step)
	case len(step.Tools) > 0:
		return o.runToolBody(ctx, step)
	default:
		return input, nil
	}
}

func (o *Orchestrator) runUIBody(ctx context.Context, step *workflow.Step) (wfvalue.Value, error) {
	o.setStepStatus(step.ID, workflow.StatusWaitingInput)

	outcome := o.uiHandler.Request(ctx, step.ID, *step.UI)
	if outcome.Err != nil {
		return wfvalue.Null(), outcome.Err
	}

	result := map[string]wfvalue.Value{
		"response":      outcome.Response,
		"autoCompleted": wfvalue.Bool(outcome.AutoCompleted),
	}
	if outcome.SelectedOption != "" {
		result["selectedOption"] = wfvalue.String(outcome.SelectedOption)
	}
	return wfvalue.Map(result), nil
}

func (o *Orchestrator) runToolBody(ctx context.Context, step *workflow.Step) (wfvalue.Value, error) {
	results, err := tool.ExecuteToolInvocations(ctx, o.toolInvoker, step.Tools, o.execCtx, step.ID)
	if err != nil {
		return wfvalue.Null(), err
	}

	values := make([]wfvalue.Value, 0, len(results))
	for _, r := range results {
		values = append(values, wfvalue.Map(map[string]wfvalue.Value{
			"toolId": wfvalue.String(r.ToolID),
			"value":  r.Value,
		}))
	}
	if len(values) == 0 {
		return wfvalue.Null(), streamyerrors.NewValidationError("tools", "tool step declared no invocations", nil)
	}
	return wfvalue.List(values...), nil
}
