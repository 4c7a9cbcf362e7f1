package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/streamy/internal/events"
	"github.com/alexisbeaulieu97/streamy/internal/hooks"
	"github.com/alexisbeaulieu97/streamy/internal/wfcontext"
	"github.com/alexisbeaulieu97/streamy/internal/wfvalue"
	"github.com/alexisbeaulieu97/streamy/internal/workflow"
)

func passThrough(_ context.Context, _ *workflow.Step, input wfvalue.Value) (wfvalue.Value, error) {
	return input, nil
}

func TestExecuteStepPassThroughSucceeds(t *testing.T) {
	t.Parallel()

	exec := New(hooks.NewManager(workflow.HookSet{}), events.NewBus(), nil, "inst-1")
	execCtx := wfcontext.New()
	step := &workflow.Step{ID: "s1"}

	res := exec.ExecuteStep(context.Background(), step, execCtx, passThrough, wfvalue.String("hi"))
	require.NoError(t, res.Err)
	require.Equal(t, workflow.StatusSuccess, res.Status)

	out, ok := execCtx.GetStepOutput("s1")
	require.True(t, ok)
	s, _ := out.AsString()
	require.Equal(t, "hi", s)
}

func TestExecuteStepHonoursPreCancellation(t *testing.T) {
	t.Parallel()

	exec := New(hooks.NewManager(workflow.HookSet{}), events.NewBus(), nil, "inst-1")
	execCtx := wfcontext.New()
	step := &workflow.Step{ID: "s1"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := exec.ExecuteStep(ctx, step, execCtx, passThrough, wfvalue.Null())
	require.Error(t, res.Err)
	require.Equal(t, workflow.StatusFailed, res.Status)
}

func TestExecuteStepSkipsAndWritesDefaultOutput(t *testing.T) {
	t.Parallel()

	exec := New(hooks.NewManager(workflow.HookSet{}), events.NewBus(), nil, "inst-1")
	execCtx := wfcontext.New()
	defaultOut := wfvalue.String("skipped-default")
	step := &workflow.Step{
		ID: "s1",
		SkipPolicy: &workflow.SkipPolicy{
			Predicate:     func(context.Context, workflow.ContextProjection) (bool, error) { return true, nil },
			DefaultOutput: &defaultOut,
		},
	}

	res := exec.ExecuteStep(context.Background(), step, execCtx, passThrough, wfvalue.Null())
	require.Equal(t, workflow.StatusSkipped, res.Status)

	out, ok := execCtx.GetStepOutput("s1")
	require.True(t, ok)
	s, _ := out.AsString()
	require.Equal(t, "skipped-default", s)
}

func TestExecuteStepFailsWhenBeforeHookFails(t *testing.T) {
	t.Parallel()

	hookSet := workflow.HookSet{Before: []workflow.Hook{
		{ID: "h1", Fn: func(context.Context, *workflow.HookContext) error { return errors.New("boom") }},
	}}
	exec := New(hooks.NewManager(hookSet), events.NewBus(), nil, "inst-1")
	execCtx := wfcontext.New()
	step := &workflow.Step{ID: "s1"}

	res := exec.ExecuteStep(context.Background(), step, execCtx, passThrough, wfvalue.Null())
	require.Equal(t, workflow.StatusFailed, res.Status)
	require.False(t, execCtx.HasStepOutput("s1"))
}

func TestExecuteStepRetriesBodyOnFailure(t *testing.T) {
	t.Parallel()

	exec := New(hooks.NewManager(workflow.HookSet{}), events.NewBus(), nil, "inst-1")
	execCtx := wfcontext.New()
	step := &workflow.Step{ID: "s1", RetryPolicy: &workflow.RetryPolicy{MaxRetries: 2, IntervalMs: 1}}

	var calls int
	body := func(_ context.Context, _ *workflow.Step, input wfvalue.Value) (wfvalue.Value, error) {
		calls++
		if calls < 3 {
			return wfvalue.Null(), errors.New("not yet")
		}
		return wfvalue.String("succeeded"), nil
	}

	res := exec.ExecuteStep(context.Background(), step, execCtx, body, wfvalue.Null())
	require.Equal(t, workflow.StatusSuccess, res.Status)
	require.Equal(t, 3, res.Attempts)
}

func TestExecuteStepRunsAfterHooksEvenOnFailure(t *testing.T) {
	t.Parallel()

	var afterRan bool
	hookSet := workflow.HookSet{After: []workflow.Hook{
		{ID: "a1", Fn: func(context.Context, *workflow.HookContext) error { afterRan = true; return nil }},
	}}
	exec := New(hooks.NewManager(hookSet), events.NewBus(), nil, "inst-1")
	execCtx := wfcontext.New()
	step := &workflow.Step{ID: "s1"}

	body := func(context.Context, *workflow.Step, wfvalue.Value) (wfvalue.Value, error) {
		return wfvalue.Null(), errors.New("always fails")
	}

	res := exec.ExecuteStep(context.Background(), step, execCtx, body, wfvalue.Null())
	require.Equal(t, workflow.StatusFailed, res.Status)
	require.True(t, afterRan)
}

func TestExecuteStepEmitsExpectedEventSequence(t *testing.T) {
	t.Parallel()

	bus := events.NewBus()
	var kinds []events.Kind
	bus.SubscribeAll(func(_ context.Context, evt events.Event) { kinds = append(kinds, evt.Kind) })

	exec := New(hooks.NewManager(workflow.HookSet{}), bus, nil, "inst-1")
	execCtx := wfcontext.New()
	step := &workflow.Step{ID: "s1"}

	exec.ExecuteStep(context.Background(), step, execCtx, passThrough, wfvalue.Null())
	require.Equal(t, []events.Kind{events.KindStepStart, events.KindStepComplete}, kinds)
}
