package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	streamyerrors "github.com/alexisbeaulieu97/streamy/pkg/errors"
	"github.com/alexisbeaulieu97/streamy/internal/events"
	"github.com/alexisbeaulieu97/streamy/internal/wait"
	"github.com/alexisbeaulieu97/streamy/internal/wfcontext"
	"github.com/alexisbeaulieu97/streamy/internal/wfvalue"
	"github.com/alexisbeaulieu97/streamy/internal/workflow"
)

func TestInvokeReturnsToolNotFound(t *testing.T) {
	t.Parallel()

	bus := events.NewBus()
	inv := NewInvoker(NewRegistry(), wait.NewManager(bus, "inst-1"), bus, "inst-1")
	res := inv.Invoke(context.Background(), "missing", wfvalue.Null(), "s1")
	require.Error(t, res.Err)

	var notFound *streamyerrors.ToolNotFoundError
	require.ErrorAs(t, res.Err, &notFound)
}

func TestInvokeSucceeds(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, reg.Register("echo", Descriptor{
		ID: "echo",
		Execute: func(_ context.Context, params wfvalue.Value) (wfvalue.Value, error) {
			return params, nil
		},
	}))
	bus := events.NewBus()
	inv := NewInvoker(reg, wait.NewManager(bus, "inst-1"), bus, "inst-1")

	res := inv.Invoke(context.Background(), "echo", wfvalue.String("hi"), "s1")
	require.NoError(t, res.Err)
	s, _ := res.Value.AsString()
	require.Equal(t, "hi", s)
}

func TestInvokeFailsSchemaValidation(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, reg.Register("echo", Descriptor{
		ID:          "echo",
		InputSchema: &Schema{Type: "object", Required: []string{"x"}},
		Execute:     func(_ context.Context, params wfvalue.Value) (wfvalue.Value, error) { return params, nil },
	}))
	bus := events.NewBus()
	inv := NewInvoker(reg, wait.NewManager(bus, "inst-1"), bus, "inst-1")

	res := inv.Invoke(context.Background(), "echo", wfvalue.Map(map[string]wfvalue.Value{}), "s1")
	require.Error(t, res.Err)

	var schemaErr *streamyerrors.SchemaValidationError
	require.ErrorAs(t, res.Err, &schemaErr)
}

func TestInvokeEnforcesTimeout(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, reg.Register("slow", Descriptor{
		ID:      "slow",
		Timeout: 10 * time.Millisecond,
		Execute: func(ctx context.Context, _ wfvalue.Value) (wfvalue.Value, error) {
			select {
			case <-time.After(100 * time.Millisecond):
				return wfvalue.Null(), nil
			case <-ctx.Done():
				return wfvalue.Null(), ctx.Err()
			}
		},
	}))
	bus := events.NewBus()
	inv := NewInvoker(reg, wait.NewManager(bus, "inst-1"), bus, "inst-1")

	res := inv.Invoke(context.Background(), "slow", wfvalue.Null(), "s1")
	require.Error(t, res.Err)

	var timeoutErr *streamyerrors.TimeoutError
	require.ErrorAs(t, res.Err, &timeoutErr)
}

func TestInvokeAsyncResolvedByRespondToTool(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, reg.Register("approve", Descriptor{ID: "approve", Async: true}))
	bus := events.NewBus()
	inv := NewInvoker(reg, wait.NewManager(bus, "inst-1"), bus, "inst-1")

	future, err := inv.InvokeAsync("approve", wfvalue.Null(), "s1", 0)
	require.NoError(t, err)

	require.True(t, inv.RespondToTool("s1", "approve", wfvalue.Bool(true)))

	v, err := future.Wait(context.Background())
	require.NoError(t, err)
	b, _ := v.AsBool()
	require.True(t, b)
}

func TestInvokeAsyncResolvedByRespondToToolError(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, reg.Register("approve", Descriptor{ID: "approve", Async: true}))
	bus := events.NewBus()
	inv := NewInvoker(reg, wait.NewManager(bus, "inst-1"), bus, "inst-1")

	future, err := inv.InvokeAsync("approve", wfvalue.Null(), "s1", 0)
	require.NoError(t, err)

	require.True(t, inv.RespondToToolError("s1", "approve", errors.New("denied")))

	_, err = future.Wait(context.Background())
	require.Error(t, err)
}

func TestInvokeAsyncTimesOutWithoutResponse(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, reg.Register("approve", Descriptor{ID: "approve", Async: true}))
	bus := events.NewBus()
	inv := NewInvoker(reg, wait.NewManager(bus, "inst-1"), bus, "inst-1")

	future, err := inv.InvokeAsync("approve", wfvalue.Null(), "s1", 15*time.Millisecond)
	require.NoError(t, err)

	_, err = future.Wait(context.Background())
	require.Error(t, err)

	var timeoutErr *streamyerrors.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
}

func TestExecuteToolInvocationsStopsOnFirstFailure(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, reg.Register("ok", Descriptor{
		ID:      "ok",
		Execute: func(_ context.Context, p wfvalue.Value) (wfvalue.Value, error) { return p, nil },
	}))
	require.NoError(t, reg.Register("bad", Descriptor{
		ID:      "bad",
		Execute: func(_ context.Context, p wfvalue.Value) (wfvalue.Value, error) { return wfvalue.Null(), errors.New("boom") },
	}))

	bus := events.NewBus()
	inv := NewInvoker(reg, wait.NewManager(bus, "inst-1"), bus, "inst-1")
	execCtx := wfcontext.New()

	invocations := []workflow.ToolInvocation{
		{ToolID: "ok", OutputKey: "okResult", Params: wfvalue.String("a")},
		{ToolID: "bad", OutputKey: "badResult"},
		{ToolID: "ok", OutputKey: "neverReached"},
	}

	results, err := ExecuteToolInvocations(context.Background(), inv, invocations, execCtx, "s1")
	require.Error(t, err)
	require.Len(t, results, 2)

	_, ok := execCtx.GetGlobal("okResult")
	require.True(t, ok)
	_, ok = execCtx.GetGlobal("neverReached")
	require.False(t, ok)
}

func TestExecuteToolInvocationsWritesOutputKeyToGlobals(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, reg.Register("echo", Descriptor{
		ID:      "echo",
		Execute: func(_ context.Context, p wfvalue.Value) (wfvalue.Value, error) { return p, nil },
	}))
	bus := events.NewBus()
	inv := NewInvoker(reg, wait.NewManager(bus, "inst-1"), bus, "inst-1")
	execCtx := wfcontext.New()

	_, err := ExecuteToolInvocations(context.Background(), inv, []workflow.ToolInvocation{
		{ToolID: "echo", OutputKey: "echoed", Params: wfvalue.String("hi")},
	}, execCtx, "s1")
	require.NoError(t, err)

	v, ok := execCtx.GetGlobal("echoed")
	require.True(t, ok)
	s, _ := v.AsString()
	require.Equal(t, "hi", s)
}
