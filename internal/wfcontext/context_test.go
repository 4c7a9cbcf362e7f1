package wfcontext

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/streamy/internal/wfvalue"
)

func TestStepOutputsAndGlobalsAreIndependentNamespaces(t *testing.T) {
	t.Parallel()

	ctx := New()
	ctx.SetStepOutput("step1", wfvalue.String("a"))
	ctx.SetGlobal("step1", wfvalue.String("b"))

	out, ok := ctx.GetStepOutput("step1")
	require.True(t, ok)
	s, _ := out.AsString()
	require.Equal(t, "a", s)

	glob, ok := ctx.GetGlobal("step1")
	require.True(t, ok)
	s, _ = glob.AsString()
	require.Equal(t, "b", s)
}

func TestSnapshotRestoreRoundTrips(t *testing.T) {
	t.Parallel()

	ctx := New()
	ctx.SetStepOutput("a", wfvalue.Number(1))
	ctx.SetGlobal("g", wfvalue.Bool(true))

	snap := ctx.Snapshot()

	ctx.SetStepOutput("a", wfvalue.Number(99))
	ctx.SetGlobal("g", wfvalue.Bool(false))
	ctx.SetStepOutput("b", wfvalue.Number(2))

	ctx.Restore(snap)

	v, ok := ctx.GetStepOutput("a")
	require.True(t, ok)
	n, _ := v.AsNumber()
	require.Equal(t, float64(1), n)

	require.False(t, ctx.HasStepOutput("b"))

	g, ok := ctx.GetGlobal("g")
	require.True(t, ok)
	b, _ := g.AsBool()
	require.True(t, b)
}

func TestSnapshotIsIndependentOfLiveMutation(t *testing.T) {
	t.Parallel()

	ctx := New()
	ctx.SetGlobal("k", wfvalue.String("v1"))
	snap := ctx.Snapshot()

	ctx.SetGlobal("k", wfvalue.String("v2"))

	v, ok := snap.Globals["k"]
	require.True(t, ok)
	s, _ := v.AsString()
	require.Equal(t, "v1", s)
}

func TestClearOperationsAreAdministrativeOnly(t *testing.T) {
	t.Parallel()

	ctx := New()
	ctx.SetStepOutput("a", wfvalue.Number(1))
	ctx.SetGlobal("g", wfvalue.Number(2))

	ctx.ClearStepOutputs()
	require.False(t, ctx.HasStepOutput("a"))
	require.True(t, ctx.HasGlobal("g"))

	ctx.ClearGlobals()
	require.False(t, ctx.HasGlobal("g"))
}

func TestContextIsSafeForConcurrentAccess(t *testing.T) {
	t.Parallel()

	ctx := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			ctx.SetStepOutput("s", wfvalue.Number(float64(i)))
		}(i)
		go func() {
			defer wg.Done()
			ctx.GetStepOutput("s")
		}()
	}
	wg.Wait()
}

func TestTwoInstancesAreFullyIsolated(t *testing.T) {
	t.Parallel()

	a := New()
	b := New()

	a.SetGlobal("k", wfvalue.String("a-value"))
	b.SetGlobal("k", wfvalue.String("b-value"))

	va, _ := a.GetGlobal("k")
	vb, _ := b.GetGlobal("k")

	sa, _ := va.AsString()
	sb, _ := vb.AsString()
	require.Equal(t, "a-value", sa)
	require.Equal(t, "b-value", sb)
}
