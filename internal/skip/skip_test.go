package skip

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/streamy/internal/wfvalue"
	"github.com/alexisbeaulieu97/streamy/internal/workflow"
)

func TestShouldSkipNilPolicyNeverSkips(t *testing.T) {
	t.Parallel()

	skip, err := ShouldSkip(context.Background(), nil, fakeProjection{}, nil, "s1")
	require.NoError(t, err)
	require.False(t, skip)
}

func TestShouldSkipPredicateTakesPrecedenceOverExpression(t *testing.T) {
	t.Parallel()

	policy := &workflow.SkipPolicy{
		Predicate:  func(context.Context, workflow.ContextProjection) (bool, error) { return true, nil },
		Expression: `false`,
	}
	skip, err := ShouldSkip(context.Background(), policy, fakeProjection{}, nil, "s1")
	require.NoError(t, err)
	require.True(t, skip)
}

func TestShouldSkipMalformedExpressionTreatedAsDoNotSkip(t *testing.T) {
	t.Parallel()

	policy := &workflow.SkipPolicy{Expression: `getGlobal('x') ==`}
	skip, err := ShouldSkip(context.Background(), policy, fakeProjection{}, nil, "s1")
	require.NoError(t, err)
	require.False(t, skip)
}

func TestShouldSkipEvaluatesExpression(t *testing.T) {
	t.Parallel()

	proj := fakeProjection{stepOutputs: map[string]wfvalue.Value{
		"choose": wfvalue.Map(map[string]wfvalue.Value{"selectedOption": wfvalue.String("full")}),
	}}
	policy := &workflow.SkipPolicy{Expression: `getStepOutput('choose').selectedOption == 'fast'`}

	skip, err := ShouldSkip(context.Background(), policy, proj, nil, "fast")
	require.NoError(t, err)
	require.False(t, skip)
}
