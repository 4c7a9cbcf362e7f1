package skip

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/streamy/internal/wfvalue"
)

type fakeProjection struct {
	stepOutputs map[string]wfvalue.Value
	globals     map[string]wfvalue.Value
}

func (f fakeProjection) GetStepOutput(id string) (wfvalue.Value, bool) {
	v, ok := f.stepOutputs[id]
	return v, ok
}

func (f fakeProjection) GetGlobal(key string) (wfvalue.Value, bool) {
	v, ok := f.globals[key]
	return v, ok
}

func TestEvaluateGetStepOutputFieldEquality(t *testing.T) {
	t.Parallel()

	proj := fakeProjection{stepOutputs: map[string]wfvalue.Value{
		"choose": wfvalue.Map(map[string]wfvalue.Value{"selectedOption": wfvalue.String("fast")}),
	}}

	result, err := Evaluate(`getStepOutput('choose').selectedOption == 'fast'`, proj)
	require.NoError(t, err)
	require.True(t, result)

	result, err = Evaluate(`getStepOutput('choose').selectedOption == 'full'`, proj)
	require.NoError(t, err)
	require.False(t, result)
}

func TestEvaluateCtxDottedPath(t *testing.T) {
	t.Parallel()

	proj := fakeProjection{globals: map[string]wfvalue.Value{
		"env": wfvalue.String("prod"),
	}}

	result, err := Evaluate(`ctx.globals.env == 'prod'`, proj)
	require.NoError(t, err)
	require.True(t, result)
}

func TestEvaluateNumericComparison(t *testing.T) {
	t.Parallel()

	proj := fakeProjection{globals: map[string]wfvalue.Value{"count": wfvalue.Number(5)}}

	result, err := Evaluate(`getGlobal('count') > 3`, proj)
	require.NoError(t, err)
	require.True(t, result)

	result, err = Evaluate(`getGlobal('count') < 3`, proj)
	require.NoError(t, err)
	require.False(t, result)
}

func TestEvaluateLogicalOperators(t *testing.T) {
	t.Parallel()

	proj := fakeProjection{globals: map[string]wfvalue.Value{
		"a": wfvalue.Bool(true),
		"b": wfvalue.Bool(false),
	}}

	result, err := Evaluate(`getGlobal('a') == true && getGlobal('b') == false`, proj)
	require.NoError(t, err)
	require.True(t, result)

	result, err = Evaluate(`!(getGlobal('a') == false) || getGlobal('b') == true`, proj)
	require.NoError(t, err)
	require.True(t, result)
}

func TestEvaluateMissingKeyYieldsNullNotError(t *testing.T) {
	t.Parallel()

	proj := fakeProjection{}
	result, err := Evaluate(`getGlobal('missing') == null`, proj)
	require.NoError(t, err)
	require.True(t, result)
}

func TestEvaluateReturnsErrorOnMalformedExpression(t *testing.T) {
	t.Parallel()

	proj := fakeProjection{}
	_, err := Evaluate(`getGlobal('x') ==`, proj)
	require.Error(t, err)
}

func TestEvaluateReturnsErrorWhenResultIsNotBoolean(t *testing.T) {
	t.Parallel()

	proj := fakeProjection{globals: map[string]wfvalue.Value{"x": wfvalue.Number(1)}}
	_, err := Evaluate(`getGlobal('x')`, proj)
	require.Error(t, err)
}
