package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseErrorWrapsUnderlying(t *testing.T) {
	t.Parallel()

	underlying := fmt.Errorf("unexpected token")
	err := NewParseError("workflow.yaml", 12, underlying)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "workflow.yaml", parseErr.Path)
	require.Equal(t, 12, parseErr.Line)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "workflow.yaml")
}

func TestValidationErrorAggregatesDetails(t *testing.T) {
	t.Parallel()

	err := NewValidationErrorDetails([]string{"step A missing id", "step B missing type"})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Len(t, validationErr.Details, 2)
	require.Contains(t, err.Error(), "missing id")
}

func TestCyclicDependencyErrorIsAValidationError(t *testing.T) {
	t.Parallel()

	err := NewCyclicDependencyError([]string{"a", "b", "a"})

	var cyclic *CyclicDependencyError
	require.ErrorAs(t, err, &cyclic)
	require.Equal(t, []string{"a", "b", "a"}, cyclic.Cycle)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestExecutionErrorIncludesStepContext(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("command failed")
	err := NewExecutionError("install", underlying)

	var executionErr *ExecutionError
	require.ErrorAs(t, err, &executionErr)
	require.Equal(t, "install", executionErr.StepID)
	require.True(t, stdErrors.Is(err, underlying))
}

func TestToolNotFoundError(t *testing.T) {
	t.Parallel()

	err := NewToolNotFoundError("calc")
	var toolErr *ToolNotFoundError
	require.ErrorAs(t, err, &toolErr)
	require.Contains(t, err.Error(), "calc")
}

func TestSchemaValidationErrorListsFailures(t *testing.T) {
	t.Parallel()

	err := NewSchemaValidationError([]FieldError{
		{Path: "params.x", Message: "expected number"},
		{Path: "params.items[0]", Message: "expected string"},
	})

	require.Contains(t, err.Error(), "params.x")
	require.Contains(t, err.Error(), "params.items[0]")
}

func TestHookExecutionErrorUnwraps(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("boom")
	err := NewHookExecutionError("audit", HookPhaseBefore, "deploy", underlying)

	var hookErr *HookExecutionError
	require.ErrorAs(t, err, &hookErr)
	require.Equal(t, HookPhaseBefore, hookErr.Phase)
	require.True(t, stdErrors.Is(err, underlying))
}

func TestToolExecutionErrorUnwraps(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("network error")
	err := NewToolExecutionError("calc", "step1", underlying)

	var toolErr *ToolExecutionError
	require.ErrorAs(t, err, &toolErr)
	require.True(t, stdErrors.Is(err, underlying))
}

func TestTimeoutErrorMessage(t *testing.T) {
	t.Parallel()

	err := NewTimeoutError("step1", 5000)
	require.Contains(t, err.Error(), "5000ms")
	require.Contains(t, err.Error(), "step1")
}
