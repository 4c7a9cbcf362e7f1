// Package errors defines the workflow engine's error taxonomy. The types
// that carry an underlying cause (ParseError, ValidationError,
// CyclicDependencyError, ExecutionError, StepExecutionError,
// HookExecutionError, ToolExecutionError) expose it via Unwrap, so callers
// can use errors.As/errors.Is against either the concrete type or the
// wrapped error.
package errors

import (
	"fmt"
	"strings"
)

// ParseError represents a YAML/JSON parsing failure with optional line
// metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures definition structural validation issues. A
// definition may accumulate multiple problems before load fails; Details
// holds one message per problem found.
type ValidationError struct {
	Field   string
	Message string
	Details []string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

// NewValidationErrorDetails constructs a ValidationError carrying a list of
// independent problems found while validating a definition.
func NewValidationErrorDetails(details []string) error {
	return &ValidationError{Message: "definition is invalid", Details: details}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Details) > 0 {
		return fmt.Sprintf("validation error: %s: %s", e.Message, strings.Join(e.Details, "; "))
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CyclicDependencyError is a ValidationError subtype raised when DAG
// construction detects a cycle. Cycle holds one representative cycle path.
type CyclicDependencyError struct {
	ValidationError
	Cycle []string
}

// NewCyclicDependencyError constructs a CyclicDependencyError carrying the
// offending cycle path.
func NewCyclicDependencyError(cycle []string) error {
	return &CyclicDependencyError{
		ValidationError: ValidationError{
			Field:   "steps",
			Message: fmt.Sprintf("cyclic dependency detected: %s", strings.Join(cycle, " -> ")),
		},
		Cycle: cycle,
	}
}

func (e *CyclicDependencyError) Error() string {
	if e == nil {
		return ""
	}
	return e.ValidationError.Error()
}

// Unwrap exposes the embedded ValidationError so errors.As(&ValidationError{})
// also matches a CyclicDependencyError.
func (e *CyclicDependencyError) Unwrap() error {
	if e == nil {
		return nil
	}
	return &e.ValidationError
}

// ExecutionError represents a runtime failure while executing a step.
type ExecutionError struct {
	StepID string
	Err    error
}

// NewExecutionError constructs an ExecutionError.
func NewExecutionError(stepID string, err error) error {
	return &ExecutionError{StepID: stepID, Err: err}
}

func (e *ExecutionError) Error() string {
	if e == nil {
		return ""
	}
	if e.StepID != "" {
		return fmt.Sprintf("execution error on step %s: %v", e.StepID, e.Err)
	}
	return fmt.Sprintf("execution error: %v", e.Err)
}

// Unwrap exposes the root error.
func (e *ExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StepExecutionError wraps an underlying error thrown by a step body. It is
// retained across retries as the step's last error.
type StepExecutionError struct {
	StepID string
	Err    error
}

// NewStepExecutionError constructs a StepExecutionError.
func NewStepExecutionError(stepID string, err error) error {
	return &StepExecutionError{StepID: stepID, Err: err}
}

func (e *StepExecutionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("step %s failed: %v", e.StepID, e.Err)
}

// Unwrap exposes the underlying error.
func (e *StepExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ToolNotFoundError indicates a tool invocation referenced an unregistered
// tool id.
type ToolNotFoundError struct {
	ToolID string
}

// NewToolNotFoundError constructs a ToolNotFoundError.
func NewToolNotFoundError(toolID string) error {
	return &ToolNotFoundError{ToolID: toolID}
}

func (e *ToolNotFoundError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("tool not found: %s", e.ToolID)
}

// UIComponentNotFoundError indicates a UI invocation referenced an
// unregistered component id.
type UIComponentNotFoundError struct {
	ComponentID string
}

// NewUIComponentNotFoundError constructs a UIComponentNotFoundError.
func NewUIComponentNotFoundError(componentID string) error {
	return &UIComponentNotFoundError{ComponentID: componentID}
}

func (e *UIComponentNotFoundError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("ui component not found: %s", e.ComponentID)
}

// FieldError names one path-qualified schema validation failure.
type FieldError struct {
	Path    string
	Message string
}

// SchemaValidationError carries every field that failed schema validation.
type SchemaValidationError struct {
	Failures []FieldError
}

// NewSchemaValidationError constructs a SchemaValidationError.
func NewSchemaValidationError(failures []FieldError) error {
	return &SchemaValidationError{Failures: failures}
}

func (e *SchemaValidationError) Error() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Path, f.Message))
	}
	return fmt.Sprintf("schema validation failed: %s", strings.Join(parts, "; "))
}

// TimeoutError carries the step and duration that elapsed before a
// timeout fired.
type TimeoutError struct {
	StepID       string
	Milliseconds int64
}

// NewTimeoutError constructs a TimeoutError.
func NewTimeoutError(stepID string, milliseconds int64) error {
	return &TimeoutError{StepID: stepID, Milliseconds: milliseconds}
}

func (e *TimeoutError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("timeout after %dms on step %s", e.Milliseconds, e.StepID)
}

// HookPhase distinguishes before- and after-step hook execution.
type HookPhase string

const (
	HookPhaseBefore HookPhase = "before"
	HookPhaseAfter  HookPhase = "after"
)

// HookExecutionError carries the hook identifier, phase, step id and
// wrapped cause for a failing hook invocation.
type HookExecutionError struct {
	HookID string
	Phase  HookPhase
	StepID string
	Err    error
}

// NewHookExecutionError constructs a HookExecutionError.
func NewHookExecutionError(hookID string, phase HookPhase, stepID string, err error) error {
	return &HookExecutionError{HookID: hookID, Phase: phase, StepID: stepID, Err: err}
}

func (e *HookExecutionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("hook %s (%s) failed on step %s: %v", e.HookID, e.Phase, e.StepID, e.Err)
}

// Unwrap exposes the underlying error.
func (e *HookExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ToolExecutionError carries the tool id, step id and wrapped cause for a
// failing tool invocation.
type ToolExecutionError struct {
	ToolID string
	StepID string
	Err    error
}

// NewToolExecutionError constructs a ToolExecutionError.
func NewToolExecutionError(toolID, stepID string, err error) error {
	return &ToolExecutionError{ToolID: toolID, StepID: stepID, Err: err}
}

func (e *ToolExecutionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("tool %s failed on step %s: %v", e.ToolID, e.StepID, e.Err)
}

// Unwrap exposes the underlying error.
func (e *ToolExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CancelledError indicates a step or wait was terminated by an explicit
// cancellation rather than a failure or timeout.
type CancelledError struct {
	StepID string
	Reason string
}

// NewCancelledError constructs a CancelledError.
func NewCancelledError(stepID, reason string) error {
	return &CancelledError{StepID: stepID, Reason: reason}
}

func (e *CancelledError) Error() string {
	if e == nil {
		return ""
	}
	if e.Reason != "" {
		return fmt.Sprintf("cancelled: %s", e.Reason)
	}
	return "cancelled"
}
