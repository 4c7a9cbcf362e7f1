package workflow

import (
	"fmt"

	streamyerrors "github.com/alexisbeaulieu97/streamy/pkg/errors"
)

// Validate performs the structural checks required before a Definition can
// be handed to the DAG builder: non-empty id/name, non-empty step list,
// per-step non-empty id/name/type, step id uniqueness, and dependency ids
// that reference a known step. It does not detect cycles -- that is the
// DAG builder's responsibility (spec.md §4.1/§4.11).
func (d *Definition) Validate() error {
	var details []string

	if d.ID == "" {
		details = append(details, "definition id must not be empty")
	}
	if d.Name == "" {
		details = append(details, "definition name must not be empty")
	}
	if len(d.Steps) == 0 {
		details = append(details, "definition must contain at least one step")
	}

	seen := make(map[string]bool, len(d.Steps))
	for i, step := range d.Steps {
		if step.ID == "" {
			details = append(details, fmt.Sprintf("step[%d]: id must not be empty", i))
			continue
		}
		if step.Name == "" {
			details = append(details, fmt.Sprintf("step %q: name must not be empty", step.ID))
		}
		if step.Type == "" {
			details = append(details, fmt.Sprintf("step %q: type must not be empty", step.ID))
		}
		if seen[step.ID] {
			details = append(details, fmt.Sprintf("duplicate step id %q", step.ID))
		}
		seen[step.ID] = true

		if step.UI != nil && step.UI.Mode == UIModeSelect && len(step.UI.Options) == 0 {
			details = append(details, fmt.Sprintf("step %q: select mode requires at least one option", step.ID))
		}
		if step.RetryPolicy != nil && step.RetryPolicy.MaxRetries < 0 {
			details = append(details, fmt.Sprintf("step %q: retry policy max retries must be non-negative", step.ID))
		}
	}

	for _, step := range d.Steps {
		for _, dep := range step.DependsOn {
			if !seen[dep] {
				details = append(details, fmt.Sprintf("step %q depends on unknown step %q", step.ID, dep))
			}
		}
	}

	if len(details) > 0 {
		return streamyerrors.NewValidationErrorDetails(details)
	}
	return nil
}
