// Package skip decides whether a step should be bypassed: either via a
// callback predicate supplied by the definition, or by evaluating a
// sandboxed expression string against a read-only projection of the
// execution context.
package skip

import (
	"context"

	"github.com/alexisbeaulieu97/streamy/internal/ports"
	"github.com/alexisbeaulieu97/streamy/internal/workflow"
)

// ShouldSkip evaluates policy against proj and returns whether the step
// should be bypassed. A callback predicate, if present, takes precedence
// over an expression string. An expression that fails to parse or evaluate
// is treated as "do not skip" and logged as a warning rather than
// surfaced as a hard failure, per the engine's policy for malformed skip
// conditions.
func ShouldSkip(ctx context.Context, policy *workflow.SkipPolicy, proj workflow.ContextProjection, logger ports.Logger, stepID string) (bool, error) {
	if policy == nil {
		return false, nil
	}

	if policy.Predicate != nil {
		return policy.Predicate(ctx, proj)
	}

	if policy.Expression == "" {
		return false, nil
	}

	skip, err := Evaluate(policy.Expression, proj)
	if err != nil {
		if logger != nil {
			logger.Warn(ctx, "skip expression evaluation failed, treating as do-not-skip",
				"step_id", stepID, "expression", policy.Expression, "error", err)
		}
		return false, nil
	}
	return skip, nil
}
