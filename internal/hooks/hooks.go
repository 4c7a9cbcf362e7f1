// Package hooks runs the before- and after-step lifecycle callbacks
// registered globally (definition-wide) and per-step, in the fixed order
// global-then-step for before-hooks and step-then-global for after-hooks.
package hooks

import (
	"context"

	streamyerrors "github.com/alexisbeaulieu97/streamy/pkg/errors"
	"github.com/alexisbeaulieu97/streamy/internal/workflow"
)

// Manager owns the definition-wide (global) hook pipelines and runs them
// alongside a step's own hooks.
type Manager struct {
	globalBefore []workflow.Hook
	globalAfter  []workflow.Hook
}

// NewManager constructs a Manager seeded with a definition's global hooks.
func NewManager(global workflow.HookSet) *Manager {
	return &Manager{
		globalBefore: append([]workflow.Hook(nil), global.Before...),
		globalAfter:  append([]workflow.Hook(nil), global.After...),
	}
}

// RegisterGlobalBefore appends a before-hook to the global pipeline. A hook
// whose id already exists in the pipeline is ignored.
func (m *Manager) RegisterGlobalBefore(h workflow.Hook) {
	if containsID(m.globalBefore, h.ID) {
		return
	}
	m.globalBefore = append(m.globalBefore, h)
}

// RegisterGlobalAfter appends an after-hook to the global pipeline. A hook
// whose id already exists in the pipeline is ignored.
func (m *Manager) RegisterGlobalAfter(h workflow.Hook) {
	if containsID(m.globalAfter, h.ID) {
		return
	}
	m.globalAfter = append(m.globalAfter, h)
}

func containsID(hooks []workflow.Hook, id string) bool {
	for _, h := range hooks {
		if h.ID == id {
			return true
		}
	}
	return false
}

// RunBefore executes the global before-hooks followed by the step's own
// before-hooks, in order. The first hook to return an error aborts the
// chain; that error is returned wrapped as a HookExecutionError and the
// step must not proceed.
func (m *Manager) RunBefore(ctx context.Context, step *workflow.Step, hctx *workflow.HookContext) error {
	for _, h := range m.globalBefore {
		if err := runOne(ctx, h, hctx, streamyerrors.HookPhaseBefore, step.ID); err != nil {
			return err
		}
	}
	if step.Hooks != nil {
		for _, h := range step.Hooks.Before {
			if err := runOne(ctx, h, hctx, streamyerrors.HookPhaseBefore, step.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// RunAfter executes the step's own after-hooks followed by the global
// after-hooks, in order. Every hook runs regardless of prior failures;
// failures are collected and returned (for logging) but never abort the
// chain and never fail the step itself.
func (m *Manager) RunAfter(ctx context.Context, step *workflow.Step, hctx *workflow.HookContext) []error {
	var failures []error

	if step.Hooks != nil {
		for _, h := range step.Hooks.After {
			if err := runOne(ctx, h, hctx, streamyerrors.HookPhaseAfter, step.ID); err != nil {
				failures = append(failures, err)
			}
		}
	}
	for _, h := range m.globalAfter {
		if err := runOne(ctx, h, hctx, streamyerrors.HookPhaseAfter, step.ID); err != nil {
			failures = append(failures, err)
		}
	}
	return failures
}

func runOne(ctx context.Context, h workflow.Hook, hctx *workflow.HookContext, phase streamyerrors.HookPhase, stepID string) error {
	if h.Fn == nil {
		return nil
	}
	if err := h.Fn(ctx, hctx); err != nil {
		return streamyerrors.NewHookExecutionError(h.ID, phase, stepID, err)
	}
	return nil
}
