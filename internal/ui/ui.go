// Package ui implements the engine's human-in-the-loop interaction modes:
// Display (fire-and-forget, auto-completes after a timeout), and
// Confirm/Select (suspend the step until an external response arrives, or
// until the interaction times out).
package ui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alexisbeaulieu97/streamy/internal/events"
	"github.com/alexisbeaulieu97/streamy/internal/registry"
	"github.com/alexisbeaulieu97/streamy/internal/wait"
	"github.com/alexisbeaulieu97/streamy/internal/wfvalue"
	"github.com/alexisbeaulieu97/streamy/internal/workflow"
	streamyerrors "github.com/alexisbeaulieu97/streamy/pkg/errors"
)

// defaultDisplayTimeout is used when a Display-mode interaction does not
// specify one.
const defaultDisplayTimeout = 3000 * time.Millisecond

// Renderer renders a UI interaction. Renderer errors are swallowed
// (best-effort) per spec.md §4.10.
type Renderer func(ctx context.Context, componentID string, config workflow.UIConfig) (wfvalue.Value, error)

// Descriptor is a registered UI component. SupportedModes lists the UIMode
// values the component can render; a Request for any other mode is
// rejected before Render is ever called.
type Descriptor struct {
	ID             string
	Name           string
	SupportedModes []workflow.UIMode
	Render         Renderer
}

func (d Descriptor) supportsMode(mode workflow.UIMode) bool {
	for _, m := range d.SupportedModes {
		if m == mode {
			return true
		}
	}
	return false
}

// RenderResult is an external caller's response to a pending interaction.
type RenderResult struct {
	Response       wfvalue.Value
	SelectedOption string
}

// Outcome is the result of a UI interaction.
type Outcome struct {
	Response       wfvalue.Value
	SelectedOption string
	AutoCompleted  bool
	Cancelled      bool
	Err            error
}

// NewRegistry constructs the shared UI component Descriptor registry.
func NewRegistry() *registry.Registry[Descriptor] {
	return registry.New[Descriptor](func(id string) error {
		return streamyerrors.NewUIComponentNotFoundError(id)
	})
}

// Handler drives UI interactions for a single workflow instance.
type Handler struct {
	registry   *registry.Registry[Descriptor]
	waitMgr    *wait.Manager
	bus        *events.Bus
	instanceID string

	mu      sync.Mutex
	pending map[string]bool
}

// NewHandler constructs a Handler. waitMgr backs Confirm/Select per
// spec.md §4.5 ("C7 is used by C8 and C9").
func NewHandler(reg *registry.Registry[Descriptor], waitMgr *wait.Manager, bus *events.Bus, instanceID string) *Handler {
	return &Handler{
		registry:   reg,
		waitMgr:    waitMgr,
		bus:        bus,
		instanceID: instanceID,
		pending:    make(map[string]bool),
	}
}

// Request drives the interaction described by cfg for stepID, blocking
// (without consuming an OS thread beyond this goroutine) until the
// interaction resolves.
func (h *Handler) Request(ctx context.Context, stepID string, cfg workflow.UIConfig) Outcome {
	desc, err := h.registry.Get(cfg.ComponentID)
	if err != nil {
		return Outcome{Err: err}
	}

	if !desc.supportsMode(cfg.Mode) {
		return Outcome{Err: streamyerrors.NewValidationError("mode", fmt.Sprintf("component %q does not support mode %q", cfg.ComponentID, cfg.Mode), nil)}
	}

	if cfg.Mode == workflow.UIModeSelect && len(cfg.Options) == 0 {
		return Outcome{Err: streamyerrors.NewValidationError("options", "select mode requires at least one option", nil)}
	}

	h.publish(events.KindUIRequested, stepID, nil)

	response, renderErr := desc.Render(ctx, cfg.ComponentID, cfg)
	if renderErr != nil {
		response = wfvalue.Null()
	}

	switch cfg.Mode {
	case workflow.UIModeDisplay:
		return h.runDisplay(ctx, stepID, cfg, response)
	case workflow.UIModeConfirm:
		return h.runSuspended(stepID, cfg)
	case workflow.UIModeSelect:
		return h.runSuspended(stepID, cfg)
	default:
		return Outcome{Err: streamyerrors.NewValidationError("mode", "unknown UI mode", nil)}
	}
}

func (h *Handler) runDisplay(ctx context.Context, stepID string, cfg workflow.UIConfig, response wfvalue.Value) Outcome {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultDisplayTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}

	h.publish(events.KindUIResolved, stepID, map[string]wfvalue.Value{
		"autoCompleted": wfvalue.Bool(true),
	})

	return Outcome{Response: response, AutoCompleted: true}
}

func (h *Handler) runSuspended(stepID string, cfg workflow.UIConfig) Outcome {
	h.mu.Lock()
	h.pending[stepID] = true
	h.mu.Unlock()

	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	future := h.waitMgr.StartWait(stepID, wait.KindUI, cfg.ComponentID, timeout, wfvalue.Null())

	value, err := future.Wait(context.Background())

	h.mu.Lock()
	delete(h.pending, stepID)
	h.mu.Unlock()

	if err != nil {
		return Outcome{Err: err}
	}

	m, _ := value.AsMap()
	selected, _ := m["selectedOption"].AsString()
	response := m["response"]

	if cfg.Mode == workflow.UIModeSelect {
		if !isDeclaredOption(cfg.Options, selected) {
			return Outcome{Err: streamyerrors.NewValidationError("selectedOption", "not one of the declared options", nil)}
		}
	}

	return Outcome{Response: response, SelectedOption: selected}
}

func isDeclaredOption(options []workflow.UIOption, id string) bool {
	for _, o := range options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// RespondToUI resolves stepID's pending Confirm/Select interaction.
func (h *Handler) RespondToUI(stepID string, result RenderResult) bool {
	h.mu.Lock()
	_, ok := h.pending[stepID]
	h.mu.Unlock()
	if !ok {
		return false
	}

	value := wfvalue.Map(map[string]wfvalue.Value{
		"response":       result.Response,
		"selectedOption": wfvalue.String(result.SelectedOption),
	})

	resolved := h.waitMgr.ResumeWait(stepID, value)
	if resolved {
		h.publish(events.KindUIResolved, stepID, map[string]wfvalue.Value{
			"selectedOption": wfvalue.String(result.SelectedOption),
		})
	}
	return resolved
}

// CancelPendingInteraction rejects stepID's pending interaction with "UI
// interaction cancelled".
func (h *Handler) CancelPendingInteraction(stepID string) bool {
	h.mu.Lock()
	_, ok := h.pending[stepID]
	h.mu.Unlock()
	if !ok {
		return false
	}

	cancelled := h.waitMgr.CancelWait(stepID, "UI interaction cancelled")
	if cancelled {
		h.publish(events.KindUIResolved, stepID, map[string]wfvalue.Value{
			"cancelled": wfvalue.Bool(true),
		})
	}
	return cancelled
}

func (h *Handler) publish(kind events.Kind, stepID string, fields map[string]wfvalue.Value) {
	if h.bus == nil {
		return
	}
	var data wfvalue.Value
	if fields != nil {
		data = wfvalue.Map(fields)
	} else {
		data = wfvalue.Null()
	}
	h.bus.Publish(context.Background(), events.Event{
		Kind:       kind,
		InstanceID: h.instanceID,
		StepID:     stepID,
		Data:       data,
	})
}
