// Package wfcontext holds the per-instance runtime state a workflow
// execution reads and writes while it runs: step outputs and a global
// key/value namespace, kept separate so a step's output can never
// accidentally shadow a global (or vice versa).
package wfcontext

import (
	"sync"

	"github.com/alexisbeaulieu97/streamy/internal/wfvalue"
)

// Context is the mutable execution state for a single workflow instance.
// All accessors are safe for concurrent use; the engine's main loop may
// fan out multiple steps at once.
type Context struct {
	mu          sync.RWMutex
	stepOutputs map[string]wfvalue.Value
	globals     map[string]wfvalue.Value
}

// New returns an empty Context.
func New() *Context {
	return &Context{
		stepOutputs: make(map[string]wfvalue.Value),
		globals:     make(map[string]wfvalue.Value),
	}
}

// GetStepOutput returns the recorded output of stepID, if any.
func (c *Context) GetStepOutput(stepID string) (wfvalue.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.stepOutputs[stepID]
	return v, ok
}

// SetStepOutput records the output of stepID, overwriting any prior value.
func (c *Context) SetStepOutput(stepID string, value wfvalue.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stepOutputs[stepID] = value
}

// HasStepOutput reports whether stepID has a recorded output.
func (c *Context) HasStepOutput(stepID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.stepOutputs[stepID]
	return ok
}

// GetGlobal returns the value stored under key in the global namespace.
func (c *Context) GetGlobal(key string) (wfvalue.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.globals[key]
	return v, ok
}

// SetGlobal stores value under key in the global namespace, overwriting any
// prior value.
func (c *Context) SetGlobal(key string, value wfvalue.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.globals[key] = value
}

// HasGlobal reports whether key is present in the global namespace.
func (c *Context) HasGlobal(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.globals[key]
	return ok
}

// Snapshot is a point-in-time structural copy of a Context, safe to read
// without holding any lock on the live Context.
type Snapshot struct {
	StepOutputs map[string]wfvalue.Value
	Globals     map[string]wfvalue.Value
}

// Snapshot copies both namespaces. Values are wfvalue.Value, which copies
// its contained lists/maps on construction, so the returned maps are fully
// independent of subsequent writes to c.
func (c *Context) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	outputs := make(map[string]wfvalue.Value, len(c.stepOutputs))
	for k, v := range c.stepOutputs {
		outputs[k] = v
	}
	globals := make(map[string]wfvalue.Value, len(c.globals))
	for k, v := range c.globals {
		globals[k] = v
	}
	return Snapshot{StepOutputs: outputs, Globals: globals}
}

// Restore replaces both namespaces with the contents of a previously taken
// Snapshot.
func (c *Context) Restore(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	outputs := make(map[string]wfvalue.Value, len(snap.StepOutputs))
	for k, v := range snap.StepOutputs {
		outputs[k] = v
	}
	globals := make(map[string]wfvalue.Value, len(snap.Globals))
	for k, v := range snap.Globals {
		globals[k] = v
	}
	c.stepOutputs = outputs
	c.globals = globals
}

// ClearStepOutputs empties the step output namespace. Administrative only;
// the engine never calls this during normal execution.
func (c *Context) ClearStepOutputs() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stepOutputs = make(map[string]wfvalue.Value)
}

// ClearGlobals empties the global namespace. Administrative only; the
// engine never calls this during normal execution.
func (c *Context) ClearGlobals() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.globals = make(map[string]wfvalue.Value)
}

// Clear empties both namespaces. Administrative only; the engine never
// calls this during normal execution.
func (c *Context) Clear() {
	c.ClearStepOutputs()
	c.ClearGlobals()
}
