package workflow

import (
	"encoding/json"

	"github.com/alexisbeaulieu97/streamy/internal/wfvalue"
	streamyerrors "github.com/alexisbeaulieu97/streamy/pkg/errors"
)

// nativeCallbackPlaceholder stands in for a Go hook function or skip
// predicate that has no JSON representation. It round-trips as a plain
// string; the importer never reconstructs the callback it names.
const nativeCallbackPlaceholder = "<native-callback>"

// canonicalDefinition mirrors Definition's declarative fields for the
// id/name/description/steps/globalHooks shape spec.md §6 names for
// exportDefinition/importDefinition. It is a separate concern from
// ExportedState: this is the definition itself, not an instance's runtime
// status snapshot.
type canonicalDefinition struct {
	ID          string           `json:"id" validate:"required"`
	Name        string           `json:"name" validate:"required"`
	Description string           `json:"description,omitempty"`
	Steps       []canonicalStep  `json:"steps" validate:"required,min=1,dive"`
	GlobalHooks canonicalHookSet `json:"globalHooks,omitempty"`
}

type canonicalStep struct {
	ID           string                    `json:"id" validate:"required"`
	Name         string                    `json:"name" validate:"required"`
	Type         string                    `json:"type" validate:"required"`
	Dependencies []string                  `json:"dependencies,omitempty"`
	Config       *wfvalue.Value            `json:"config,omitempty" validate:"-"`
	RetryPolicy  *canonicalRetryPolicy     `json:"retryPolicy,omitempty"`
	SkipPolicy   *canonicalSkipPolicy      `json:"skipPolicy,omitempty"`
	Hooks        *canonicalHookSet         `json:"hooks,omitempty"`
	UI           *canonicalUIConfig        `json:"ui,omitempty"`
	Tools        []canonicalToolInvocation `json:"tools,omitempty"`
}

type canonicalRetryPolicy struct {
	MaxRetries         int     `json:"maxRetries" validate:"min=0"`
	IntervalMs         int64   `json:"intervalMs" validate:"min=0"`
	ExponentialBackoff bool    `json:"exponentialBackoff,omitempty"`
	Multiplier         float64 `json:"multiplier,omitempty"`
}

// canonicalSkipPolicy carries Expression verbatim. A SkipPolicy whose
// Predicate is a native Go function rather than a string expression
// serializes Expression as nativeCallbackPlaceholder; on import the
// resulting SkipPolicy has a string Expression and a nil Predicate, so it
// is inert until the caller re-binds a predicate programmatically.
type canonicalSkipPolicy struct {
	Expression    string         `json:"expression,omitempty"`
	DefaultOutput *wfvalue.Value `json:"defaultOutput,omitempty" validate:"-"`
}

// canonicalHook is a lossy projection of Hook: Fn has no JSON
// representation, so Source records only a placeholder marking that a
// callback was present. Imported hooks carry Fn == nil.
type canonicalHook struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Source string `json:"source,omitempty"`
}

type canonicalHookSet struct {
	Before []canonicalHook `json:"before,omitempty"`
	After  []canonicalHook `json:"after,omitempty"`
}

func (h canonicalHookSet) isEmpty() bool {
	return len(h.Before) == 0 && len(h.After) == 0
}

type canonicalUIOption struct {
	ID         string         `json:"id" validate:"required"`
	Label      string         `json:"label,omitempty"`
	Value      *wfvalue.Value `json:"value,omitempty" validate:"-"`
	NextStepID string         `json:"nextStepId,omitempty"`
}

type canonicalUIConfig struct {
	ComponentID string              `json:"componentId" validate:"required"`
	Mode        string              `json:"mode" validate:"required,oneof=display confirm select"`
	Data        *wfvalue.Value      `json:"data,omitempty" validate:"-"`
	TimeoutMs   int64               `json:"timeoutMs,omitempty"`
	Options     []canonicalUIOption `json:"options,omitempty"`
}

type canonicalToolInvocation struct {
	ToolID    string         `json:"toolId" validate:"required"`
	Params    *wfvalue.Value `json:"params,omitempty" validate:"-"`
	OutputKey string         `json:"outputKey,omitempty"`
}

// MarshalDefinition renders def as canonical Definition JSON per spec.md
// §6: id, name, description, steps (each with id, name, type,
// dependencies, config, retryPolicy, skipPolicy, hooks, ui, tools) and
// globalHooks.
func MarshalDefinition(def *Definition) ([]byte, error) {
	doc := canonicalDefinition{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
		GlobalHooks: toCanonicalHookSet(def.GlobalHooks),
	}
	doc.Steps = make([]canonicalStep, 0, len(def.Steps))
	for _, s := range def.Steps {
		doc.Steps = append(doc.Steps, toCanonicalStep(s))
	}
	return json.MarshalIndent(doc, "", "  ")
}

// UnmarshalDefinition decodes canonical Definition JSON, struct-validates
// it, builds a Definition, and runs the same structural validation
// engine.LoadWorkflow performs -- so importDefinition(exportDefinition())
// round-trips every declarative field (Property 11).
func UnmarshalDefinition(data []byte) (*Definition, error) {
	var doc canonicalDefinition
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, streamyerrors.NewParseError("", 0, err)
	}
	if err := validatorInstance().Struct(doc); err != nil {
		return nil, streamyerrors.NewParseError("", 0, err)
	}

	def := fromCanonicalDefinition(doc)
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

func toCanonicalStep(s Step) canonicalStep {
	cs := canonicalStep{
		ID:           s.ID,
		Name:         s.Name,
		Type:         s.Type,
		Dependencies: s.DependsOn,
	}
	if !s.Config.IsNull() {
		v := s.Config
		cs.Config = &v
	}
	if s.RetryPolicy != nil {
		cs.RetryPolicy = &canonicalRetryPolicy{
			MaxRetries:         s.RetryPolicy.MaxRetries,
			IntervalMs:         s.RetryPolicy.IntervalMs,
			ExponentialBackoff: s.RetryPolicy.ExponentialBackoff,
			Multiplier:         s.RetryPolicy.Multiplier,
		}
	}
	if s.SkipPolicy != nil {
		cs.SkipPolicy = toCanonicalSkip(s.SkipPolicy)
	}
	if s.Hooks != nil {
		hs := toCanonicalHookSet(*s.Hooks)
		cs.Hooks = &hs
	}
	if s.UI != nil {
		cs.UI = toCanonicalUI(s.UI)
	}
	for _, t := range s.Tools {
		cs.Tools = append(cs.Tools, toCanonicalTool(t))
	}
	return cs
}

func toCanonicalSkip(p *SkipPolicy) *canonicalSkipPolicy {
	expr := p.Expression
	if expr == "" && p.Predicate != nil {
		expr = nativeCallbackPlaceholder
	}
	out := &canonicalSkipPolicy{Expression: expr}
	if p.DefaultOutput != nil {
		v := *p.DefaultOutput
		out.DefaultOutput = &v
	}
	return out
}

func toCanonicalHookSet(hs HookSet) canonicalHookSet {
	out := canonicalHookSet{}
	for _, h := range hs.Before {
		out.Before = append(out.Before, toCanonicalHook(h))
	}
	for _, h := range hs.After {
		out.After = append(out.After, toCanonicalHook(h))
	}
	return out
}

func toCanonicalHook(h Hook) canonicalHook {
	source := ""
	if h.Fn != nil {
		source = nativeCallbackPlaceholder
	}
	return canonicalHook{ID: h.ID, Name: h.Name, Source: source}
}

func toCanonicalUI(u *UIConfig) *canonicalUIConfig {
	out := &canonicalUIConfig{
		ComponentID: u.ComponentID,
		Mode:        string(u.Mode),
		TimeoutMs:   u.TimeoutMs,
	}
	if !u.Data.IsNull() {
		v := u.Data
		out.Data = &v
	}
	for _, o := range u.Options {
		opt := canonicalUIOption{ID: o.ID, Label: o.Label, NextStepID: o.NextStepID}
		if !o.Value.IsNull() {
			v := o.Value
			opt.Value = &v
		}
		out.Options = append(out.Options, opt)
	}
	return out
}

func toCanonicalTool(t ToolInvocation) canonicalToolInvocation {
	out := canonicalToolInvocation{ToolID: t.ToolID, OutputKey: t.OutputKey}
	if !t.Params.IsNull() {
		v := t.Params
		out.Params = &v
	}
	return out
}

func fromCanonicalDefinition(doc canonicalDefinition) *Definition {
	def := &Definition{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		GlobalHooks: fromCanonicalHookSet(doc.GlobalHooks),
	}
	def.Steps = make([]Step, 0, len(doc.Steps))
	for _, cs := range doc.Steps {
		def.Steps = append(def.Steps, fromCanonicalStep(cs))
	}
	return def
}

func fromCanonicalStep(cs canonicalStep) Step {
	s := Step{
		ID:        cs.ID,
		Name:      cs.Name,
		Type:      cs.Type,
		DependsOn: cs.Dependencies,
	}
	if cs.Config != nil {
		s.Config = *cs.Config
	}
	if cs.RetryPolicy != nil {
		s.RetryPolicy = &RetryPolicy{
			MaxRetries:         cs.RetryPolicy.MaxRetries,
			IntervalMs:         cs.RetryPolicy.IntervalMs,
			ExponentialBackoff: cs.RetryPolicy.ExponentialBackoff,
			Multiplier:         cs.RetryPolicy.Multiplier,
		}
	}
	if cs.SkipPolicy != nil {
		s.SkipPolicy = &SkipPolicy{Expression: cs.SkipPolicy.Expression}
		if cs.SkipPolicy.DefaultOutput != nil {
			v := *cs.SkipPolicy.DefaultOutput
			s.SkipPolicy.DefaultOutput = &v
		}
	}
	if cs.Hooks != nil && !cs.Hooks.isEmpty() {
		hs := fromCanonicalHookSet(*cs.Hooks)
		s.Hooks = &hs
	}
	if cs.UI != nil {
		s.UI = fromCanonicalUI(cs.UI)
	}
	for _, t := range cs.Tools {
		s.Tools = append(s.Tools, fromCanonicalTool(t))
	}
	return s
}

func fromCanonicalHookSet(hs canonicalHookSet) HookSet {
	out := HookSet{}
	for _, h := range hs.Before {
		out.Before = append(out.Before, Hook{ID: h.ID, Name: h.Name})
	}
	for _, h := range hs.After {
		out.After = append(out.After, Hook{ID: h.ID, Name: h.Name})
	}
	return out
}

func fromCanonicalUI(u *canonicalUIConfig) *UIConfig {
	out := &UIConfig{
		ComponentID: u.ComponentID,
		Mode:        UIMode(u.Mode),
		TimeoutMs:   u.TimeoutMs,
	}
	if u.Data != nil {
		out.Data = *u.Data
	}
	for _, o := range u.Options {
		opt := UIOption{ID: o.ID, Label: o.Label, NextStepID: o.NextStepID}
		if o.Value != nil {
			opt.Value = *o.Value
		}
		out.Options = append(out.Options, opt)
	}
	return out
}

func fromCanonicalTool(t canonicalToolInvocation) ToolInvocation {
	out := ToolInvocation{ToolID: t.ToolID, OutputKey: t.OutputKey}
	if t.Params != nil {
		out.Params = *t.Params
	}
	return out
}
