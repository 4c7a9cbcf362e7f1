package workflow

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/alexisbeaulieu97/streamy/internal/wfvalue"
	streamyerrors "github.com/alexisbeaulieu97/streamy/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// yamlDefinition mirrors Definition's on-disk shape. Callback fields
// (hook functions, skip predicates) have no YAML representation and are
// left nil; callers that need them re-bind the resulting Definition's
// steps programmatically after loading.
type yamlDefinition struct {
	ID          string     `yaml:"id" validate:"required"`
	Name        string     `yaml:"name" validate:"required"`
	Description string     `yaml:"description,omitempty"`
	Steps       []yamlStep `yaml:"steps" validate:"required,min=1,dive"`
}

type yamlStep struct {
	ID            string         `yaml:"id" validate:"required"`
	Name          string         `yaml:"name" validate:"required"`
	Type          string         `yaml:"type" validate:"required"`
	DependsOn     []string       `yaml:"depends_on,omitempty"`
	Config        map[string]any `yaml:"config,omitempty"`
	RetryPolicy   *yamlRetry     `yaml:"retry_policy,omitempty"`
	SkipPolicy    *yamlSkip      `yaml:"skip_policy,omitempty"`
	UI            *yamlUI        `yaml:"ui,omitempty"`
	Tools         []yamlTool     `yaml:"tools,omitempty"`
}

type yamlRetry struct {
	MaxRetries         int     `yaml:"max_retries" validate:"min=0"`
	IntervalMs         int64   `yaml:"interval_ms" validate:"min=0"`
	ExponentialBackoff bool    `yaml:"exponential_backoff,omitempty"`
	Multiplier         float64 `yaml:"multiplier,omitempty"`
}

type yamlSkip struct {
	Expression    string `yaml:"expression,omitempty"`
	DefaultOutput any    `yaml:"default_output,omitempty"`
}

type yamlUIOption struct {
	ID         string `yaml:"id" validate:"required"`
	Label      string `yaml:"label,omitempty"`
	Value      any    `yaml:"value,omitempty"`
	NextStepID string `yaml:"next_step_id,omitempty"`
}

type yamlUI struct {
	ComponentID string         `yaml:"component_id" validate:"required"`
	Mode        string         `yaml:"mode" validate:"required,oneof=display confirm select"`
	Data        any            `yaml:"data,omitempty"`
	TimeoutMs   int64          `yaml:"timeout_ms,omitempty"`
	Options     []yamlUIOption `yaml:"options,omitempty"`
}

type yamlTool struct {
	ToolID    string `yaml:"tool_id" validate:"required"`
	Params    any    `yaml:"params,omitempty"`
	OutputKey string `yaml:"output_key,omitempty"`
}

// DefinitionFromYAML decodes a workflow definition from r. It performs
// field-level validation (go-playground/validator) on top of the YAML
// decode, but does not perform the full structural or cycle validation
// the engine performs on load -- callers should still pass the result
// through engine.LoadWorkflow.
func DefinitionFromYAML(r io.Reader) (*Definition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, streamyerrors.NewParseError("", 0, err)
	}
	return definitionFromYAMLBytes("", data)
}

// DefinitionFromYAMLFile loads and decodes a workflow definition from a
// file on disk.
func DefinitionFromYAMLFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, streamyerrors.NewParseError(path, 0, err)
	}
	return definitionFromYAMLBytes(path, data)
}

func definitionFromYAMLBytes(path string, data []byte) (*Definition, error) {
	var doc yamlDefinition
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, streamyerrors.NewParseError(path, extractLine(err), err)
	}

	if err := validatorInstance().Struct(doc); err != nil {
		return nil, streamyerrors.NewParseError(path, 0, err)
	}

	def := &Definition{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Steps:       make([]Step, 0, len(doc.Steps)),
	}

	for _, s := range doc.Steps {
		step := Step{
			ID:        s.ID,
			Name:      s.Name,
			Type:      s.Type,
			DependsOn: s.DependsOn,
			Config:    wfvalue.FromAny(toAnyMap(s.Config)),
		}

		if s.RetryPolicy != nil {
			step.RetryPolicy = &RetryPolicy{
				MaxRetries:         s.RetryPolicy.MaxRetries,
				IntervalMs:         s.RetryPolicy.IntervalMs,
				ExponentialBackoff: s.RetryPolicy.ExponentialBackoff,
				Multiplier:         s.RetryPolicy.Multiplier,
			}
		}

		if s.SkipPolicy != nil {
			policy := &SkipPolicy{Expression: s.SkipPolicy.Expression}
			if s.SkipPolicy.DefaultOutput != nil {
				v := wfvalue.FromAny(s.SkipPolicy.DefaultOutput)
				policy.DefaultOutput = &v
			}
			step.SkipPolicy = policy
		}

		if s.UI != nil {
			ui := &UIConfig{
				ComponentID: s.UI.ComponentID,
				Mode:        UIMode(s.UI.Mode),
				Data:        wfvalue.FromAny(s.UI.Data),
				TimeoutMs:   s.UI.TimeoutMs,
			}
			for _, o := range s.UI.Options {
				ui.Options = append(ui.Options, UIOption{
					ID:         o.ID,
					Label:      o.Label,
					Value:      wfvalue.FromAny(o.Value),
					NextStepID: o.NextStepID,
				})
			}
			step.UI = ui
		}

		for _, tl := range s.Tools {
			step.Tools = append(step.Tools, ToolInvocation{
				ToolID:    tl.ToolID,
				Params:    wfvalue.FromAny(tl.Params),
				OutputKey: tl.OutputKey,
			})
		}

		def.Steps = append(def.Steps, step)
	}

	return def, nil
}

func toAnyMap(m map[string]any) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}
	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}
	var line int
	if _, scanErr := fmt.Sscanf(matches[1], "%d", &line); scanErr != nil {
		return 0
	}
	return line
}

var sharedValidator *validator.Validate

func validatorInstance() *validator.Validate {
	if sharedValidator == nil {
		sharedValidator = validator.New()
	}
	return sharedValidator
}
