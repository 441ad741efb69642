// Package workflowplanner implements the Workflow Planner (spec §4.9):
// pure expansion of a high-level recipe plus an Intent's parameters into
// an ordered list of primitive tool-call Steps. No I/O and no plugin
// calls happen here — recipes are loaded elsewhere (internal/config) and
// handed in; this package only does template substitution, grounded on
// jamesonstone-kit's .kit.yaml-driven NameTemplate/BranchingConfig
// placeholder style (internal/config/config.go) generalized from a single
// "{numeric}-{slug}" field to recursive substitution across an entire
// params tree.
package workflowplanner

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/refakt/refakt/internal/apierr"
	"github.com/refakt/refakt/internal/model"
)

// Recipe is a named workflow template loaded from configuration
// (.refakt/recipes/*.yaml). NameTemplate, each Step's DescriptionTemplate
// and every ParamsTemplate string may contain `{key}` placeholders
// substituted from the Intent's params.
type Recipe struct {
	NameTemplate   string                 `yaml:"name_template"`
	Metadata       model.WorkflowMetadata `yaml:"metadata"`
	Steps          []StepTemplate         `yaml:"steps"`
	RequiredParams []string               `yaml:"required_params"`
}

// StepTemplate is one recipe step before parameter substitution.
type StepTemplate struct {
	Tool                 string         `yaml:"tool"`
	ParamsTemplate       map[string]any `yaml:"params_template"`
	DescriptionTemplate  string         `yaml:"description_template"`
	RequiresConfirmation bool           `yaml:"requires_confirmation,omitempty"`
}

// Registry holds recipes loaded at startup, keyed by name.
type Registry struct {
	recipes map[string]Recipe
}

// NewRegistry returns a Registry over the given named recipes.
func NewRegistry(recipes map[string]Recipe) *Registry {
	if recipes == nil {
		recipes = make(map[string]Recipe)
	}
	return &Registry{recipes: recipes}
}

// Register adds or replaces a single recipe.
func (r *Registry) Register(name string, recipe Recipe) {
	r.recipes[name] = recipe
}

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// pureKeyRe matches a string that is *exactly* one `{key}` placeholder and
// nothing else — spec §4.9 step 3 says these substitute the typed value
// rather than stringifying it.
var pureKeyRe = regexp.MustCompile(`^\{([a-zA-Z0-9_]+)\}$`)

// stepsRefRe matches a `$steps.N.path.to.value` placeholder, left
// unresolved for the caller to substitute at step-execution time.
var stepsRefRe = regexp.MustCompile(`^\$steps\.\d+(\.[a-zA-Z0-9_]+)*$`)

// Expand looks up the recipe named by intent.Name, validates required
// params, and returns the substituted Workflow (spec §4.9).
func (r *Registry) Expand(intent model.Intent) (*model.Workflow, error) {
	recipe, ok := r.recipes[intent.Name]
	if !ok {
		return nil, apierr.New(apierr.CodeNotFound, "no recipe named %q", intent.Name)
	}

	for _, required := range recipe.RequiredParams {
		if _, ok := intent.Params[required]; !ok {
			return nil, apierr.New(apierr.CodeInvalidRequest, "recipe %q missing required param %q", intent.Name, required).
				WithContext("recipe", intent.Name).WithContext("param", required)
		}
	}

	workflow := &model.Workflow{
		Name:     substituteString(recipe.NameTemplate, intent.Params),
		Metadata: recipe.Metadata,
	}

	for _, st := range recipe.Steps {
		params, err := substituteValue(st.ParamsTemplate, intent.Params)
		if err != nil {
			return nil, apierr.Wrap(apierr.CodeInternal, err, "substitute params for step %q", st.Tool)
		}
		paramsMap, _ := params.(map[string]any)
		workflow.Steps = append(workflow.Steps, model.Step{
			Tool:                 st.Tool,
			Params:               paramsMap,
			Description:          substituteString(st.DescriptionTemplate, intent.Params),
			RequiresConfirmation: st.RequiresConfirmation,
		})
	}

	return workflow, nil
}

// substituteString replaces every `{key}` occurrence in s with its
// stringified value from params, leaving unknown keys untouched.
func substituteString(s string, params map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		key := match[1 : len(match)-1]
		v, ok := params[key]
		if !ok {
			return match
		}
		return stringify(v)
	})
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return strings.Trim(string(data), `"`)
	}
}

// substituteValue walks a JSON-shaped tree (map/slice/scalar) substituting
// placeholders. A string that is exactly one `{key}` placeholder is
// replaced by the typed value rather than a stringified one (spec §4.9
// step 3); a `$steps.N...` reference is left untouched for the caller.
func substituteValue(v any, params map[string]any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			sub, err := substituteValue(val, params)
			if err != nil {
				return nil, err
			}
			out[k] = sub
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			sub, err := substituteValue(val, params)
			if err != nil {
				return nil, err
			}
			out[i] = sub
		}
		return out, nil
	case string:
		if stepsRefRe.MatchString(t) {
			return t, nil
		}
		if m := pureKeyRe.FindStringSubmatch(t); m != nil {
			if val, ok := params[m[1]]; ok {
				return val, nil
			}
			return t, nil
		}
		return substituteString(t, params), nil
	default:
		return v, nil
	}
}
