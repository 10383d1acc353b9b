package workflow

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mediaflow/mediaflow/pkg/errors"
)

// placeholderPattern matches a string that is exactly one stage-output
// reference, e.g. "${{ stages.asr.transcribe.output.text }}". The stage
// group is greedy, so a name containing ".output." binds the longest
// possible stage prefix.
var placeholderPattern = regexp.MustCompile(`^\$\{\{\s*stages\.([A-Za-z0-9_.-]+)\.output\.([A-Za-z0-9_.-]+)\s*\}\}$`)

// ResolveParams rewrites all placeholder values in the parameter map to
// concrete values from the context. Mappings recurse into values with keys
// unchanged; sequences recurse into elements; non-string leaves pass
// through. A string that merely contains a placeholder without being one is
// returned unchanged: substring interpolation is deliberately unsupported.
//
// Resolution is single-pass. Substituted values are not re-examined, so a
// placeholder can only reference the outputs of stages that have already
// run.
func ResolveParams(params map[string]any, c *Context) (map[string]any, error) {
	if params == nil {
		return nil, nil
	}
	resolved := make(map[string]any, len(params))
	for key, value := range params {
		v, err := ResolveValue(value, c)
		if err != nil {
			return nil, fmt.Errorf("resolving parameter %q: %w", key, err)
		}
		resolved[key] = v
	}
	return resolved, nil
}

// ResolveValue resolves placeholders in a single value, recursing into maps
// and slices. The substituted value keeps whatever type the referenced
// output field holds: string, number, list, or mapping.
func ResolveValue(value any, c *Context) (any, error) {
	switch v := value.(type) {
	case string:
		stage, field, ok := parsePlaceholder(v)
		if !ok {
			return v, nil
		}
		return lookupOutput(c, stage, field)
	case map[string]any:
		resolved := make(map[string]any, len(v))
		for k, val := range v {
			rv, err := ResolveValue(val, c)
			if err != nil {
				return nil, fmt.Errorf("in field %q: %w", k, err)
			}
			resolved[k] = rv
		}
		return resolved, nil
	case []any:
		resolved := make([]any, len(v))
		for i, val := range v {
			rv, err := ResolveValue(val, c)
			if err != nil {
				return nil, fmt.Errorf("at index %d: %w", i, err)
			}
			resolved[i] = rv
		}
		return resolved, nil
	default:
		return value, nil
	}
}

// IsPlaceholder reports whether the trimmed string is exactly one
// stage-output reference.
func IsPlaceholder(s string) bool {
	_, _, ok := parsePlaceholder(s)
	return ok
}

// parsePlaceholder extracts the stage and field of a placeholder, matching
// on the fully trimmed value.
func parsePlaceholder(s string) (stage, field string, ok bool) {
	m := placeholderPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// lookupOutput fetches stages[stage].output[field] from the context,
// reporting the keys actually present when the reference dangles.
func lookupOutput(c *Context, stage, field string) (any, error) {
	exec := c.Stage(stage)
	if exec == nil {
		return nil, &errors.ResolutionError{Stage: stage, Field: field}
	}
	value, found := exec.Output[field]
	if !found {
		available := make([]string, 0, len(exec.Output))
		for k := range exec.Output {
			available = append(available, k)
		}
		sort.Strings(available)
		return nil, &errors.ResolutionError{Stage: stage, Field: field, Available: available}
	}
	return value, nil
}
