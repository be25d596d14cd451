package cmd

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// parseVars reads repeated name=value flags. Values are YAML scalars or
// collections, so 3 is a number, true a boolean and [a, b] a list; anything
// unparsable stays a string.
func parseVars(values []string) (map[string]any, error) {
	vars := make(map[string]any, len(values))
	for _, raw := range values {
		name, value, ok := strings.Cut(raw, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q, expected name=value", raw)
		}
		vars[name] = parseValue(value)
	}
	return vars, nil
}

func parseValue(s string) any {
	if strings.TrimSpace(s) == "" {
		return s
	}
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return s
	}
	return normalizeYAML(v)
}

// normalizeYAML turns yaml.v3 generic maps into map[string]any.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, inner := range val {
			val[k] = normalizeYAML(inner)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[fmt.Sprint(k)] = normalizeYAML(inner)
		}
		return out
	case []any:
		for i, inner := range val {
			val[i] = normalizeYAML(inner)
		}
		return val
	default:
		return v
	}
}
