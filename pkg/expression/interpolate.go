//nolint:revive // exported
package expression

import (
	"context"
	"strings"
)

// HasVars reports whether s contains at least one {{ }} binding.
func HasVars(s string) bool {
	start := strings.Index(s, Prefix)
	return start != -1 && strings.Contains(s[start+PrefixSize:], Suffix)
}

// singleBinding returns the inner reference when s is exactly one binding.
// Whitespace is only allowed inside the braces.
func singleBinding(s string) (string, bool) {
	if !strings.HasPrefix(s, Prefix) || !strings.HasSuffix(s, Suffix) || len(s) < PrefixSize+SuffixSize {
		return "", false
	}
	inner := s[PrefixSize : len(s)-SuffixSize]
	if strings.Contains(inner, Prefix) || strings.Contains(inner, Suffix) {
		return "", false
	}
	return strings.TrimSpace(inner), true
}

// ResolveValue resolves a raw string:
//   - exactly "{{ ref }}" yields the typed value, nil when absent
//   - text with embedded bindings yields the interpolated string
//   - anything else is returned unchanged
func (e *UnifiedEnv) ResolveValue(raw string) any {
	if ref, ok := singleBinding(raw); ok {
		v, _ := e.resolveRef(ref)
		return v
	}
	if HasVars(raw) {
		return e.Interpolate(raw)
	}
	return raw
}

// Interpolate replaces every {{ ref }} with the string form of its value.
// Absent references become the empty string.
func (e *UnifiedEnv) Interpolate(raw string) string {
	return e.replaceBindings(raw, func(ref string) string {
		v, _ := e.resolveRef(ref)
		return ToString(v)
	})
}

// SubstituteLiterals replaces every {{ ref }} with an expr-lang literal of its
// value so the result can be compiled as an expression.
func (e *UnifiedEnv) SubstituteLiterals(raw string) string {
	return e.replaceBindings(raw, func(ref string) string {
		v, _ := e.resolveRef(ref)
		return ExprLiteral(v)
	})
}

func (e *UnifiedEnv) replaceBindings(raw string, render func(ref string) string) string {
	var result strings.Builder
	remaining := raw

	for {
		startIndex := strings.Index(remaining, Prefix)
		if startIndex == -1 {
			result.WriteString(remaining)
			break
		}

		endIndex := strings.Index(remaining[startIndex+PrefixSize:], Suffix)
		if endIndex == -1 {
			result.WriteString(remaining)
			break
		}
		endIndex += startIndex + PrefixSize

		result.WriteString(remaining[:startIndex])
		ref := strings.TrimSpace(remaining[startIndex+PrefixSize : endIndex])
		result.WriteString(render(ref))

		remaining = remaining[endIndex+SuffixSize:]
	}

	return result.String()
}

// DeepResolve walks maps, slices and strings, resolving every binding.
// Values without bindings come back equal to the input; the input is never mutated.
func (e *UnifiedEnv) DeepResolve(v any) any {
	switch val := v.(type) {
	case string:
		return e.ResolveValue(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = e.DeepResolve(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = e.DeepResolve(item)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(val))
		for i, item := range val {
			resolved, _ := e.DeepResolve(item).(map[string]any)
			out[i] = resolved
		}
		return out
	default:
		return v
	}
}

// ResolveMap deep-resolves a config map.
func (e *UnifiedEnv) ResolveMap(cfg map[string]any) map[string]any {
	if cfg == nil {
		return map[string]any{}
	}
	out, _ := e.DeepResolve(cfg).(map[string]any)
	return out
}

// ResolveRef resolves a bare reference (no braces) to a typed value.
func (e *UnifiedEnv) ResolveRef(ref string) (any, bool) {
	return e.resolveRef(strings.TrimSpace(ref))
}

// resolveRef tries a plain lookup first and falls back to expr-lang for
// references that are expressions, such as "fetch.count + 1" or "uuid()".
func (e *UnifiedEnv) resolveRef(ref string) (any, bool) {
	if e == nil || ref == "" {
		return nil, false
	}
	if v, ok := e.Get(ref); ok {
		return v, true
	}
	if !looksLikeExpression(ref) {
		return nil, false
	}
	v, err := e.Eval(context.Background(), ref)
	if err != nil || v == nil {
		return nil, false
	}
	e.tracker.TrackRead(ref, v)
	return v, true
}

// looksLikeExpression is true when ref is more than a dotted/indexed path.
func looksLikeExpression(ref string) bool {
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		switch {
		case isIdentChar(c), c == '.', c == '[', c == ']':
		default:
			return true
		}
	}
	return false
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '$'
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
