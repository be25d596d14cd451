package tracking

import (
	"strings"
	"sync"
)

// VariableTracker records the bindings a node read while its inputs were
// resolved and the entries it wrote. A nil tracker is valid and records nothing.
type VariableTracker struct {
	readVars    map[string]any
	writtenVars map[string]any
	mutex       sync.RWMutex
}

func NewVariableTracker() *VariableTracker {
	return &VariableTracker{
		readVars:    make(map[string]any),
		writtenVars: make(map[string]any),
	}
}

func (vt *VariableTracker) TrackRead(key string, value any) {
	if vt == nil {
		return
	}

	vt.mutex.Lock()
	defer vt.mutex.Unlock()
	vt.readVars[key] = deepCopy(value)
}

func (vt *VariableTracker) TrackWrite(key string, value any) {
	if vt == nil {
		return
	}

	vt.mutex.Lock()
	defer vt.mutex.Unlock()
	vt.writtenVars[key] = deepCopy(value)
}

// GetReadVars returns a copy of all tracked reads keyed by binding reference.
func (vt *VariableTracker) GetReadVars() map[string]any {
	if vt == nil {
		return make(map[string]any)
	}

	vt.mutex.RLock()
	defer vt.mutex.RUnlock()
	return copyFlat(vt.readVars)
}

func (vt *VariableTracker) GetWrittenVars() map[string]any {
	if vt == nil {
		return make(map[string]any)
	}

	vt.mutex.RLock()
	defer vt.mutex.RUnlock()
	return copyFlat(vt.writtenVars)
}

// GetReadVarsAsTree nests dotted reads, {"a.b": 1} becomes {"a": {"b": 1}}.
func (vt *VariableTracker) GetReadVarsAsTree() map[string]any {
	return BuildTree(vt.GetReadVars())
}

func BuildTree(flat map[string]any) map[string]any {
	result := make(map[string]any)
	for key, value := range flat {
		parts := strings.Split(strings.TrimSpace(key), ".")
		current := result
		for i, part := range parts {
			if part == "" {
				continue
			}
			if i == len(parts)-1 {
				current[part] = deepCopy(value)
				break
			}
			next, ok := current[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				current[part] = next
			}
			current = next
		}
	}
	return result
}

func copyFlat(m map[string]any) map[string]any {
	result := make(map[string]any, len(m))
	for k, v := range m {
		result[k] = deepCopy(v)
	}
	return result
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, item := range val {
			result[k] = deepCopy(item)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = deepCopy(item)
		}
		return result
	default:
		return v
	}
}
