// Package flowctx holds the execution context of a run: the node id to result
// mapping plus the ambient variable scopes bindings resolve against.
package flowctx

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/expression"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/tracking"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/varsource"
)

var ErrDuplicateWrite = errors.New("node already has an entry in this scope")

// Ambient are the read-only scopes shared by every fork of a run.
type Ambient struct {
	Flow    varsource.Provider
	Env     varsource.Provider
	Secrets varsource.Provider
}

// Context is safe for concurrent use. Forks never share mutable state.
type Context struct {
	mu      sync.RWMutex
	entries map[string]any
	ambient Ambient
	loop    *expression.LoopScope
}

func New(ambient Ambient) *Context {
	return &Context{
		entries: make(map[string]any),
		ambient: ambient,
	}
}

// Fork returns an independent deep copy. Writes to either side are not
// visible to the other.
func (c *Context) Fork() *Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &Context{
		entries: DeepCopyMap(c.entries),
		ambient: c.ambient,
		loop:    c.loop,
	}
}

// ForkLoop forks into a loop iteration scope whose parent is the current scope.
func (c *Context) ForkLoop(scope *expression.LoopScope) *Context {
	child := c.Fork()
	scope.Parent = c.loop
	child.loop = scope
	return child
}

func (c *Context) Loop() *expression.LoopScope {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loop
}

// Write records a node's result. A node writes at most once per scope.
func (c *Context) Write(nodeID string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[nodeID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateWrite, nodeID)
	}
	c.entries[nodeID] = DeepCopyValue(value)
	return nil
}

// Set records or replaces an entry.
func (c *Context) Set(nodeID string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[nodeID] = DeepCopyValue(value)
}

func (c *Context) Get(nodeID string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[nodeID]
	if !ok {
		return nil, false
	}
	return DeepCopyValue(v), true
}

func (c *Context) Has(nodeID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[nodeID]
	return ok
}

// Merge copies entries from other that are missing here.
func (c *Context) Merge(other *Context) {
	if other == nil || other == c {
		return
	}
	theirs := other.Snapshot()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range theirs {
		if _, exists := c.entries[k]; !exists {
			c.entries[k] = v
		}
	}
}

// MergeOnly copies the listed entries from other, replacing existing ones.
func (c *Context) MergeOnly(other *Context, ids []string) {
	for _, id := range ids {
		if v, ok := other.Get(id); ok {
			c.Set(id, v)
		}
	}
}

// Snapshot returns a deep copy of all entries.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return DeepCopyMap(c.entries)
}

func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Env builds the resolver view of this context.
func (c *Context) Env(tracker *tracking.VariableTracker) *expression.UnifiedEnv {
	c.mu.RLock()
	nodes := make(map[string]any, len(c.entries))
	maps.Copy(nodes, c.entries)
	loop := c.loop
	c.mu.RUnlock()

	env := expression.NewUnifiedEnv(expression.Layers{
		Nodes:   nodes,
		Flow:    c.ambient.Flow,
		Env:     c.ambient.Env,
		Secrets: c.ambient.Secrets,
		Loop:    loop,
	})
	if tracker != nil {
		env = env.WithTracking(tracker)
	}
	return env
}

func DeepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = DeepCopyValue(v)
	}
	return out
}

// DeepCopyValue copies maps and slices recursively; other values are
// returned as is.
func DeepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return DeepCopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = DeepCopyValue(item)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(val))
		for i, item := range val {
			out[i] = DeepCopyMap(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		maps.Copy(out, val)
		return out
	default:
		return v
	}
}
