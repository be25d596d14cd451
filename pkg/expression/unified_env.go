//nolint:revive // exported
package expression

import (
	"strings"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/tracking"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/varsource"
)

const (
	Prefix     = "{{"
	Suffix     = "}}"
	PrefixSize = len(Prefix)
	SuffixSize = len(Suffix)

	PrefixEnv     = "env."
	PrefixSecrets = "secrets."
)

// LoopScope is one level of the loop variable chain. Inner loops point at
// their enclosing loop through Parent.
type LoopScope struct {
	Parent *LoopScope
	LoopID string
	// Vars holds the per-iteration bindings such as item and itemIndex.
	// A variable whose source had no element at this index is left out.
	Vars      map[string]any
	Index     int
	Iteration int
	Total     int
}

// Info is the value bound to the "loop" identifier.
func (s *LoopScope) Info() map[string]any {
	return map[string]any{
		"index":     s.Index,
		"iteration": s.Iteration,
		"total":     s.Total,
		"isFirst":   s.Index == 0,
		"isLast":    s.Index == s.Total-1,
	}
}

func (s *LoopScope) lookup(head, rest string) (any, bool) {
	for sc := s; sc != nil; sc = sc.Parent {
		switch head {
		case "loop_iteration":
			if rest == "" {
				return sc.Iteration, true
			}
			return nil, false
		case "loop":
			return Descend(sc.Info(), rest)
		}
		if v, ok := sc.Vars[head]; ok {
			return Descend(v, rest)
		}
	}
	return nil, false
}

// Layers are the namespaces a UnifiedEnv consults.
type Layers struct {
	// Nodes maps node id to that node's result entry.
	Nodes   map[string]any
	Flow    varsource.Provider
	Env     varsource.Provider
	Secrets varsource.Provider
	Loop    *LoopScope
}

// UnifiedEnv is the read-only namespace bindings resolve against. Lookups never
// fail: anything unresolvable is reported as absent.
type UnifiedEnv struct {
	nodes   map[string]any
	flow    varsource.Provider
	env     varsource.Provider
	secrets varsource.Provider
	loop    *LoopScope
	tracker *tracking.VariableTracker
}

func NewUnifiedEnv(l Layers) *UnifiedEnv {
	e := &UnifiedEnv{
		nodes:   l.Nodes,
		flow:    l.Flow,
		env:     l.Env,
		secrets: l.Secrets,
		loop:    l.Loop,
	}
	if e.nodes == nil {
		e.nodes = make(map[string]any)
	}
	if e.flow == nil {
		e.flow = varsource.Empty
	}
	if e.env == nil {
		e.env = varsource.Empty
	}
	if e.secrets == nil {
		e.secrets = varsource.Empty
	}
	return e
}

// WithTracking returns a copy that records every successful read in t.
func (e *UnifiedEnv) WithTracking(t *tracking.VariableTracker) *UnifiedEnv {
	clone := e.Clone()
	clone.tracker = t
	return clone
}

// WithLoop returns a copy whose innermost loop scope is s.
func (e *UnifiedEnv) WithLoop(s *LoopScope) *UnifiedEnv {
	clone := e.Clone()
	clone.loop = s
	return clone
}

func (e *UnifiedEnv) Clone() *UnifiedEnv {
	if e == nil {
		return NewUnifiedEnv(Layers{})
	}
	return &UnifiedEnv{
		nodes:   e.nodes,
		flow:    e.flow,
		env:     e.env,
		secrets: e.secrets,
		loop:    e.loop,
		tracker: e.tracker,
	}
}

func (e *UnifiedEnv) Loop() *LoopScope {
	if e == nil {
		return nil
	}
	return e.loop
}

func (e *UnifiedEnv) Tracker() *tracking.VariableTracker {
	if e == nil {
		return nil
	}
	return e.tracker
}

// Lookup resolves a binding reference without expression evaluation.
// Order: env./secrets. prefixes, loop scopes (innermost first), flow
// variables, node outputs.
func (e *UnifiedEnv) Lookup(ref string) (any, bool) {
	if e == nil {
		return nil, false
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, false
	}

	if name, ok := strings.CutPrefix(ref, PrefixEnv); ok {
		return e.env.Lookup(name)
	}
	if name, ok := strings.CutPrefix(ref, PrefixSecrets); ok {
		return e.secrets.Lookup(name)
	}

	head, rest := splitHead(ref)
	if head == "" {
		return nil, false
	}

	if e.loop != nil {
		if v, ok := e.loop.lookup(head, rest); ok {
			return v, true
		}
	}
	if v, ok := e.flow.Lookup(head); ok {
		return Descend(v, rest)
	}
	if v, ok := e.nodes[head]; ok {
		return Descend(v, rest)
	}
	return nil, false
}

// Get is Lookup with read tracking.
func (e *UnifiedEnv) Get(ref string) (any, bool) {
	v, ok := e.Lookup(ref)
	if ok {
		e.tracker.TrackRead(strings.TrimSpace(ref), v)
	}
	return v, ok
}

func (e *UnifiedEnv) Has(ref string) bool {
	_, ok := e.Lookup(ref)
	return ok
}
