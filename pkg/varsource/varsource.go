// Package varsource defines the synchronous name lookups the variable
// resolver uses for secrets, flow variables and environment variables.
package varsource

import "os"

type Provider interface {
	Lookup(name string) (any, bool)
}

// Map is a static provider, typically flow variables from the document.
type Map map[string]any

func (m Map) Lookup(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// Names lists the keys so expressions can reference them as identifiers.
func (m Map) Names() []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	return names
}

// Enumerable is implemented by providers whose names can be listed.
type Enumerable interface {
	Names() []string
}

// Func adapts a plain function to Provider.
type Func func(name string) (any, bool)

func (f Func) Lookup(name string) (any, bool) {
	return f(name)
}

// OSEnv reads process environment variables, optionally namespaced by Prefix.
type OSEnv struct {
	Prefix string
}

func (e OSEnv) Lookup(name string) (any, bool) {
	v, ok := os.LookupEnv(e.Prefix + name)
	if !ok {
		return nil, false
	}
	return v, true
}

// Chain consults providers in order and returns the first hit.
type Chain []Provider

func (c Chain) Lookup(name string) (any, bool) {
	for _, p := range c {
		if p == nil {
			continue
		}
		if v, ok := p.Lookup(name); ok {
			return v, true
		}
	}
	return nil, false
}

// Names merges the names of every enumerable provider in the chain.
func (c Chain) Names() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, p := range c {
		e, ok := p.(Enumerable)
		if !ok {
			continue
		}
		for _, n := range e.Names() {
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			names = append(names, n)
		}
	}
	return names
}

// Empty never resolves anything.
var Empty Provider = Map(nil)
