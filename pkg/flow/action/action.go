// Package action is the registry of leaf behaviors invoked by action nodes.
// Actions receive their config with every binding already resolved.
package action

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/expression"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/idwrap"
)

var (
	ErrUnknownAction  = errors.New("unknown action kind")
	ErrDuplicateKind  = errors.New("action kind already registered")
	ErrActionFailed   = errors.New("action failed")
	ErrInvalidConfig  = errors.New("invalid action config")
	ErrMissingRequest = errors.New("missing action request")
)

// Request carries what an action may need beyond its config.
type Request struct {
	NodeID      string
	Kind        string
	ExecutionID idwrap.IDWrap
	// RawConfig is the config before bindings were resolved.
	RawConfig map[string]any
	Env       *expression.UnifiedEnv
	Logger    *slog.Logger
}

func (r *Request) logger() *slog.Logger {
	if r == nil || r.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r.Logger
}

// Action is a named side-effecting behavior. Returning an error marks the
// node failed; the output map becomes the node's context entry.
type Action interface {
	Invoke(ctx context.Context, cfg map[string]any, req *Request) (map[string]any, error)
}

// Func adapts a function to Action.
type Func func(ctx context.Context, cfg map[string]any, req *Request) (map[string]any, error)

func (f Func) Invoke(ctx context.Context, cfg map[string]any, req *Request) (map[string]any, error) {
	return f(ctx, cfg, req)
}

// Registry maps node kinds to actions. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

func (r *Registry) Register(kind string, a Action) error {
	if kind == "" || a == nil {
		return fmt.Errorf("%w: kind and action are required", ErrInvalidConfig)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.actions[kind]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, kind)
	}
	r.actions[kind] = a
	return nil
}

// Replace registers a, overriding an existing action of the same kind.
func (r *Registry) Replace(kind string, a Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[kind] = a
}

func (r *Registry) Get(kind string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[kind]
	return a, ok
}

// Kinds returns the registered kinds sorted by name.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.actions))
	for k := range r.actions {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Invoke runs the action registered for kind.
func (r *Registry) Invoke(ctx context.Context, kind string, cfg map[string]any, req *Request) (map[string]any, error) {
	a, ok := r.Get(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, kind)
	}
	return a.Invoke(ctx, cfg, req)
}
