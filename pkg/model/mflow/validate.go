//nolint:revive // exported
package mflow

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidFlow = errors.New("invalid flow")

// ValidationError is a single load-time problem with a flow document.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors aggregates every problem found in a document. It matches
// ErrInvalidFlow with errors.Is.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidFlow, strings.Join(msgs, "; "))
}

func (v ValidationErrors) Is(target error) bool {
	return target == ErrInvalidFlow
}

// Validate checks the structural invariants the executor relies on: a unique
// start node, unique ids, edges that reference existing nodes and no cycles
// outside loop bodies. It returns nil or ValidationErrors.
func Validate(f Flow) error {
	var errs ValidationErrors
	add := func(path, format string, args ...any) {
		errs = append(errs, &ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	nodeIDs := make(map[string]struct{}, len(f.Nodes))
	for i, n := range f.Nodes {
		path := fmt.Sprintf("nodes[%d]", i)
		if n.ID == "" {
			add(path, "node id is required")
			continue
		}
		if strings.ContainsAny(n.ID, ".[] ") {
			add(path, "node id %q must not contain dots, brackets or spaces", n.ID)
		}
		if n.Kind == "" {
			add(path, "node %q has no kind", n.ID)
		}
		if _, dup := nodeIDs[n.ID]; dup {
			add(path, "duplicate node id %q", n.ID)
		}
		nodeIDs[n.ID] = struct{}{}
		switch n.FailurePolicy {
		case "", FailurePolicyStop, FailurePolicyContinue:
		default:
			add(path, "unknown failure policy %q", n.FailurePolicy)
		}
	}

	edgeIDs := make(map[string]struct{}, len(f.Edges))
	for i, e := range f.Edges {
		path := fmt.Sprintf("edges[%d]", i)
		if e.ID != "" {
			if _, dup := edgeIDs[e.ID]; dup {
				add(path, "duplicate edge id %q", e.ID)
			}
			edgeIDs[e.ID] = struct{}{}
		}
		if _, ok := nodeIDs[e.Source]; !ok {
			add(path, "edge source %q does not exist", e.Source)
		}
		if _, ok := nodeIDs[e.Target]; !ok {
			add(path, "edge target %q does not exist", e.Target)
		}
	}

	g := NewGraph(f)
	switch starts := g.StartNodeIDs(); len(starts) {
	case 0:
		add("nodes", "flow has no %q node", NodeKindStart)
	case 1:
	default:
		add("nodes", "flow has %d %q nodes (%s), expected exactly one", len(starts), NodeKindStart, strings.Join(starts, ", "))
	}

	if cycle := g.FindCycle(); cycle != nil {
		add("edges", "cycle outside a loop body: %s", strings.Join(cycle, " -> "))
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
