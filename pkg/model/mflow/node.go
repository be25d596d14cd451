//nolint:revive // exported
package mflow

const (
	NodeKindStart     = "start"
	NodeKindCondition = "condition"
	NodeKindLoop      = "loop"
)

type FailurePolicy string

const (
	FailurePolicyStop     FailurePolicy = "stop"
	FailurePolicyContinue FailurePolicy = "continue"
)

type NodeState = int8

const (
	NODE_STATE_UNSPECIFIED NodeState = 0
	NODE_STATE_RESOLVING   NodeState = 1
	NODE_STATE_RUNNING     NodeState = 2
	NODE_STATE_SUCCESS     NodeState = 3
	NODE_STATE_FAILURE     NodeState = 4
	NODE_STATE_CANCELED    NodeState = 5
	NODE_STATE_SKIPPED     NodeState = 6
)

// IsNodeStateDone reports whether a is a terminal state of one execution.
func IsNodeStateDone(a NodeState) bool {
	switch a {
	case NODE_STATE_SUCCESS, NODE_STATE_FAILURE, NODE_STATE_CANCELED, NODE_STATE_SKIPPED:
		return true
	}
	return false
}

func StringNodeState(a NodeState) string {
	return [...]string{"Unspecified", "Resolving", "Running", "Success", "Failure", "Canceled", "Skipped"}[a]
}

type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

type Node struct {
	ID            string         `json:"id" yaml:"id"`
	Kind          string         `json:"kind" yaml:"kind"`
	Label         string         `json:"label" yaml:"label"`
	Config        map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	FailurePolicy FailurePolicy  `json:"failurePolicy,omitempty" yaml:"failurePolicy,omitempty"`
	// Position is layout-only and has no effect on execution.
	Position *Position `json:"position,omitempty" yaml:"position,omitempty"`
}

// Policy returns the effective failure policy, defaulting to stop.
func (n Node) Policy() FailurePolicy {
	if n.FailurePolicy == FailurePolicyContinue {
		return FailurePolicyContinue
	}
	return FailurePolicyStop
}

// DisplayName prefers the label and falls back to the id.
func (n Node) DisplayName() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}
