package runner

import (
	"context"
	"errors"
	"time"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/idwrap"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/model/mflow"
)

var (
	ErrNodeNotFound = errors.New("node not found")
	ErrNoStartNode  = errors.New("flow has no start node")
	ErrNodeFailed   = errors.New("node failed")
	ErrGraphCycle   = errors.New("flow graph has a cycle outside a loop body")
)

// FlowRunner executes one flow document per call. Implementations keep no
// state between runs.
type FlowRunner interface {
	Run(ctx context.Context, trigger map[string]any) (Outcome, error)
}

type FlowStatus int8

const (
	FlowStatusPending FlowStatus = iota
	FlowStatusRunning
	FlowStatusSucceeded
	FlowStatusFailed
	FlowStatusCancelled
)

func FlowStatusString(f FlowStatus) string {
	return [...]string{"Pending", "Running", "Succeeded", "Failed", "Cancelled"}[f]
}

func FlowStatusStringWithIcons(f FlowStatus) string {
	return [...]string{"🕒 Pending", "⏳ Running", "✅ Succeeded", "❌ Failed", "⛔ Cancelled"}[f]
}

func (f FlowStatus) String() string {
	return FlowStatusString(f)
}

func (f FlowStatus) MarshalText() ([]byte, error) {
	return []byte(FlowStatusString(f)), nil
}

func IsFlowStatusDone(f FlowStatus) bool {
	return f == FlowStatusSucceeded || f == FlowStatusFailed || f == FlowStatusCancelled
}

// IterationContext locates a node execution inside (possibly nested) loops.
type IterationContext struct {
	IterationPath  []int    `json:"iteration_path"`
	ExecutionIndex int      `json:"execution_index"`
	ParentNodes    []string `json:"parent_nodes,omitempty"`
}

// Child returns the context for iteration index inside loopID.
func (ic *IterationContext) Child(loopID string, index int) *IterationContext {
	child := &IterationContext{ExecutionIndex: index}
	if ic != nil {
		child.IterationPath = append(child.IterationPath, ic.IterationPath...)
		child.ParentNodes = append(child.ParentNodes, ic.ParentNodes...)
	}
	child.IterationPath = append(child.IterationPath, index)
	child.ParentNodes = append(child.ParentNodes, loopID)
	return child
}

type FlowNodeStatus struct {
	ExecutionID idwrap.IDWrap   `json:"executionId"`
	NodeID      string          `json:"nodeId"`
	Name        string          `json:"name"`
	State       mflow.NodeState `json:"state"`
	OutputData  any             `json:"output,omitempty"`
	// InputData holds the bindings the node read while its inputs were resolved.
	InputData        any               `json:"input,omitempty"`
	RunDuration      time.Duration     `json:"duration"`
	Error            error             `json:"-"`
	IterationContext *IterationContext `json:"iteration_context,omitempty"`
}

// Outcome is the result of one run.
type Outcome struct {
	RunID          idwrap.IDWrap    `json:"runId"`
	Status         FlowStatus       `json:"status"`
	Context        map[string]any   `json:"context"`
	FailedNodeIDs  []string         `json:"failedNodeIds"`
	VisitedNodeIDs []string         `json:"visitedNodeIds"`
	StartedAt      time.Time        `json:"startedAt"`
	Duration       time.Duration    `json:"duration"`
	Nodes          []FlowNodeStatus `json:"nodes,omitempty"`
}

func (o Outcome) Failed(nodeID string) bool {
	for _, id := range o.FailedNodeIDs {
		if id == nodeID {
			return true
		}
	}
	return false
}

func (o Outcome) Visited(nodeID string) bool {
	for _, id := range o.VisitedNodeIDs {
		if id == nodeID {
			return true
		}
	}
	return false
}
