package reporter

import (
	"time"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/runner"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/model/mflow"
)

type IterationContextResult struct {
	IterationPath  []int    `json:"iteration_path,omitempty"`
	ExecutionIndex int      `json:"execution_index,omitempty"`
	ParentNodes    []string `json:"parent_nodes,omitempty"`
}

type NodeRunResult struct {
	NodeID           string                  `json:"node_id"`
	ExecutionID      string                  `json:"execution_id"`
	Name             string                  `json:"name"`
	State            string                  `json:"state"`
	Duration         time.Duration           `json:"duration"`
	Error            string                  `json:"error,omitempty"`
	IterationContext *IterationContextResult `json:"iteration_context,omitempty"`
}

type FlowRunResult struct {
	RunID         string            `json:"run_id"`
	FlowName      string            `json:"flow_name"`
	Started       time.Time         `json:"started_at"`
	Duration      time.Duration     `json:"duration"`
	Status        string            `json:"status"`
	FlowStatus    runner.FlowStatus `json:"-"`
	FailedNodeIDs []string          `json:"failed_node_ids,omitempty"`
	Context       map[string]any    `json:"context,omitempty"`
	Nodes         []NodeRunResult   `json:"nodes"`
}

func BuildNodeRunResult(status runner.FlowNodeStatus) NodeRunResult {
	res := NodeRunResult{
		NodeID:      status.NodeID,
		ExecutionID: status.ExecutionID.String(),
		Name:        status.Name,
		State:       mflow.StringNodeState(status.State),
		Duration:    status.RunDuration,
	}
	if status.Error != nil {
		res.Error = status.Error.Error()
	}
	if ic := status.IterationContext; ic != nil {
		res.IterationContext = &IterationContextResult{
			IterationPath:  append([]int(nil), ic.IterationPath...),
			ExecutionIndex: ic.ExecutionIndex,
			ParentNodes:    append([]string(nil), ic.ParentNodes...),
		}
	}
	return res
}

// BuildFlowRunResult converts a run outcome. includeContext controls whether
// the final context snapshot is carried into reports.
func BuildFlowRunResult(flowName string, o runner.Outcome, includeContext bool) FlowRunResult {
	res := FlowRunResult{
		RunID:         o.RunID.String(),
		FlowName:      flowName,
		Started:       o.StartedAt,
		Duration:      o.Duration,
		Status:        o.Status.String(),
		FlowStatus:    o.Status,
		FailedNodeIDs: o.FailedNodeIDs,
		Nodes:         make([]NodeRunResult, 0, len(o.Nodes)),
	}
	if includeContext {
		res.Context = o.Context
	}
	for _, st := range o.Nodes {
		res.Nodes = append(res.Nodes, BuildNodeRunResult(st))
	}
	return res
}
