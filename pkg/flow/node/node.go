package node

import (
	"context"
	"log/slog"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/expression"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/flowctx"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/runner"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/tracking"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/idwrap"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/model/mflow"
)

// Result entry fields shared by every node kind.
const (
	OutputSuccess    = "success"
	OutputError      = "error"
	OutputFailedNode = "_failedNode"
	OutputLoop       = "_loop"
)

type FlowNode interface {
	GetID() string
	GetName() string

	RunSync(ctx context.Context, req *FlowNodeRequest) FlowNodeResult
}

// BodyRunner executes one iteration of a loop body inside iterCtx. The
// executor implements it; loop nodes only drive iterations.
type BodyRunner interface {
	RunLoopBody(ctx context.Context, loopID string, iterCtx *flowctx.Context, ic *runner.IterationContext) error
}

type FlowNodeRequest struct {
	Node mflow.Node
	// RawConfig is the config as authored, Config the deep-resolved copy.
	RawConfig map[string]any
	Config    map[string]any
	// Context is the branch context the node runs in. Nodes must not write to
	// it; loops fork it per iteration.
	Context          *flowctx.Context
	Env              *expression.UnifiedEnv
	Trigger          map[string]any
	Logger           *slog.Logger
	LogPushFunc      LogPushFunc
	VariableTracker  *tracking.VariableTracker
	IterationContext *runner.IterationContext
	ExecutionID      idwrap.IDWrap
	BodyRunner       BodyRunner
}

type LogPushFunc func(status runner.FlowNodeStatus)

// BranchChoice is the discriminant a condition node emits.
type BranchChoice struct {
	CaseID  string
	Value   string
	Matched bool
}

type FlowNodeResult struct {
	Output map[string]any
	// Branch is set by condition nodes, also when they fail.
	Branch *BranchChoice
	// Continuation replaces the branch context for successors. Loop nodes
	// use it to expose the last iteration's body results.
	Continuation *flowctx.Context
	Err          error
}

// SelectEdge picks the single edge a condition node follows. A match takes
// the edge tagged with the case id, then the one tagged with the return value.
// Otherwise the else tag, then the no-match value, then the first untagged edge.
func SelectEdge(edges []mflow.Edge, choice BranchChoice) (mflow.Edge, bool) {
	if choice.Matched {
		if choice.CaseID != "" {
			if e, ok := mflow.FirstWithBranch(edges, choice.CaseID); ok {
				return e, true
			}
		}
		return mflow.FirstWithBranch(edges, choice.Value)
	}

	if e, ok := mflow.FirstWithBranch(edges, mflow.BranchElse); ok {
		return e, true
	}
	if e, ok := mflow.FirstWithBranch(edges, choice.Value); ok {
		return e, true
	}
	if untagged := mflow.UntaggedEdges(edges); len(untagged) > 0 {
		return untagged[0], true
	}
	return mflow.Edge{}, false
}

// FailureOutput is the entry written for a failed node.
func FailureOutput(output map[string]any, err error, continued bool) map[string]any {
	out := make(map[string]any, len(output)+3)
	for k, v := range output {
		out[k] = v
	}
	out[OutputSuccess] = false
	if err != nil {
		out[OutputError] = err.Error()
	}
	if continued {
		out[OutputFailedNode] = true
	}
	return out
}

// SuccessOutput marks an output map as successful without overriding an
// explicit success field set by the node.
func SuccessOutput(output map[string]any) map[string]any {
	out := make(map[string]any, len(output)+1)
	for k, v := range output {
		out[k] = v
	}
	if _, ok := out[OutputSuccess]; !ok {
		out[OutputSuccess] = true
	}
	return out
}
