//nolint:revive // exported
package naction

import (
	"context"
	"fmt"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/action"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/node"
)

// NodeAction runs a registered action with the node's resolved config.
type NodeAction struct {
	FlowNodeID string
	Name       string
	Kind       string
	Registry   *action.Registry
}

func New(id, name, kind string, registry *action.Registry) *NodeAction {
	return &NodeAction{
		FlowNodeID: id,
		Name:       name,
		Kind:       kind,
		Registry:   registry,
	}
}

func (n NodeAction) GetID() string {
	return n.FlowNodeID
}

func (n NodeAction) GetName() string {
	return n.Name
}

func (n NodeAction) RunSync(ctx context.Context, req *node.FlowNodeRequest) node.FlowNodeResult {
	actionReq := &action.Request{
		NodeID:      n.FlowNodeID,
		Kind:        n.Kind,
		ExecutionID: req.ExecutionID,
		RawConfig:   req.RawConfig,
		Env:         req.Env,
		Logger:      req.Logger,
	}

	output, err := n.Registry.Invoke(ctx, n.Kind, req.Config, actionReq)
	if err != nil {
		return node.FlowNodeResult{Output: output, Err: err}
	}

	// An action may report failure as data instead of an error.
	if success, ok := output[node.OutputSuccess].(bool); ok && !success {
		return node.FlowNodeResult{
			Output: output,
			Err:    fmt.Errorf("%w: %s reported success=false", action.ErrActionFailed, n.Kind),
		}
	}
	return node.FlowNodeResult{Output: output}
}
