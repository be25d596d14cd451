//nolint:revive // exported
package nif

import (
	"context"
	"fmt"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/condition"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/node"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/model/mcondition"
)

type NodeIf struct {
	FlowNodeID string
	Name       string
	Condition  mcondition.Condition
}

func New(id, name string, cond mcondition.Condition) *NodeIf {
	return &NodeIf{
		FlowNodeID: id,
		Name:       name,
		Condition:  cond,
	}
}

// FromConfig parses and validates a condition node's authored config.
func FromConfig(id, name string, cfg map[string]any) (*NodeIf, error) {
	cond, err := condition.Parse(cfg)
	if err != nil {
		return nil, err
	}
	if err := condition.Validate(cond); err != nil {
		return nil, err
	}
	return New(id, name, cond), nil
}

func (n NodeIf) GetID() string {
	return n.FlowNodeID
}

func (n NodeIf) GetName() string {
	return n.Name
}

// RunSync evaluates the cases against the raw operands; bindings are resolved
// per case so later cases are never touched once one matches.
func (n NodeIf) RunSync(ctx context.Context, req *node.FlowNodeRequest) node.FlowNodeResult {
	res, err := condition.Evaluate(ctx, n.Condition, req.Env)
	if err != nil {
		return node.FlowNodeResult{
			Branch: &node.BranchChoice{Value: n.Condition.NoMatchValue()},
			Err:    fmt.Errorf("evaluate condition: %w", err),
		}
	}

	output := map[string]any{
		"matched":     res.Matched,
		"returnValue": res.ReturnValue,
	}
	if res.MatchedCaseID != "" {
		output["matchedCaseId"] = res.MatchedCaseID
	}

	return node.FlowNodeResult{
		Output: output,
		Branch: &node.BranchChoice{
			CaseID:  res.MatchedCaseID,
			Value:   res.ReturnValue,
			Matched: res.Matched,
		},
	}
}
