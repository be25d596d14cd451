// Package nstart implements the entry node of a flow. It performs no work
// and exposes the trigger payload to downstream bindings.
package nstart

import (
	"context"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/node"
)

type NodeStart struct {
	FlowNodeID string
	Name       string
}

func New(id, name string) *NodeStart {
	return &NodeStart{FlowNodeID: id, Name: name}
}

func (n NodeStart) GetID() string {
	return n.FlowNodeID
}

func (n NodeStart) GetName() string {
	return n.Name
}

func (n NodeStart) RunSync(_ context.Context, req *node.FlowNodeRequest) node.FlowNodeResult {
	output := make(map[string]any, len(req.Trigger)+len(req.Config))
	for k, v := range req.Config {
		output[k] = v
	}
	for k, v := range req.Trigger {
		output[k] = v
	}
	return node.FlowNodeResult{Output: output}
}
