//nolint:revive // exported
package mflow

// Flow is the serializable flow document exchanged with the editor.
type Flow struct {
	Trigger     string         `json:"trigger" yaml:"trigger"`
	ComponentID string         `json:"componentId" yaml:"componentId"`
	Nodes       []Node         `json:"nodes" yaml:"nodes"`
	Edges       []Edge         `json:"edges" yaml:"edges"`
	Variables   []FlowVariable `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// FlowVariable is a flow-scoped variable visible to bindings by name.
type FlowVariable struct {
	Name        string `json:"name" yaml:"name"`
	Value       any    `json:"value" yaml:"value"`
	Enabled     *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

func (fv FlowVariable) IsEnabled() bool {
	return fv.Enabled == nil || *fv.Enabled
}

// VariableMap returns the enabled flow variables keyed by name.
func (f Flow) VariableMap() map[string]any {
	vars := make(map[string]any, len(f.Variables))
	for _, v := range f.Variables {
		if v.IsEnabled() {
			vars[v.Name] = v.Value
		}
	}
	return vars
}

// StripLayout returns a copy of the flow without layout-only fields.
func (f Flow) StripLayout() Flow {
	out := f
	out.Nodes = make([]Node, len(f.Nodes))
	for i, n := range f.Nodes {
		n.Position = nil
		out.Nodes[i] = n
	}
	return out
}
