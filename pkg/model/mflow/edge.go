//nolint:revive // exported
package mflow

const (
	BranchLoop  = "loop"
	BranchElse  = "else"
	BranchTrue  = "true"
	BranchFalse = "false"
)

type Edge struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
	Branch string `json:"branch,omitempty" yaml:"branch,omitempty"`
}

func (e Edge) IsTagged() bool {
	return e.Branch != ""
}

// UntaggedEdges filters edges down to the ones ordinary nodes follow.
func UntaggedEdges(edges []Edge) []Edge {
	var out []Edge
	for _, e := range edges {
		if !e.IsTagged() {
			out = append(out, e)
		}
	}
	return out
}

// FirstWithBranch returns the first edge, in document order, carrying tag.
func FirstWithBranch(edges []Edge, tag string) (Edge, bool) {
	for _, e := range edges {
		if e.Branch == tag {
			return e, true
		}
	}
	return Edge{}, false
}
