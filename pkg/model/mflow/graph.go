//nolint:revive // exported
package mflow

// Graph indexes a flow document for traversal. It is read-only after
// construction and safe to share between concurrent runs.
type Graph struct {
	nodes map[string]Node
	order []string
	out   map[string][]Edge
	in    map[string][]Edge
}

func NewGraph(f Flow) *Graph {
	g := &Graph{
		nodes: make(map[string]Node, len(f.Nodes)),
		order: make([]string, 0, len(f.Nodes)),
		out:   make(map[string][]Edge),
		in:    make(map[string][]Edge),
	}
	for _, n := range f.Nodes {
		if _, dup := g.nodes[n.ID]; !dup {
			g.order = append(g.order, n.ID)
		}
		g.nodes[n.ID] = n
	}
	for _, e := range f.Edges {
		g.out[e.Source] = append(g.out[e.Source], e)
		g.in[e.Target] = append(g.in[e.Target], e)
	}
	return g
}

func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodeIDs returns node ids in document order.
func (g *Graph) NodeIDs() []string {
	return g.order
}

func (g *Graph) Outgoing(id string) []Edge {
	return g.out[id]
}

func (g *Graph) Incoming(id string) []Edge {
	return g.in[id]
}

func (g *Graph) StartNodeIDs() []string {
	var ids []string
	for _, id := range g.order {
		if g.nodes[id].Kind == NodeKindStart {
			ids = append(ids, id)
		}
	}
	return ids
}

func (g *Graph) IsLoop(id string) bool {
	n, ok := g.nodes[id]
	return ok && n.Kind == NodeKindLoop
}

// IsBodyEdge reports whether e enters the body of a loop node.
func (g *Graph) IsBodyEdge(e Edge) bool {
	return e.Branch == BranchLoop && g.IsLoop(e.Source)
}

// LoopEntries returns the targets of the loop-tagged edges of loopID.
func (g *Graph) LoopEntries(loopID string) []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, e := range g.out[loopID] {
		if e.Branch != BranchLoop {
			continue
		}
		if _, ok := seen[e.Target]; ok {
			continue
		}
		seen[e.Target] = struct{}{}
		ids = append(ids, e.Target)
	}
	return ids
}

// Scope is the set of nodes executed together: the top level of a flow or
// a single loop body. Nested loop bodies belong to their own scope.
type Scope struct {
	Owner   string
	Entries []string
	Members map[string]struct{}
}

func (s Scope) Contains(id string) bool {
	_, ok := s.Members[id]
	return ok
}

// TopLevelScope is everything reachable from the start node without entering
// a loop body.
func (g *Graph) TopLevelScope(startID string) Scope {
	return g.collectScope("", []string{startID})
}

// LoopScope returns the body of loopID. Edges leading back into the loop node
// end an iteration rather than extending the body.
func (g *Graph) LoopScope(loopID string) Scope {
	return g.collectScope(loopID, g.LoopEntries(loopID))
}

func (g *Graph) collectScope(owner string, entries []string) Scope {
	members := make(map[string]struct{})
	queue := append([]string(nil), entries...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == owner {
			continue
		}
		if _, ok := g.nodes[id]; !ok {
			continue
		}
		if _, ok := members[id]; ok {
			continue
		}
		members[id] = struct{}{}
		for _, e := range g.out[id] {
			if g.IsBodyEdge(e) {
				continue
			}
			queue = append(queue, e.Target)
		}
	}
	return Scope{Owner: owner, Entries: entries, Members: members}
}

// InDegree counts the edges delivering into id from inside the scope. Entry
// nodes receive one extra delivery from the scope owner.
func (g *Graph) InDegree(s Scope, id string) int {
	count := 0
	for _, e := range g.in[id] {
		if g.IsBodyEdge(e) || !s.Contains(e.Source) {
			continue
		}
		count++
	}
	for _, entry := range s.Entries {
		if entry == id {
			count++
			break
		}
	}
	return count
}

// ScopeOutgoing returns the outgoing edges of id that stay inside the scope.
func (g *Graph) ScopeOutgoing(s Scope, id string) []Edge {
	var out []Edge
	for _, e := range g.out[id] {
		if g.IsBodyEdge(e) || !s.Contains(e.Target) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// FindCycle returns one cycle outside loop bodies, or nil. Edges from a loop
// body back to its own loop node are iteration ends, not cycles.
func (g *Graph) FindCycle() []string {
	backEdge := func(e Edge) bool {
		if !g.IsLoop(e.Target) {
			return false
		}
		return g.LoopScope(e.Target).Contains(e.Source)
	}

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.order))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		stack = append(stack, id)
		for _, e := range g.out[id] {
			if _, ok := g.nodes[e.Target]; !ok || backEdge(e) {
				continue
			}
			switch color[e.Target] {
			case grey:
				for i, s := range stack {
					if s == e.Target {
						cycle = append(append([]string(nil), stack[i:]...), e.Target)
						return true
					}
				}
			case white:
				if visit(e.Target) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range g.order {
		if color[id] == white && visit(id) {
			return cycle
		}
	}
	return nil
}
