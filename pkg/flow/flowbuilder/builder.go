//nolint:revive // exported
package flowbuilder

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/action"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/node"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/node/naction"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/node/nif"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/node/nloop"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/node/nstart"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/model/mflow"
)

var ErrUnknownKind = errors.New("unknown node kind")

// maxSuggestionDistance bounds the edit distance of "did you mean" hints for
// kinds that are not a subsequence of any known kind.
const maxSuggestionDistance = 3

// NodeFactory builds the runtime node for one document node.
type NodeFactory func(n mflow.Node) (node.FlowNode, error)

// Builder turns flow documents into runtime nodes. Control kinds have
// dedicated factories; every other kind resolves to a registered action.
type Builder struct {
	Actions *action.Registry
	Logger  *slog.Logger

	factories map[string]NodeFactory
}

func New(actions *action.Registry, logger *slog.Logger) *Builder {
	if actions == nil {
		actions = action.NewRegistry()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := &Builder{
		Actions:   actions,
		Logger:    logger,
		factories: make(map[string]NodeFactory),
	}
	b.Register(mflow.NodeKindStart, func(n mflow.Node) (node.FlowNode, error) {
		return nstart.New(n.ID, n.DisplayName()), nil
	})
	b.Register(mflow.NodeKindCondition, func(n mflow.Node) (node.FlowNode, error) {
		return nif.FromConfig(n.ID, n.DisplayName(), n.Config)
	})
	b.Register(mflow.NodeKindLoop, func(n mflow.Node) (node.FlowNode, error) {
		return nloop.FromConfig(n.ID, n.DisplayName(), n.Config)
	})
	return b
}

// Register adds or replaces the factory for kind.
func (b *Builder) Register(kind string, f NodeFactory) {
	b.factories[kind] = f
}

// Kinds lists every buildable kind, sorted.
func (b *Builder) Kinds() []string {
	kinds := b.Actions.Kinds()
	for k := range b.factories {
		if !slices.Contains(kinds, k) {
			kinds = append(kinds, k)
		}
	}
	slices.Sort(kinds)
	return kinds
}

func (b *Builder) buildNode(n mflow.Node) (node.FlowNode, error) {
	if f, ok := b.factories[n.Kind]; ok {
		return f(n)
	}
	if _, ok := b.Actions.Get(n.Kind); ok {
		return naction.New(n.ID, n.DisplayName(), n.Kind, b.Actions), nil
	}
	if suggestion := b.Suggest(n.Kind); suggestion != "" {
		return nil, fmt.Errorf("%w %q, did you mean %q?", ErrUnknownKind, n.Kind, suggestion)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownKind, n.Kind)
}

// Suggest returns the known kind closest to kind, or "" when nothing is close.
func (b *Builder) Suggest(kind string) string {
	if kind == "" {
		return ""
	}
	kinds := b.Kinds()

	ranks := fuzzy.RankFindFold(kind, kinds)
	if ranks.Len() > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	best, bestDistance := "", maxSuggestionDistance+1
	for _, k := range kinds {
		if d := fuzzy.LevenshteinDistance(kind, k); d < bestDistance {
			best, bestDistance = k, d
		}
	}
	return best
}

// Validate runs the structural checks of mflow.Validate and additionally
// reports unknown kinds and invalid node configs. It returns nil or
// mflow.ValidationErrors.
func (b *Builder) Validate(f mflow.Flow) error {
	var errs mflow.ValidationErrors
	if err := mflow.Validate(f); err != nil {
		var verrs mflow.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		errs = append(errs, verrs...)
	}

	for i, n := range f.Nodes {
		if n.Kind == "" {
			continue
		}
		if _, err := b.buildNode(n); err != nil {
			errs = append(errs, &mflow.ValidationError{
				Path:    fmt.Sprintf("nodes[%d]", i),
				Message: fmt.Sprintf("node %q: %v", n.ID, err),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// BuildNodes validates f and returns its runtime nodes keyed by id together
// with the start node id.
func (b *Builder) BuildNodes(f mflow.Flow) (map[string]node.FlowNode, string, error) {
	if err := b.Validate(f); err != nil {
		return nil, "", err
	}

	flowNodeMap := make(map[string]node.FlowNode, len(f.Nodes))
	var startNodeID string
	for _, n := range f.Nodes {
		fn, err := b.buildNode(n)
		if err != nil {
			return nil, "", fmt.Errorf("build node %s: %w", n.ID, err)
		}
		flowNodeMap[n.ID] = fn
		if n.Kind == mflow.NodeKindStart {
			startNodeID = n.ID
		}
	}

	b.Logger.Debug("flow nodes built",
		slog.Int("nodes", len(flowNodeMap)),
		slog.String("start_node_id", startNodeID))
	return flowNodeMap, startNodeID, nil
}
