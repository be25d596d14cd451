package flowlocalrunner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/flowctx"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/node"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/runner"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/tracking"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/idwrap"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/model/mflow"
)

type tokenKind int8

const (
	// tokenLive carries the predecessor's branch context.
	tokenLive tokenKind = iota
	// tokenSkip means the edge was not taken.
	tokenSkip
	// tokenPoison means the predecessor failed under the stop policy.
	tokenPoison
)

type delivery struct {
	kind tokenKind
	ctx  *flowctx.Context
}

// scopeRun executes one scope. Every member runs at most once, after each of
// its in-scope incoming edges delivered a token.
type scopeRun struct {
	rs    *runState
	scope mflow.Scope
	ic    *runner.IterationContext
	// sink, when set, additionally receives every entry written in the scope.
	sink *flowctx.Context

	g errgroup.Group

	mu      sync.Mutex
	pending map[string]int
	inbox   map[string][]delivery
	err     error
	// continued is the first failure recorded under the continue policy.
	continued error
}

func (rs *runState) runScope(ctx context.Context, scope mflow.Scope, base *flowctx.Context, ic *runner.IterationContext, sink *flowctx.Context) error {
	sr := &scopeRun{
		rs:      rs,
		scope:   scope,
		ic:      ic,
		sink:    sink,
		pending: make(map[string]int, len(scope.Members)),
		inbox:   make(map[string][]delivery),
	}
	for id := range scope.Members {
		sr.pending[id] = rs.graph.InDegree(scope, id)
	}
	for _, entry := range scope.Entries {
		if scope.Contains(entry) {
			sr.deliver(ctx, entry, delivery{kind: tokenLive, ctx: base.Fork()})
		}
	}
	_ = sr.g.Wait()

	sr.mu.Lock()
	defer sr.mu.Unlock()
	// In a loop body a continued failure still fails the iteration; the
	// loop's errorHandling decides whether the next one runs.
	if sr.err == nil && sink != nil {
		return sr.continued
	}
	return sr.err
}

func (sr *scopeRun) deliver(ctx context.Context, id string, d delivery) {
	sr.mu.Lock()
	sr.inbox[id] = append(sr.inbox[id], d)
	sr.pending[id]--
	if sr.pending[id] != 0 {
		sr.mu.Unlock()
		return
	}
	arrivals := sr.inbox[id]
	delete(sr.inbox, id)
	sr.mu.Unlock()

	sr.dispatch(ctx, id, arrivals)
}

func (sr *scopeRun) dispatch(ctx context.Context, id string, arrivals []delivery) {
	var live []*flowctx.Context
	poisoned := false
	for _, d := range arrivals {
		switch d.kind {
		case tokenPoison:
			poisoned = true
		case tokenLive:
			live = append(live, d.ctx)
		}
	}

	switch {
	case poisoned:
		sr.skip(ctx, id, tokenPoison)
	case len(live) == 0:
		sr.skip(ctx, id, tokenSkip)
	case ctx.Err() != nil:
		// Cancelled runs start no new invocations.
	default:
		branch := live[0]
		for _, other := range live[1:] {
			branch.Merge(other)
		}
		sr.g.Go(func() error {
			sr.execute(ctx, id, branch)
			return nil
		})
	}
}

func (sr *scopeRun) skip(ctx context.Context, id string, kind tokenKind) {
	name := id
	if model, ok := sr.rs.graph.Node(id); ok {
		name = model.DisplayName()
	}
	sr.rs.push(runner.FlowNodeStatus{
		ExecutionID:      idwrap.NewMonotonic(),
		NodeID:           id,
		Name:             name,
		State:            mflow.NODE_STATE_SKIPPED,
		IterationContext: sr.ic,
	})
	for _, e := range sr.rs.graph.ScopeOutgoing(sr.scope, id) {
		sr.deliver(ctx, e.Target, delivery{kind: kind})
	}
}

func (sr *scopeRun) fail(err error, continued bool) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	switch {
	case continued && sr.continued == nil:
		sr.continued = err
	case !continued && sr.err == nil:
		sr.err = err
	}
}

func (sr *scopeRun) execute(ctx context.Context, id string, branch *flowctx.Context) {
	rs := sr.rs
	model, _ := rs.graph.Node(id)
	isLoop := model.Kind == mflow.NodeKindLoop

	// Loop nodes wait on their bodies, whose nodes need permits of their own.
	if !isLoop {
		if err := rs.sem.Acquire(ctx, 1); err != nil {
			return
		}
	}
	res, executionID, tracker, duration := sr.invoke(ctx, model, branch)
	if !isLoop {
		rs.sem.Release(1)
	}

	out := branch
	if res.Continuation != nil {
		out = res.Continuation
	}

	state := mflow.NODE_STATE_SUCCESS
	continued := false
	var entry map[string]any
	switch {
	case res.Err == nil:
		entry = node.SuccessOutput(res.Output)
	case runner.IsCancellationError(res.Err):
		state = mflow.NODE_STATE_CANCELED
		entry = node.FailureOutput(res.Output, res.Err, false)
		rs.cancel(res.Err)
	default:
		state = mflow.NODE_STATE_FAILURE
		continued = model.Policy() == mflow.FailurePolicyContinue
		entry = node.FailureOutput(res.Output, res.Err, continued)
	}

	if err := out.Write(id, entry); err != nil {
		state, continued = mflow.NODE_STATE_FAILURE, false
		res.Err = err
		entry = node.FailureOutput(nil, err, false)
	}
	if state == mflow.NODE_STATE_FAILURE {
		rs.markFailed(id)
	}
	tracker.TrackWrite(id, entry)

	rs.journal.Set(id, entry)
	if sr.sink != nil {
		sr.sink.Set(id, entry)
		if isLoop {
			for k, v := range out.Snapshot() {
				if !branch.Has(k) {
					sr.sink.Set(k, v)
				}
			}
		}
	}

	rs.push(runner.FlowNodeStatus{
		ExecutionID:      executionID,
		NodeID:           id,
		Name:             model.DisplayName(),
		State:            state,
		OutputData:       tracker.GetWrittenVars()[id],
		InputData:        tracker.GetReadVarsAsTree(),
		RunDuration:      duration,
		Error:            res.Err,
		IterationContext: sr.ic,
	})
	rs.logger.DebugContext(ctx, "node finished",
		slog.String("node_id", id),
		slog.String("state", mflow.StringNodeState(state)),
		slog.Duration("duration", duration),
		slog.Any("error", res.Err))

	edges := rs.graph.ScopeOutgoing(sr.scope, id)
	if state == mflow.NODE_STATE_CANCELED {
		return
	}
	if state == mflow.NODE_STATE_FAILURE {
		sr.fail(fmt.Errorf("%w: %s: %w", runner.ErrNodeFailed, id, res.Err), continued)
		if !continued {
			for _, e := range edges {
				sr.deliver(ctx, e.Target, delivery{kind: tokenPoison})
			}
			return
		}
	}

	taken := selectEdges(model, res.Branch, edges)
	for i, e := range edges {
		if taken[i] {
			sr.deliver(ctx, e.Target, delivery{kind: tokenLive, ctx: out.Fork()})
		} else {
			sr.deliver(ctx, e.Target, delivery{kind: tokenSkip})
		}
	}
}

// invoke resolves the node's inputs and runs it. Only loop nodes observe run
// cancellation; every other invocation runs to completion once started.
func (sr *scopeRun) invoke(ctx context.Context, model mflow.Node, branch *flowctx.Context) (node.FlowNodeResult, idwrap.IDWrap, *tracking.VariableTracker, time.Duration) {
	rs := sr.rs
	executionID := idwrap.NewMonotonic()
	tracker := tracking.NewVariableTracker()

	fn, ok := rs.nodes[model.ID]
	if !ok {
		return node.FlowNodeResult{Err: fmt.Errorf("%w: %s", runner.ErrNodeNotFound, model.ID)}, executionID, tracker, 0
	}

	rs.markVisited(model.ID)
	pushState := func(state mflow.NodeState) {
		rs.push(runner.FlowNodeStatus{
			ExecutionID:      executionID,
			NodeID:           model.ID,
			Name:             model.DisplayName(),
			State:            state,
			IterationContext: sr.ic,
		})
	}

	start := time.Now()
	pushState(mflow.NODE_STATE_RESOLVING)
	env := branch.Env(tracker)

	// Condition operands are resolved case by case during evaluation.
	cfg := model.Config
	if model.Kind != mflow.NodeKindCondition {
		cfg = env.ResolveMap(model.Config)
	}
	pushState(mflow.NODE_STATE_RUNNING)

	invokeCtx := context.WithoutCancel(ctx)
	if model.Kind == mflow.NodeKindLoop {
		invokeCtx = ctx
	}

	res := fn.RunSync(invokeCtx, &node.FlowNodeRequest{
		Node:             model,
		RawConfig:        model.Config,
		Config:           cfg,
		Context:          branch,
		Env:              env,
		Trigger:          rs.trigger,
		Logger:           rs.logger.With(slog.String("node_id", model.ID)),
		LogPushFunc:      rs.push,
		VariableTracker:  tracker,
		IterationContext: sr.ic,
		ExecutionID:      executionID,
		BodyRunner:       rs,
	})
	return res, executionID, tracker, time.Since(start)
}

// selectEdges marks the in-scope edges a completed node follows. Condition
// nodes follow exactly one edge; every other kind follows all untagged edges.
func selectEdges(model mflow.Node, choice *node.BranchChoice, edges []mflow.Edge) []bool {
	taken := make([]bool, len(edges))
	if model.Kind != mflow.NodeKindCondition {
		for i, e := range edges {
			taken[i] = !e.IsTagged()
		}
		return taken
	}

	var c node.BranchChoice
	if choice != nil {
		c = *choice
	}
	selected, ok := node.SelectEdge(edges, c)
	if !ok {
		return taken
	}
	for i, e := range edges {
		if e == selected {
			taken[i] = true
			break
		}
	}
	return taken
}
