package flowlocalrunner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/flowctx"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/node"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/runner"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/idwrap"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/model/mflow"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/varsource"
)

type Options struct {
	Logger *slog.Logger
	// MaxParallel bounds concurrent node invocations. Zero means MaxParallelism().
	MaxParallel int
	// StatusFunc receives every node status transition. Calls are serialized.
	StatusFunc node.LogPushFunc
	// Vars override flow variables with the same name.
	Vars    map[string]any
	Env     varsource.Provider
	Secrets varsource.Provider
}

type FlowLocalRunner struct {
	ID          idwrap.IDWrap
	Graph       *mflow.Graph
	FlowNodeMap map[string]node.FlowNode
	StartNodeID string

	flowVars map[string]any
	opts     Options
}

var _ runner.FlowRunner = (*FlowLocalRunner)(nil)

func CreateFlowRunner(id idwrap.IDWrap, flow mflow.Flow, flowNodeMap map[string]node.FlowNode, startNodeID string, opts Options) *FlowLocalRunner {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = MaxParallelism()
	}
	if opts.Env == nil {
		opts.Env = varsource.OSEnv{}
	}
	if opts.Secrets == nil {
		opts.Secrets = varsource.Empty
	}
	return &FlowLocalRunner{
		ID:          id,
		Graph:       mflow.NewGraph(flow),
		FlowNodeMap: flowNodeMap,
		StartNodeID: startNodeID,
		flowVars:    flow.VariableMap(),
		opts:        opts,
	}
}

func MaxParallelism() int {
	maxProcs := runtime.GOMAXPROCS(0)
	numCPU := runtime.NumCPU()
	if maxProcs < numCPU {
		return maxProcs
	}
	return numCPU
}

// Run executes the flow once. A node failure is reported through the outcome
// status, not the returned error, which is reserved for runs that cannot start.
func (r *FlowLocalRunner) Run(ctx context.Context, trigger map[string]any) (runner.Outcome, error) {
	runID := idwrap.NewNow()
	startedAt := time.Now()
	if _, ok := r.FlowNodeMap[r.StartNodeID]; !ok || r.StartNodeID == "" {
		return runner.Outcome{RunID: runID, Status: runner.FlowStatusFailed, StartedAt: startedAt},
			fmt.Errorf("%w: %q", runner.ErrNoStartNode, r.StartNodeID)
	}
	// Nodes on such a cycle would wait on each other forever and never run.
	if cycle := r.Graph.FindCycle(); cycle != nil {
		return runner.Outcome{RunID: runID, Status: runner.FlowStatusFailed, StartedAt: startedAt},
			fmt.Errorf("%w: %s", runner.ErrGraphCycle, strings.Join(cycle, " -> "))
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	ambient := flowctx.Ambient{
		Flow:    varsource.Chain{varsource.Map(r.opts.Vars), varsource.Map(r.flowVars)},
		Env:     r.opts.Env,
		Secrets: r.opts.Secrets,
	}
	rs := &runState{
		graph:      r.Graph,
		nodes:      r.FlowNodeMap,
		runID:      runID,
		trigger:    trigger,
		logger:     r.opts.Logger.With(slog.String("run_id", runID.String())),
		statusFunc: r.opts.StatusFunc,
		sem:        semaphore.NewWeighted(int64(r.opts.MaxParallel)),
		cancel:     cancel,
		journal:    flowctx.New(ambient),
		visitedSet: make(map[string]struct{}),
		failedSet:  make(map[string]struct{}),
	}

	rs.logger.InfoContext(ctx, "flow run started", slog.String("start_node_id", r.StartNodeID))

	top := r.Graph.TopLevelScope(r.StartNodeID)
	scopeErr := rs.runScope(runCtx, top, flowctx.New(ambient), nil, nil)

	status := runner.FlowStatusSucceeded
	switch {
	case runCtx.Err() != nil:
		status = runner.FlowStatusCancelled
	case scopeErr != nil:
		status = runner.FlowStatusFailed
	}

	outcome := rs.outcome(status, startedAt)
	rs.logger.InfoContext(ctx, "flow run finished",
		slog.String("status", status.String()),
		slog.Int("visited", len(outcome.VisitedNodeIDs)),
		slog.Int("failed", len(outcome.FailedNodeIDs)),
		slog.Duration("duration", outcome.Duration))
	return outcome, nil
}

// runState is the per-run state shared by every scope of one Run call.
type runState struct {
	graph      *mflow.Graph
	nodes      map[string]node.FlowNode
	runID      idwrap.IDWrap
	trigger    map[string]any
	logger     *slog.Logger
	statusFunc node.LogPushFunc
	sem        *semaphore.Weighted
	cancel     context.CancelCauseFunc
	// journal holds the latest entry of every executed node.
	journal *flowctx.Context

	mu         sync.Mutex
	visited    []string
	visitedSet map[string]struct{}
	failed     []string
	failedSet  map[string]struct{}
	statuses   []runner.FlowNodeStatus

	pushMu sync.Mutex
}

func (rs *runState) push(status runner.FlowNodeStatus) {
	rs.pushMu.Lock()
	defer rs.pushMu.Unlock()
	if mflow.IsNodeStateDone(status.State) {
		rs.statuses = append(rs.statuses, status)
	}
	if rs.statusFunc != nil {
		rs.statusFunc(status)
	}
}

func (rs *runState) markVisited(id string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if _, ok := rs.visitedSet[id]; ok {
		return
	}
	rs.visitedSet[id] = struct{}{}
	rs.visited = append(rs.visited, id)
}

func (rs *runState) markFailed(id string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if _, ok := rs.failedSet[id]; ok {
		return
	}
	rs.failedSet[id] = struct{}{}
	rs.failed = append(rs.failed, id)
}

func (rs *runState) outcome(status runner.FlowStatus, startedAt time.Time) runner.Outcome {
	rs.mu.Lock()
	visited := append([]string(nil), rs.visited...)
	failed := append([]string(nil), rs.failed...)
	rs.mu.Unlock()

	rs.pushMu.Lock()
	statuses := append([]runner.FlowNodeStatus(nil), rs.statuses...)
	rs.pushMu.Unlock()

	return runner.Outcome{
		RunID:          rs.runID,
		Status:         status,
		Context:        rs.journal.Snapshot(),
		FailedNodeIDs:  failed,
		VisitedNodeIDs: visited,
		StartedAt:      startedAt,
		Duration:       time.Since(startedAt),
		Nodes:          statuses,
	}
}

// RunLoopBody runs one iteration of loopID's body. Body results are recorded
// in iterCtx so the loop node can expose them after the last iteration.
func (rs *runState) RunLoopBody(ctx context.Context, loopID string, iterCtx *flowctx.Context, ic *runner.IterationContext) error {
	scope := rs.graph.LoopScope(loopID)
	if err := rs.runScope(ctx, scope, iterCtx, ic, iterCtx); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return nil
}
