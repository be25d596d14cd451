//nolint:revive // exported
package nloop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/expression"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/flowctx"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/node"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/runner"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/idwrap"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/model/mflow"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/model/mloop"
)

var ErrNoBodyRunner = errors.New("loop node requires a body runner")

// DefaultItemName is bound when a loop iterates explicit items without
// declaring variables.
const DefaultItemName = "item"

type NodeLoop struct {
	FlowNodeID string
	Name       string
}

func New(id, name string) *NodeLoop {
	return &NodeLoop{FlowNodeID: id, Name: name}
}

// FromConfig validates the authored config before any run.
func FromConfig(id, name string, cfg map[string]any) (*NodeLoop, error) {
	loop, err := Parse(cfg)
	if err != nil {
		return nil, err
	}
	if err := Validate(loop); err != nil {
		return nil, err
	}
	return New(id, name), nil
}

func (n NodeLoop) GetID() string {
	return n.FlowNodeID
}

func (n NodeLoop) GetName() string {
	return n.Name
}

// Plan is the resolved shape of one loop execution.
type Plan struct {
	Count   int
	Sources map[string][]any
	// Names lists the per-iteration binding names in declaration order.
	Names []string
}

// BuildPlan derives the iteration count: the linked variable's length, else
// the explicit items, else the longest declared source, else the cap. The
// result never exceeds the cap.
func BuildPlan(loop mloop.Loop, env *expression.UnifiedEnv) Plan {
	plan := Plan{Sources: make(map[string][]any)}
	isArray := make(map[string]bool)

	for _, v := range loop.Variables {
		plan.Names = append(plan.Names, v.VariableName)
		val, _ := env.ResolveRef(v.SourcePath())
		if items, ok := expression.AsSlice(val); ok {
			plan.Sources[v.VariableName] = items
			isArray[v.VariableName] = true
		}
	}

	count := -1
	if linked, ok := loop.LinkedVariable(); ok && isArray[linked.VariableName] {
		count = len(plan.Sources[linked.VariableName])
	}

	if count < 0 && loop.Items != nil {
		items, _ := expression.AsSlice(loop.Items)
		count = len(items)
		if len(loop.Variables) == 0 {
			plan.Names = []string{DefaultItemName}
			plan.Sources[DefaultItemName] = items
		}
	}

	if count < 0 && len(loop.Variables) > 0 {
		count = 0
		for _, items := range plan.Sources {
			count = max(count, len(items))
		}
	}

	if count < 0 {
		count = loop.Cap()
	}

	plan.Count = min(count, loop.Cap())
	return plan
}

// Bindings returns the loop scope variables for iteration i. A source with
// no element at i leaves its variable absent.
func (p Plan) Bindings(i int) map[string]any {
	vars := make(map[string]any, len(p.Names)*2)
	for _, name := range p.Names {
		if items := p.Sources[name]; i < len(items) {
			vars[name] = items[i]
		}
		vars[name+"Index"] = i
	}
	return vars
}

type iterationRecord struct {
	index  int
	err    error
	output map[string]any
}

func (r iterationRecord) toMap() map[string]any {
	m := map[string]any{
		"index":   r.index,
		"success": r.err == nil,
		"output":  r.output,
	}
	if r.err != nil {
		m["error"] = r.err.Error()
	}
	return m
}

func (n NodeLoop) RunSync(ctx context.Context, req *node.FlowNodeRequest) node.FlowNodeResult {
	if req.BodyRunner == nil {
		return node.FlowNodeResult{Err: ErrNoBodyRunner}
	}
	logger := req.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	loop, err := Parse(req.Config)
	if err != nil {
		return node.FlowNodeResult{Err: err}
	}

	plan := BuildPlan(loop, req.Env)
	parentKeys := req.Context.Snapshot()
	delay := loop.Delay()

	logger.DebugContext(ctx, "loop planned",
		slog.String("node_id", n.FlowNodeID),
		slog.Int("iterations", plan.Count),
		slog.String("error_handling", string(loop.ErrorHandling)))

	// continuation accumulates the latest entry of every body node across
	// iterations, so an iteration that fails early hides nothing.
	continuation := req.Context.Fork()
	var (
		records  []iterationRecord
		lastInfo map[string]any
		loopErr  error
	)

	for i := 0; i < plan.Count; i++ {
		if i > 0 && delay > 0 {
			if err := wait(ctx, delay); err != nil {
				loopErr = err
				break
			}
		}
		if err := ctx.Err(); err != nil {
			loopErr = err
			break
		}

		vars := plan.Bindings(i)
		info := map[string]any{
			"current": loop.LoopCounterStart + i,
			"index":   i,
			"total":   plan.Count,
		}
		for _, name := range plan.Names {
			if v, ok := vars[name]; ok {
				info[name] = v
			}
		}

		iterCtx := req.Context.ForkLoop(&expression.LoopScope{
			LoopID:    n.FlowNodeID,
			Vars:      vars,
			Index:     i,
			Iteration: loop.LoopCounterStart + i,
			Total:     plan.Count,
		})
		if err := iterCtx.Write(n.FlowNodeID, map[string]any{node.OutputLoop: info}); err != nil {
			return node.FlowNodeResult{Err: err}
		}

		iterContext := req.IterationContext.Child(n.FlowNodeID, i)
		executionID := idwrap.NewMonotonic()
		executionName := fmt.Sprintf("%s Iteration %d", n.Name, i+1)
		n.push(req, runner.FlowNodeStatus{
			ExecutionID:      executionID,
			NodeID:           n.FlowNodeID,
			Name:             executionName,
			State:            mflow.NODE_STATE_RUNNING,
			OutputData:       info,
			IterationContext: iterContext,
		})

		start := time.Now()
		iterErr := req.BodyRunner.RunLoopBody(ctx, n.FlowNodeID, iterCtx, iterContext)
		record := iterationRecord{index: i, err: iterErr, output: bodyEntries(iterCtx, parentKeys, n.FlowNodeID)}
		records = append(records, record)
		continuation.MergeOnly(iterCtx, bodyKeys(iterCtx, parentKeys, n.FlowNodeID))
		lastInfo = info

		state := mflow.NODE_STATE_SUCCESS
		if iterErr != nil {
			state = mflow.NODE_STATE_FAILURE
			if runner.IsCancellationError(iterErr) {
				state = mflow.NODE_STATE_CANCELED
			}
		}
		n.push(req, runner.FlowNodeStatus{
			ExecutionID:      executionID,
			NodeID:           n.FlowNodeID,
			Name:             executionName,
			State:            state,
			OutputData:       record.toMap(),
			RunDuration:      time.Since(start),
			Error:            iterErr,
			IterationContext: iterContext,
		})

		if iterErr == nil {
			continue
		}
		logger.DebugContext(ctx, "loop iteration failed",
			slog.String("node_id", n.FlowNodeID),
			slog.Int("index", i),
			slog.Any("error", iterErr))

		if runner.IsCancellationError(iterErr) {
			loopErr = iterErr
			break
		}
		if !loop.ContinueOnError() {
			loopErr = fmt.Errorf("iteration %d: %w", i, iterErr)
			break
		}
	}

	output := summarize(records, plan.Count, loop.ContinueOnError() && !runner.IsCancellationError(loopErr))
	if lastInfo != nil {
		output[node.OutputLoop] = lastInfo
	}

	return node.FlowNodeResult{
		Output:       output,
		Continuation: continuation,
		Err:          loopErr,
	}
}

func (n NodeLoop) push(req *node.FlowNodeRequest, status runner.FlowNodeStatus) {
	if req.LogPushFunc != nil {
		req.LogPushFunc(status)
	}
}

func summarize(records []iterationRecord, total int, continueMode bool) map[string]any {
	iterations := make([]any, 0, len(records))
	completed, failed := 0, 0
	for _, r := range records {
		iterations = append(iterations, r.toMap())
		if r.err != nil {
			failed++
		} else {
			completed++
		}
	}
	return map[string]any{
		node.OutputSuccess:    continueMode || failed == 0,
		"iterations":          iterations,
		"totalIterations":     total,
		"completedIterations": completed,
		"failedIterations":    failed,
	}
}

// bodyKeys lists the entries an iteration produced on top of its parent.
func bodyKeys(iterCtx *flowctx.Context, parent map[string]any, loopID string) []string {
	var keys []string
	for k := range iterCtx.Snapshot() {
		if _, inherited := parent[k]; inherited || k == loopID {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

func bodyEntries(iterCtx *flowctx.Context, parent map[string]any, loopID string) map[string]any {
	out := make(map[string]any)
	for _, k := range bodyKeys(iterCtx, parent, loopID) {
		v, _ := iterCtx.Get(k)
		out[k] = v
	}
	return out
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
