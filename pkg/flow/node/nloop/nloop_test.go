package nloop_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/expression"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/flowctx"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/node"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/node/nloop"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/runner"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/model/mflow"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/model/mloop"
)

func envWith(t *testing.T, entries map[string]any) *expression.UnifiedEnv {
	t.Helper()
	return expression.NewUnifiedEnv(expression.Layers{Nodes: entries})
}

func TestBuildPlan(t *testing.T) {
	env := envWith(t, map[string]any{
		"fetch": map[string]any{
			"items": []any{"a", "b", "c", "d", "e"},
			"ids":   []any{1, 2},
			"name":  "not a list",
		},
	})
	items := mloop.Variable{ID: "v1", VariableName: "item", SourceNodeID: "fetch", SourceField: "items"}
	ids := mloop.Variable{ID: "v2", VariableName: "id", SourceNodeID: "fetch", SourceField: "ids"}
	name := mloop.Variable{ID: "v3", VariableName: "name", SourceNodeID: "fetch", SourceField: "name"}

	tests := []struct {
		name     string
		loop     mloop.Loop
		expected int
	}{
		{name: "linked variable", loop: mloop.Loop{Variables: []mloop.Variable{items, ids}, LinkedVariableID: "v2"}, expected: 2},
		{name: "linked variable capped", loop: mloop.Loop{Variables: []mloop.Variable{items}, LinkedVariableID: "v1", MaxIterations: 3}, expected: 3},
		{name: "explicit items", loop: mloop.Loop{Items: []any{1, 2, 3, 4}}, expected: 4},
		{name: "longest source", loop: mloop.Loop{Variables: []mloop.Variable{ids, items}}, expected: 5},
		{name: "non array source counts zero", loop: mloop.Loop{Variables: []mloop.Variable{name}}, expected: 0},
		{name: "plain counter", loop: mloop.Loop{MaxIterations: 7}, expected: 7},
		{name: "default cap", loop: mloop.Loop{}, expected: mloop.DefaultMaxIterations},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, nloop.BuildPlan(tt.loop, env).Count)
		})
	}
}

func TestPlanBindings(t *testing.T) {
	env := envWith(t, map[string]any{
		"fetch": map[string]any{"items": []any{"a", "b", "c"}, "ids": []any{10}},
	})
	loop := mloop.Loop{Variables: []mloop.Variable{
		{VariableName: "item", SourceNodeID: "fetch", SourceField: "items"},
		{VariableName: "id", SourceNodeID: "fetch", SourceField: "ids"},
	}}
	plan := nloop.BuildPlan(loop, env)
	require.Equal(t, 3, plan.Count)

	require.Equal(t, map[string]any{"item": "a", "itemIndex": 0, "id": 10, "idIndex": 0}, plan.Bindings(0))
	// Out of range sources are absent, not nil.
	b := plan.Bindings(2)
	require.Equal(t, "c", b["item"])
	require.NotContains(t, b, "id")
	require.Equal(t, 2, b["idIndex"])
}

func TestPlanDefaultItemName(t *testing.T) {
	plan := nloop.BuildPlan(mloop.Loop{Items: []any{"x", "y"}}, envWith(t, nil))
	require.Equal(t, []string{nloop.DefaultItemName}, plan.Names)
	require.Equal(t, map[string]any{"item": "y", "itemIndex": 1}, plan.Bindings(1))
}

func TestParseAndValidate(t *testing.T) {
	loop, err := nloop.Parse(map[string]any{
		"maxIterations":    "25",
		"delayMs":          10,
		"loopCounterStart": 1,
		"errorHandling":    "continue",
		"linkedVariableId": "v1",
		"variables": []any{
			map[string]any{"id": "v1", "variableName": "item", "sourceNodeId": "fetch", "sourceField": "items"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 25, loop.MaxIterations)
	require.Equal(t, 1, loop.LoopCounterStart)
	require.True(t, loop.ContinueOnError())
	require.NoError(t, nloop.Validate(loop))

	_, err = nloop.Parse(map[string]any{"errorHandling": "retry"})
	require.ErrorIs(t, err, nloop.ErrInvalidConfig)

	_, err = nloop.Parse(map[string]any{"maxIterations": "lots"})
	require.ErrorIs(t, err, nloop.ErrInvalidConfig)

	err = nloop.Validate(mloop.Loop{
		Variables: []mloop.Variable{
			{VariableName: "item", SourceNodeID: "a"},
			{VariableName: "item"},
		},
		LinkedVariableID: "missing",
	})
	require.ErrorIs(t, err, nloop.ErrInvalidConfig)
	require.ErrorContains(t, err, "duplicate variable")
	require.ErrorContains(t, err, "sourceNodeId")
	require.ErrorContains(t, err, "linkedVariableId")
}

type mockBodyRunner struct {
	mock.Mock
}

func (m *mockBodyRunner) RunLoopBody(ctx context.Context, loopID string, iterCtx *flowctx.Context, ic *runner.IterationContext) error {
	args := m.Called(ctx, loopID, iterCtx, ic)
	return args.Error(0)
}

func TestRunSync(t *testing.T) {
	fctx := flowctx.New(flowctx.Ambient{})
	require.NoError(t, fctx.Write("fetch", map[string]any{"items": []any{"a", "b", "c"}}))

	cfg := map[string]any{
		"errorHandling": "continue",
		"variables": []any{
			map[string]any{"variableName": "item", "sourceNodeId": "fetch", "sourceField": "items"},
		},
	}

	body := new(mockBodyRunner)
	body.On("RunLoopBody", mock.Anything, "each", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			iterCtx := args.Get(2).(*flowctx.Context)
			ic := args.Get(3).(*runner.IterationContext)
			item, _ := iterCtx.Env(nil).ResolveRef("item")
			require.NoError(t, iterCtx.Write("work", map[string]any{"seen": item, "index": ic.ExecutionIndex}))
		}).
		Return(nil).Twice()
	body.On("RunLoopBody", mock.Anything, "each", mock.Anything, mock.Anything).
		Return(errors.New("third fails")).Once()

	var events []runner.FlowNodeStatus
	n := nloop.New("each", "Each")
	res := n.RunSync(context.Background(), &node.FlowNodeRequest{
		Config:      cfg,
		Context:     fctx,
		Env:         fctx.Env(nil),
		BodyRunner:  body,
		LogPushFunc: func(s runner.FlowNodeStatus) { events = append(events, s) },
	})

	require.NoError(t, res.Err)
	require.Equal(t, true, res.Output["success"])
	require.Equal(t, 2, res.Output["completedIterations"])
	require.Equal(t, 1, res.Output["failedIterations"])
	require.Len(t, events, 6)
	assert.Equal(t, mflow.NODE_STATE_FAILURE, events[5].State)
	assert.Equal(t, "Each Iteration 3", events[5].Name)

	// The failed last iteration wrote nothing; the second one's result survives.
	require.NotNil(t, res.Continuation)
	require.False(t, res.Continuation.Has("each"))
	require.True(t, res.Continuation.Has("fetch"))
	work, ok := res.Continuation.Get("work")
	require.True(t, ok)
	require.Equal(t, map[string]any{"seen": "b", "index": 1}, work)
	body.AssertExpectations(t)
}

func TestRunSync_StopAndCancel(t *testing.T) {
	fctx := flowctx.New(flowctx.Ambient{})

	body := new(mockBodyRunner)
	body.On("RunLoopBody", mock.Anything, "each", mock.Anything, mock.Anything).Return(errors.New("boom")).Once()

	res := nloop.New("each", "Each").RunSync(context.Background(), &node.FlowNodeRequest{
		Config:     map[string]any{"maxIterations": 5},
		Context:    fctx,
		Env:        fctx.Env(nil),
		BodyRunner: body,
	})
	require.ErrorContains(t, res.Err, "iteration 0")
	require.Equal(t, false, res.Output["success"])
	body.AssertExpectations(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res = nloop.New("each", "Each").RunSync(ctx, &node.FlowNodeRequest{
		Config:     map[string]any{"maxIterations": 5},
		Context:    fctx,
		Env:        fctx.Env(nil),
		BodyRunner: new(mockBodyRunner),
	})
	require.True(t, runner.IsCancellationError(res.Err))

	res = nloop.New("each", "Each").RunSync(context.Background(), &node.FlowNodeRequest{Context: fctx})
	require.ErrorIs(t, res.Err, nloop.ErrNoBodyRunner)
}
