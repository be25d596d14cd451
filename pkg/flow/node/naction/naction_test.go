package naction_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/action"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/flowctx"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/node"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/node/naction"
)

func TestNodeAction_PassesResolvedConfig(t *testing.T) {
	reg := action.NewRegistry()
	var got *action.Request
	require.NoError(t, reg.Register("echo", action.Func(func(_ context.Context, cfg map[string]any, req *action.Request) (map[string]any, error) {
		got = req
		return map[string]any{"greeting": cfg["greeting"]}, nil
	})))

	fctx := flowctx.New(flowctx.Ambient{})
	require.NoError(t, fctx.Write("start", map[string]any{"name": "ada"}))
	env := fctx.Env(nil)

	raw := map[string]any{"greeting": "hi {{start.name}}"}
	n := naction.New("greet", "Greet", "echo", reg)
	res := n.RunSync(context.Background(), &node.FlowNodeRequest{
		RawConfig: raw,
		Config:    env.ResolveMap(raw),
		Context:   fctx,
		Env:       env,
	})

	require.NoError(t, res.Err)
	require.Equal(t, "hi ada", res.Output["greeting"])
	require.Equal(t, "greet", got.NodeID)
	require.Equal(t, "echo", got.Kind)
	require.Equal(t, raw, got.RawConfig)
}

func TestNodeAction_Failures(t *testing.T) {
	reg := action.NewRegistry()
	require.NoError(t, reg.Register("soft", action.Func(func(context.Context, map[string]any, *action.Request) (map[string]any, error) {
		return map[string]any{"success": false, "reason": "quota"}, nil
	})))

	res := naction.New("s", "", "soft", reg).RunSync(context.Background(), &node.FlowNodeRequest{})
	require.ErrorIs(t, res.Err, action.ErrActionFailed)
	require.Equal(t, "quota", res.Output["reason"])

	res = naction.New("m", "", "missing", reg).RunSync(context.Background(), &node.FlowNodeRequest{})
	require.ErrorIs(t, res.Err, action.ErrUnknownAction)
}
