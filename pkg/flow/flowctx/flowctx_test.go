package flowctx_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/expression"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/flowctx"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/varsource"
)

func TestWriteOncePerScope(t *testing.T) {
	c := flowctx.New(flowctx.Ambient{})

	require.NoError(t, c.Write("a", map[string]any{"success": true}))
	err := c.Write("a", map[string]any{"success": false})
	require.ErrorIs(t, err, flowctx.ErrDuplicateWrite)

	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, map[string]any{"success": true}, v)
}

func TestForkIsolation(t *testing.T) {
	parent := flowctx.New(flowctx.Ambient{})
	require.NoError(t, parent.Write("a", map[string]any{"list": []any{1}}))

	left := parent.Fork()
	right := parent.Fork()
	require.NoError(t, left.Write("b", "left"))
	require.NoError(t, right.Write("b", "right"))

	require.False(t, parent.Has("b"))
	lv, _ := left.Get("b")
	rv, _ := right.Get("b")
	require.Equal(t, "left", lv)
	require.Equal(t, "right", rv)

	snap := left.Snapshot()
	snap["a"].(map[string]any)["list"].([]any)[0] = 99
	av, _ := parent.Get("a")
	require.Equal(t, 1, av.(map[string]any)["list"].([]any)[0])
}

func TestWriteCopiesValue(t *testing.T) {
	c := flowctx.New(flowctx.Ambient{})
	out := map[string]any{"n": 1}
	require.NoError(t, c.Write("a", out))
	out["n"] = 2

	v, _ := c.Get("a")
	require.Equal(t, 1, v.(map[string]any)["n"])
}

func TestMerge(t *testing.T) {
	base := flowctx.New(flowctx.Ambient{})
	require.NoError(t, base.Write("start", "s"))

	left := base.Fork()
	right := base.Fork()
	require.NoError(t, left.Write("l", 1))
	require.NoError(t, right.Write("r", 2))

	join := left.Fork()
	join.Merge(right)
	require.Equal(t, map[string]any{"start": "s", "l": 1, "r": 2}, join.Snapshot())

	body := base.Fork()
	require.NoError(t, body.Write("step", "last"))
	require.NoError(t, body.Write("other", "x"))
	base.MergeOnly(body, []string{"step", "missing"})
	require.Equal(t, map[string]any{"start": "s", "step": "last"}, base.Snapshot())
}

func TestEnvResolvesEntriesAndAmbient(t *testing.T) {
	c := flowctx.New(flowctx.Ambient{
		Flow: varsource.Map{"greeting": "hi"},
		Env:  varsource.Map{"USER": "ada"},
	})
	require.NoError(t, c.Write("fetch", map[string]any{"status": 200}))

	env := c.Env(nil)
	require.Equal(t, 200, env.ResolveValue("{{fetch.status}}"))
	require.Equal(t, "hi ada", env.ResolveValue("{{greeting}} {{env.USER}}"))

	// Later writes are not visible to an env built earlier.
	require.NoError(t, c.Write("late", 1))
	require.Nil(t, env.ResolveValue("{{late}}"))
}

func TestForkLoopChainsScopes(t *testing.T) {
	c := flowctx.New(flowctx.Ambient{})
	outer := c.ForkLoop(&expression.LoopScope{LoopID: "outer", Vars: map[string]any{"row": "r"}, Total: 1})
	inner := outer.ForkLoop(&expression.LoopScope{LoopID: "inner", Vars: map[string]any{"cell": "c"}, Total: 1})

	require.Nil(t, c.Loop())
	require.Equal(t, "outer", inner.Loop().Parent.LoopID)
	require.Equal(t, "r/c", inner.Env(nil).ResolveValue("{{row}}/{{cell}}"))
}

func TestConcurrentWrites(t *testing.T) {
	c := flowctx.New(flowctx.Ambient{})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = c.Write(string(rune('a'+i)), i)
			_ = c.Snapshot()
		}(i)
	}
	wg.Wait()
	require.Equal(t, 20, c.Len())
}
