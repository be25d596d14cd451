package expression_test

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/expression"
)

func TestToFloat(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{in: 3, want: 3, ok: true},
		{in: 2.5, want: 2.5, ok: true},
		{in: " 10 ", want: 10, ok: true},
		{in: json.Number("1500.50"), want: 1500.5, ok: true},
		{in: "abc", ok: false},
		{in: nil, ok: false},
		{in: true, ok: false},
	}
	for _, tc := range cases {
		got, ok := expression.ToFloat(tc.in)
		require.Equal(t, tc.ok, ok, "%v", tc.in)
		if tc.ok {
			require.InDelta(t, tc.want, got, 1e-9)
		}
	}
}

func TestToString(t *testing.T) {
	require.Equal(t, "", expression.ToString(nil))
	require.Equal(t, "42", expression.ToString(42.0))
	require.Equal(t, "1.25", expression.ToString(1.25))
	require.Equal(t, "true", expression.ToString(true))
	require.Equal(t, `{"a":1}`, expression.ToString(map[string]any{"a": 1}))
}

func TestIsEmpty(t *testing.T) {
	require.True(t, expression.IsEmpty(nil))
	require.True(t, expression.IsEmpty("  "))
	require.True(t, expression.IsEmpty([]any{}))
	require.True(t, expression.IsEmpty(map[string]any{}))
	require.True(t, expression.IsEmpty([]string{}))
	require.False(t, expression.IsEmpty(0))
	require.False(t, expression.IsEmpty("x"))
}

func TestAsSlice(t *testing.T) {
	got, ok := expression.AsSlice([]string{"a", "b"})
	require.True(t, ok)
	require.Equal(t, []any{"a", "b"}, got)

	_, ok = expression.AsSlice("ab")
	require.False(t, ok)
	_, ok = expression.AsSlice([]byte("ab"))
	require.False(t, ok)
}

func TestExprLiteral(t *testing.T) {
	require.Equal(t, "nil", expression.ExprLiteral(nil))
	require.Equal(t, `"a\"b"`, expression.ExprLiteral(`a"b`))
	require.Equal(t, "7", expression.ExprLiteral(7))
	require.Equal(t, "[1,2]", expression.ExprLiteral([]any{1, 2}))
}

func TestResolvePath(t *testing.T) {
	data := map[string]any{
		"node": map[string]any{
			"headers": map[string]any{"Content-Type": "json"},
			"list":    []any{map[string]any{"id": 1}},
		},
	}

	v, ok := expression.ResolvePath(data, "node.headers.Content-Type")
	require.True(t, ok)
	require.Equal(t, "json", v)

	v, ok = expression.ResolvePath(data, `node.headers["Content-Type"]`)
	require.True(t, ok)
	require.Equal(t, "json", v)

	v, ok = expression.ResolvePath(data, "node.list[0].id")
	require.True(t, ok)
	require.Equal(t, 1, v)

	_, ok = expression.ResolvePath(data, "node.list[3]")
	require.False(t, ok)
	_, ok = expression.ResolvePath(nil, "x")
	require.False(t, ok)
}
