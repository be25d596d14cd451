//nolint:revive // exported
package expression

import (
	"context"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/goccy/go-json"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/varsource"
)

type compileMode int

const (
	compileModeAny compileMode = iota
	compileModeBool
)

// Eval evaluates a pure expr-lang expression against the namespace.
// No {{ }} interpolation happens here; use SubstituteLiterals first for that.
func (e *UnifiedEnv) Eval(ctx context.Context, exprStr string) (any, error) {
	if e == nil {
		return nil, ErrNilEnv
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(exprStr) == "" {
		return nil, ErrEmptyExpression
	}

	env := e.buildExprEnv()
	program, err := expr.Compile(exprStr, compileOptions(compileModeAny, env)...)
	if err != nil {
		return nil, NewCompileError(exprStr, err)
	}

	output, err := expr.Run(program, env)
	if err != nil {
		return nil, NewRunError(exprStr, err)
	}
	return output, nil
}

// EvalBool evaluates an expression that must produce a boolean.
func (e *UnifiedEnv) EvalBool(ctx context.Context, exprStr string) (bool, error) {
	if e == nil {
		return false, ErrNilEnv
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if strings.TrimSpace(exprStr) == "" {
		return false, ErrEmptyExpression
	}

	env := e.buildExprEnv()
	program, err := expr.Compile(exprStr, compileOptions(compileModeBool, env)...)
	if err != nil {
		return false, NewCompileError(exprStr, err)
	}

	output, err := expr.Run(program, env)
	if err != nil {
		return false, NewRunError(exprStr, err)
	}

	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("%w, got %T", ErrNotBool, output)
	}
	return result, nil
}

// Programs are compiled per call: the env map changes shape with every
// context, so a cached program could be typed against stale identifiers.
func compileOptions(mode compileMode, env map[string]any) []expr.Option {
	options := []expr.Option{expr.Env(env), expr.AllowUndefinedVariables()}
	switch mode {
	case compileModeBool:
		options = append(options, expr.AsBool())
	default:
		options = append(options, expr.AsAny())
	}
	return options
}

// buildExprEnv flattens the layered namespace into an expr-lang env. Later
// layers shadow earlier ones, mirroring Lookup precedence.
func (e *UnifiedEnv) buildExprEnv() map[string]any {
	env := make(map[string]any, len(e.nodes)+8)

	for k, v := range e.nodes {
		env[k] = normalize(v)
	}

	if en, ok := e.flow.(varsource.Enumerable); ok {
		for _, name := range en.Names() {
			if v, ok := e.flow.Lookup(name); ok {
				env[name] = normalize(v)
			}
		}
	}

	var chain []*LoopScope
	for sc := e.loop; sc != nil; sc = sc.Parent {
		chain = append(chain, sc)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		sc := chain[i]
		for k, v := range sc.Vars {
			env[k] = normalize(v)
		}
		env["loop"] = sc.Info()
		env["loop_iteration"] = sc.Iteration
	}

	env["get"] = e.helperGet
	env["has"] = e.helperHas
	env["getenv"] = e.helperEnv
	env["secret"] = e.helperSecret
	env["uuid"] = helperUUID
	env["ulid"] = helperULID

	return env
}

// normalize converts json.Number leaves so expr-lang sees real numbers.
func normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i)
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}
