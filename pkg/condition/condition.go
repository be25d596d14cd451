// Package condition evaluates the ordered case lists of condition nodes.
package condition

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/expression"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/model/mcondition"
)

var (
	ErrUnknownOperator = errors.New("unknown operator")
	ErrInvalidReturn   = errors.New("invalid return value")
)

// Result is the discriminant produced by one evaluation. MatchedCaseID is
// empty when no case matched.
type Result struct {
	MatchedCaseID string
	ReturnValue   string
	Matched       bool
}

// Evaluate runs cases in authored order and stops at the first match.
func Evaluate(ctx context.Context, cond mcondition.Condition, env *expression.UnifiedEnv) (Result, error) {
	if cond.UseCustomExpression {
		return evaluateCustom(ctx, cond, env)
	}

	boolean := cond.EffectiveReturnType() == mcondition.ReturnTypeBoolean
	for _, cs := range cond.Cases {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		ok, err := Match(cs, boolean, env)
		if err != nil {
			return Result{}, fmt.Errorf("case %q: %w", cs.ID, err)
		}
		if ok {
			return Result{
				MatchedCaseID: cs.ID,
				ReturnValue:   cond.CaseReturnValue(cs),
				Matched:       true,
			}, nil
		}
	}

	return Result{ReturnValue: cond.NoMatchValue()}, nil
}

func evaluateCustom(ctx context.Context, cond mcondition.Condition, env *expression.UnifiedEnv) (Result, error) {
	exprStr := env.SubstituteLiterals(cond.CustomExpression)
	ok, err := env.EvalBool(ctx, exprStr)
	if err != nil {
		return Result{}, fmt.Errorf("custom expression: %w", err)
	}
	return Result{ReturnValue: strconv.FormatBool(ok), Matched: ok}, nil
}

// Match applies a single case. isTrue/isFalse only match when the
// condition returns booleans. The right operand is never resolved for unary
// operators.
func Match(cs mcondition.Case, boolean bool, env *expression.UnifiedEnv) (bool, error) {
	left := resolveOperand(cs.LeftOperand, env)
	if cs.Operator.Unary() {
		return matchUnary(cs.Operator, left, boolean), nil
	}

	var right any
	if cs.RightOperandType == mcondition.OperandTypeVariable {
		right = resolveVariable(cs.RightOperand, env)
	} else {
		right = staticOperand(cs.RightOperand)
	}

	switch cs.Operator {
	case mcondition.OperatorEquals:
		return equal(left, right), nil
	case mcondition.OperatorNotEquals:
		return !equal(left, right), nil
	case mcondition.OperatorGreaterThan:
		return compareNumbers(left, right, func(a, b float64) bool { return a > b }), nil
	case mcondition.OperatorLessThan:
		return compareNumbers(left, right, func(a, b float64) bool { return a < b }), nil
	case mcondition.OperatorGreaterOrEqual:
		return compareNumbers(left, right, func(a, b float64) bool { return a >= b }), nil
	case mcondition.OperatorLessOrEqual:
		return compareNumbers(left, right, func(a, b float64) bool { return a <= b }), nil
	}

	// Substring operators never match an absent right operand.
	switch cs.Operator {
	case mcondition.OperatorContains:
		return right != nil && contains(left, right), nil
	case mcondition.OperatorStartsWith:
		return right != nil && strings.HasPrefix(trimmed(left), trimmed(right)), nil
	case mcondition.OperatorEndsWith:
		return right != nil && strings.HasSuffix(trimmed(left), trimmed(right)), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, cs.Operator)
	}
}

func matchUnary(op mcondition.Operator, left any, boolean bool) bool {
	switch op {
	case mcondition.OperatorIsEmpty:
		return expression.IsEmpty(left)
	case mcondition.OperatorIsNotEmpty:
		return !expression.IsEmpty(left)
	}
	if !boolean {
		return false
	}
	b, ok := expression.ToBool(left)
	if !ok {
		return false
	}
	return b == (op == mcondition.OperatorIsTrue)
}

// Validate checks a condition before it is executed.
func Validate(cond mcondition.Condition) error {
	if cond.UseCustomExpression {
		if strings.TrimSpace(cond.CustomExpression) == "" {
			return expression.ErrEmptyExpression
		}
		return nil
	}

	var errs []error
	for i, cs := range cond.Cases {
		if !knownOperator(cs.Operator) {
			errs = append(errs, fmt.Errorf("cases[%d]: %w: %q", i, ErrUnknownOperator, cs.Operator))
		}
		if cond.EffectiveReturnType() == mcondition.ReturnTypeInteger {
			if _, err := strconv.Atoi(strings.TrimSpace(cs.ReturnValue)); err != nil {
				errs = append(errs, fmt.Errorf("cases[%d]: %w: %q is not an integer", i, ErrInvalidReturn, cs.ReturnValue))
			}
		}
	}
	return errors.Join(errs...)
}

func knownOperator(op mcondition.Operator) bool {
	switch op {
	case mcondition.OperatorEquals, mcondition.OperatorNotEquals,
		mcondition.OperatorGreaterThan, mcondition.OperatorLessThan,
		mcondition.OperatorGreaterOrEqual, mcondition.OperatorLessOrEqual,
		mcondition.OperatorContains, mcondition.OperatorStartsWith, mcondition.OperatorEndsWith,
		mcondition.OperatorIsEmpty, mcondition.OperatorIsNotEmpty,
		mcondition.OperatorIsTrue, mcondition.OperatorIsFalse:
		return true
	}
	return false
}

func resolveOperand(v any, env *expression.UnifiedEnv) any {
	if s, ok := v.(string); ok {
		return env.ResolveValue(s)
	}
	return v
}

// resolveVariable accepts both "{{ ref }}" and a bare "ref".
func resolveVariable(v any, env *expression.UnifiedEnv) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if expression.HasVars(s) {
		return env.ResolveValue(s)
	}
	resolved, _ := env.ResolveRef(s)
	return resolved
}

func staticOperand(v any) any {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return v
}

func trimmed(v any) string {
	return strings.TrimSpace(expression.ToString(v))
}

func equal(left, right any) bool {
	lf, lok := expression.ToFloat(left)
	rf, rok := expression.ToFloat(right)
	if lok && rok {
		return lf == rf
	}
	return trimmed(left) == trimmed(right)
}

// compareNumbers never matches when either side is not numeric.
func compareNumbers(left, right any, cmp func(a, b float64) bool) bool {
	lf, lok := expression.ToFloat(left)
	rf, rok := expression.ToFloat(right)
	if !lok || !rok {
		return false
	}
	return cmp(lf, rf)
}

func contains(left, right any) bool {
	if items, ok := expression.AsSlice(left); ok {
		for _, item := range items {
			if equal(item, right) {
				return true
			}
		}
		return false
	}
	if m, ok := left.(map[string]any); ok {
		_, exists := m[trimmed(right)]
		return exists
	}
	if left == nil {
		return false
	}
	return strings.Contains(trimmed(left), trimmed(right))
}
