package condition

import (
	"errors"
	"fmt"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/expression"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/model/mcondition"
)

var ErrInvalidConfig = errors.New("invalid condition config")

// Parse reads a condition node's raw config. Operands are kept unresolved.
func Parse(cfg map[string]any) (mcondition.Condition, error) {
	var cond mcondition.Condition

	cond.ReturnType = mcondition.ReturnType(stringField(cfg, "returnType"))
	cond.CustomExpression = stringField(cfg, "customExpression")
	if v, ok := cfg["useCustomExpression"]; ok {
		b, ok := expression.ToBool(v)
		if !ok {
			return cond, fmt.Errorf("%w: useCustomExpression must be a boolean", ErrInvalidConfig)
		}
		cond.UseCustomExpression = b
	}

	raw, ok := cfg["cases"]
	if !ok || raw == nil {
		return cond, nil
	}
	items, ok := expression.AsSlice(raw)
	if !ok {
		return cond, fmt.Errorf("%w: cases must be a list", ErrInvalidConfig)
	}

	cond.Cases = make([]mcondition.Case, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return cond, fmt.Errorf("%w: cases[%d] must be an object", ErrInvalidConfig, i)
		}
		cs := mcondition.Case{
			ID:               stringField(m, "id"),
			Label:            stringField(m, "label"),
			LeftOperand:      m["leftOperand"],
			Operator:         mcondition.Operator(stringField(m, "operator")),
			RightOperand:     m["rightOperand"],
			RightOperandType: mcondition.OperandType(stringField(m, "rightOperandType")),
			ReturnValue:      stringField(m, "returnValue"),
		}
		if cs.ID == "" {
			cs.ID = fmt.Sprintf("case-%d", i)
		}
		cond.Cases = append(cond.Cases, cs)
	}
	return cond, nil
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return expression.ToString(v)
}
