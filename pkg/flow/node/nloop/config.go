package nloop

import (
	"errors"
	"fmt"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/expression"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/model/mloop"
)

var ErrInvalidConfig = errors.New("invalid loop config")

// Parse reads a loop node config. Numeric fields accept numbers or numeric
// strings, so they may come from bindings.
func Parse(cfg map[string]any) (mloop.Loop, error) {
	var loop mloop.Loop

	var err error
	if loop.MaxIterations, err = intField(cfg, "maxIterations"); err != nil {
		return loop, err
	}
	if loop.LoopCounterStart, err = intField(cfg, "loopCounterStart"); err != nil {
		return loop, err
	}
	if loop.DelayMs, err = intField(cfg, "delayMs"); err != nil {
		return loop, err
	}

	switch eh := mloop.ErrorHandling(stringField(cfg, "errorHandling")); eh {
	case "":
		loop.ErrorHandling = mloop.ErrorHandlingStop
	case mloop.ErrorHandlingStop, mloop.ErrorHandlingContinue:
		loop.ErrorHandling = eh
	default:
		return loop, fmt.Errorf("%w: errorHandling %q", ErrInvalidConfig, eh)
	}

	loop.LinkedVariableID = stringField(cfg, "linkedVariableId")
	loop.Items = cfg["items"]

	if raw, ok := cfg["variables"]; ok && raw != nil {
		items, ok := expression.AsSlice(raw)
		if !ok {
			return loop, fmt.Errorf("%w: variables must be a list", ErrInvalidConfig)
		}
		for i, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				return loop, fmt.Errorf("%w: variables[%d] must be an object", ErrInvalidConfig, i)
			}
			loop.Variables = append(loop.Variables, mloop.Variable{
				ID:           stringField(m, "id"),
				VariableName: stringField(m, "variableName"),
				SourceNodeID: stringField(m, "sourceNodeId"),
				SourceField:  stringField(m, "sourceField"),
			})
		}
	}

	return loop, nil
}

// Validate checks the parts of a loop config that cannot depend on bindings.
func Validate(loop mloop.Loop) error {
	var errs []error
	names := make(map[string]struct{}, len(loop.Variables))
	for i, v := range loop.Variables {
		if v.VariableName == "" {
			errs = append(errs, fmt.Errorf("%w: variables[%d] has no variableName", ErrInvalidConfig, i))
		} else if _, dup := names[v.VariableName]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate variable %q", ErrInvalidConfig, v.VariableName))
		}
		names[v.VariableName] = struct{}{}
		if v.SourceNodeID == "" {
			errs = append(errs, fmt.Errorf("%w: variables[%d] has no sourceNodeId", ErrInvalidConfig, i))
		}
	}
	if loop.LinkedVariableID != "" {
		if _, ok := loop.LinkedVariable(); !ok {
			errs = append(errs, fmt.Errorf("%w: linkedVariableId %q matches no variable", ErrInvalidConfig, loop.LinkedVariableID))
		}
	}
	return errors.Join(errs...)
}

func intField(cfg map[string]any, key string) (int, error) {
	v, ok := cfg[key]
	if !ok || v == nil || v == "" {
		return 0, nil
	}
	// Unresolved bindings are checked once the config is resolved at run time.
	if s, isStr := v.(string); isStr && expression.HasVars(s) {
		return 0, nil
	}
	n, ok := expression.ToInt(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number, got %v", ErrInvalidConfig, key, v)
	}
	return n, nil
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return expression.ToString(v)
}
