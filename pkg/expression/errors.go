//nolint:revive // exported
package expression

import (
	"errors"
	"fmt"
)

var (
	ErrNilEnv          = errors.New("cannot evaluate on nil UnifiedEnv")
	ErrEmptyExpression = errors.New("empty expression")
	ErrNotBool         = errors.New("expression did not evaluate to bool")
)

// ExpressionError describes a failed compile or run of an expr-lang expression.
type ExpressionError struct {
	Expression string
	Phase      string // "compile" or "run"
	Cause      error
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("expression %q failed during %s: %v", e.Expression, e.Phase, e.Cause)
}

func (e *ExpressionError) Unwrap() error {
	return e.Cause
}

func NewCompileError(expr string, cause error) error {
	return &ExpressionError{Expression: expr, Phase: "compile", Cause: cause}
}

func NewRunError(expr string, cause error) error {
	return &ExpressionError{Expression: expr, Phase: "run", Cause: cause}
}
