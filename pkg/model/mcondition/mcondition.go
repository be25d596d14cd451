//nolint:revive // exported
package mcondition

type Operator string

const (
	OperatorEquals         Operator = "equals"
	OperatorNotEquals      Operator = "notEquals"
	OperatorGreaterThan    Operator = "greaterThan"
	OperatorLessThan       Operator = "lessThan"
	OperatorGreaterOrEqual Operator = "greaterOrEqual"
	OperatorLessOrEqual    Operator = "lessOrEqual"
	OperatorContains       Operator = "contains"
	OperatorStartsWith     Operator = "startsWith"
	OperatorEndsWith       Operator = "endsWith"
	OperatorIsEmpty        Operator = "isEmpty"
	OperatorIsNotEmpty     Operator = "isNotEmpty"
	OperatorIsTrue         Operator = "isTrue"
	OperatorIsFalse        Operator = "isFalse"
)

// Unary operators ignore the right operand.
func (o Operator) Unary() bool {
	switch o {
	case OperatorIsEmpty, OperatorIsNotEmpty, OperatorIsTrue, OperatorIsFalse:
		return true
	}
	return false
}

type OperandType string

const (
	OperandTypeStatic   OperandType = "static"
	OperandTypeVariable OperandType = "variable"
)

type ReturnType string

const (
	ReturnTypeBoolean ReturnType = "boolean"
	ReturnTypeString  ReturnType = "string"
	ReturnTypeInteger ReturnType = "integer"
)

type Case struct {
	ID               string      `json:"id"`
	Label            string      `json:"label,omitempty"`
	LeftOperand      any         `json:"leftOperand"`
	Operator         Operator    `json:"operator"`
	RightOperand     any         `json:"rightOperand,omitempty"`
	RightOperandType OperandType `json:"rightOperandType,omitempty"`
	ReturnValue      string      `json:"returnValue"`
}

type Condition struct {
	Cases               []Case     `json:"cases"`
	ReturnType          ReturnType `json:"returnType"`
	UseCustomExpression bool       `json:"useCustomExpression,omitempty"`
	CustomExpression    string     `json:"customExpression,omitempty"`
}

// EffectiveReturnType defaults to boolean.
func (c Condition) EffectiveReturnType() ReturnType {
	switch c.ReturnType {
	case ReturnTypeString, ReturnTypeInteger:
		return c.ReturnType
	default:
		return ReturnTypeBoolean
	}
}

// NoMatchValue is the return value emitted when no case matches.
func (c Condition) NoMatchValue() string {
	switch c.EffectiveReturnType() {
	case ReturnTypeString:
		return ""
	case ReturnTypeInteger:
		return "0"
	default:
		return "false"
	}
}

// CaseReturnValue is the value emitted when cs matches. Boolean cases
// without an explicit value return "true".
func (c Condition) CaseReturnValue(cs Case) string {
	if cs.ReturnValue == "" && c.EffectiveReturnType() == ReturnTypeBoolean {
		return "true"
	}
	return cs.ReturnValue
}
