//nolint:revive // exported
package mloop

import "time"

// DefaultMaxIterations caps loops that do not declare their own limit.
const DefaultMaxIterations = 1000

type ErrorHandling string

const (
	ErrorHandlingStop     ErrorHandling = "stop"
	ErrorHandlingContinue ErrorHandling = "continue"
)

// Variable binds a loop symbol to a field of an upstream node's output.
type Variable struct {
	ID           string `json:"id"`
	VariableName string `json:"variableName"`
	SourceNodeID string `json:"sourceNodeId"`
	SourceField  string `json:"sourceField"`
}

// SourcePath is the binding path of the variable's collection.
func (v Variable) SourcePath() string {
	if v.SourceField == "" {
		return v.SourceNodeID
	}
	return v.SourceNodeID + "." + v.SourceField
}

type Loop struct {
	Variables        []Variable    `json:"variables,omitempty"`
	Items            any           `json:"items,omitempty"`
	MaxIterations    int           `json:"maxIterations"`
	LoopCounterStart int           `json:"loopCounterStart"`
	DelayMs          int           `json:"delayMs"`
	ErrorHandling    ErrorHandling `json:"errorHandling"`
	LinkedVariableID string        `json:"linkedVariableId,omitempty"`
}

func (l Loop) Cap() int {
	if l.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return l.MaxIterations
}

func (l Loop) Delay() time.Duration {
	if l.DelayMs <= 0 {
		return 0
	}
	return time.Duration(l.DelayMs) * time.Millisecond
}

func (l Loop) ContinueOnError() bool {
	return l.ErrorHandling == ErrorHandlingContinue
}

func (l Loop) LinkedVariable() (Variable, bool) {
	if l.LinkedVariableID == "" {
		return Variable{}, false
	}
	for _, v := range l.Variables {
		if v.ID == l.LinkedVariableID {
			return v, true
		}
	}
	return Variable{}, false
}
