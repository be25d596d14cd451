//nolint:revive // exported
package runner

import (
	"context"
	"errors"
)

// ErrFlowCanceledByThrow marks an intentional cancellation raised by a node.
// Nodes returning it are reported as Canceled rather than Failure.
var ErrFlowCanceledByThrow = errors.New("flow canceled by throw")

// IsCancellationError reports explicit throws and context cancellation.
func IsCancellationError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrFlowCanceledByThrow) || errors.Is(err, context.Canceled)
}
