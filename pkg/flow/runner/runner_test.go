package runner_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/runner"
)

func TestIterationContextChild(t *testing.T) {
	var root *runner.IterationContext
	outer := root.Child("outer", 2)
	require.Equal(t, []int{2}, outer.IterationPath)
	require.Equal(t, []string{"outer"}, outer.ParentNodes)
	require.Equal(t, 2, outer.ExecutionIndex)

	inner := outer.Child("inner", 0)
	require.Equal(t, []int{2, 0}, inner.IterationPath)
	require.Equal(t, []string{"outer", "inner"}, inner.ParentNodes)

	// Siblings never share backing arrays.
	sibling := outer.Child("inner", 1)
	require.Equal(t, []int{2, 0}, inner.IterationPath)
	require.Equal(t, []int{2, 1}, sibling.IterationPath)
}

func TestFlowStatus(t *testing.T) {
	tests := []struct {
		status runner.FlowStatus
		text   string
		done   bool
	}{
		{runner.FlowStatusPending, "Pending", false},
		{runner.FlowStatusRunning, "Running", false},
		{runner.FlowStatusSucceeded, "Succeeded", true},
		{runner.FlowStatusFailed, "Failed", true},
		{runner.FlowStatusCancelled, "Cancelled", true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.text, tt.status.String())
			b, err := tt.status.MarshalText()
			require.NoError(t, err)
			assert.Equal(t, tt.text, string(b))
			assert.Equal(t, tt.done, runner.IsFlowStatusDone(tt.status))
		})
	}
}

func TestIsCancellationError(t *testing.T) {
	require.False(t, runner.IsCancellationError(nil))
	require.False(t, runner.IsCancellationError(errors.New("boom")))
	require.True(t, runner.IsCancellationError(context.Canceled))
	require.True(t, runner.IsCancellationError(fmt.Errorf("wrapped: %w", runner.ErrFlowCanceledByThrow)))
	require.False(t, runner.IsCancellationError(context.DeadlineExceeded))
}

func TestOutcomeLookups(t *testing.T) {
	o := runner.Outcome{VisitedNodeIDs: []string{"a", "b"}, FailedNodeIDs: []string{"b"}}
	require.True(t, o.Visited("a"))
	require.False(t, o.Visited("c"))
	require.True(t, o.Failed("b"))
	require.False(t, o.Failed("a"))
}
