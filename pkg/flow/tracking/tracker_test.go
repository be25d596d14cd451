package tracking

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVariableTracker_TrackReadWrite(t *testing.T) {
	tracker := NewVariableTracker()

	tracker.TrackRead("fetch.items", []any{"a", "b"})
	tracker.TrackRead("env.TOKEN", "secret")
	tracker.TrackWrite("fetch", map[string]any{"success": true})

	reads := tracker.GetReadVars()
	require.Len(t, reads, 2)
	require.Equal(t, "secret", reads["env.TOKEN"])

	writes := tracker.GetWrittenVars()
	require.Len(t, writes, 1)
	require.Equal(t, map[string]any{"success": true}, writes["fetch"])
}

func TestVariableTracker_NilTracker(t *testing.T) {
	var tracker *VariableTracker

	tracker.TrackRead("key", "value")
	tracker.TrackWrite("key", "value")

	require.Empty(t, tracker.GetReadVars())
	require.Empty(t, tracker.GetWrittenVars())
}

func TestVariableTracker_DeepCopy(t *testing.T) {
	tracker := NewVariableTracker()
	original := map[string]any{"nested": []any{1, 2, 3}}
	tracker.TrackRead("complex", original)

	original["nested"].([]any)[0] = 99

	reads := tracker.GetReadVars()
	require.Equal(t, 1, reads["complex"].(map[string]any)["nested"].([]any)[0])
}

func TestVariableTracker_Tree(t *testing.T) {
	tracker := NewVariableTracker()
	tracker.TrackRead("fetch.body.count", 3)
	tracker.TrackRead("fetch.status", 200)
	tracker.TrackRead("limit", 10)

	tree := tracker.GetReadVarsAsTree()
	require.Equal(t, map[string]any{
		"fetch": map[string]any{
			"body":   map[string]any{"count": 3},
			"status": 200,
		},
		"limit": 10,
	}, tree)
}

func TestVariableTracker_Concurrent(t *testing.T) {
	tracker := NewVariableTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tracker.TrackRead(fmt.Sprintf("key%d", i), i)
		}(i)
	}
	wg.Wait()
	require.Len(t, tracker.GetReadVars(), 50)
}
