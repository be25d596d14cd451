package idwrap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/idwrap"
)

func TestNewMonotonicOrdering(t *testing.T) {
	prev := idwrap.NewMonotonic()
	for i := 0; i < 100; i++ {
		next := idwrap.NewMonotonic()
		require.Equal(t, -1, prev.Compare(next))
		prev = next
	}
}

func TestTextRoundTrip(t *testing.T) {
	id := idwrap.NewNow()
	parsed, err := idwrap.NewText(id.String())
	require.NoError(t, err)
	require.Equal(t, 0, id.Compare(parsed))
	require.False(t, parsed.IsZero())

	var zero idwrap.IDWrap
	require.True(t, zero.IsZero())

	_, err = idwrap.NewText("not-a-ulid")
	require.Error(t, err)
}
