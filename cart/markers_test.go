package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkers(t *testing.T) {
	ctx := context.Background()
	m := NewMarkers(NewMemoryStorage(), "user-1")

	require.NoError(t, m.MarkInFlight(ctx, "order-1"))
	inflight, err := m.InFlight(ctx)
	require.NoError(t, err)
	assert.Equal(t, "order-1", inflight)

	require.NoError(t, m.MarkCompleted(ctx, "order-1"))
	inflight, err = m.InFlight(ctx)
	require.NoError(t, err)
	assert.Empty(t, inflight)

	done, err := m.ConsumeCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, "order-1", done)

	done, err = m.ConsumeCompleted(ctx)
	require.NoError(t, err)
	assert.Empty(t, done, "the completed marker is one-shot")
}
