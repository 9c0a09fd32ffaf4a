package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keeperd/keeper/keepertest"
	"github.com/keeperd/keeper/x/escrow"
)

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	ctx := context.Background()

	rec.Emit(ctx, escrow.EscrowCreated{ID: 1, Buyer: keepertest.NewAddress()})
	rec.Emit(ctx, escrow.EscrowCompleted{ID: 1})

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "escrow/created", events[0].Kind())
	assert.Equal(t, "escrow/completed", events[1].Kind())

	// The snapshot is detached from further emissions.
	rec.Emit(ctx, escrow.EscrowRefunded{ID: 2})
	assert.Len(t, events, 2)
	assert.Len(t, rec.Events(), 3)
}

func TestMulti(t *testing.T) {
	first := NewRecorder()
	second := NewRecorder()

	m := Multi(first, second)
	m.Emit(context.Background(), escrow.DisputeRaised{ID: 4})

	require.Len(t, first.Events(), 1)
	require.Len(t, second.Events(), 1)
	assert.Equal(t, "escrow/dispute_raised", first.Events()[0].Kind())
}
