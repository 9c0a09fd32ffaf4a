package escrow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/keeperd/keeper/keepertest"
)

func TestPartyIndex(t *testing.T) {
	alice := keepertest.NewAddress()
	bob := keepertest.NewAddress()

	idx := newPartyIndex()
	idx.insert(alice, 5)
	idx.insert(bob, 2)
	idx.insert(alice, 1)
	idx.insert(alice, 3)
	idx.insert(alice, 3)

	// Sorted by id, duplicates collapsed, other parties excluded.
	assert.Equal(t, []uint64{1, 3, 5}, idx.ids(alice))
	assert.Equal(t, []uint64{2}, idx.ids(bob))
	assert.Empty(t, idx.ids(keepertest.NewAddress()))
}
