package escrow

import (
	"github.com/google/btree"

	keeper "github.com/keeperd/keeper"
)

// indexDegree is the branching factor of the party indexes. The value
// follows the usual in-memory btree setups; lookups are dominated by
// the map access anyway.
const indexDegree = 32

type indexEntry struct {
	addr string
	id   uint64
}

func (e indexEntry) Less(than btree.Item) bool {
	o := than.(indexEntry)
	if e.addr != o.addr {
		return e.addr < o.addr
	}
	return e.id < o.id
}

// partyIndex keeps an ordered (address, id) index over escrows so that
// per-party listings come back sorted by id without scanning the whole
// table. Entries are only ever inserted: parties are immutable and no
// escrow is deleted.
type partyIndex struct {
	bt *btree.BTree
}

func newPartyIndex() *partyIndex {
	return &partyIndex{bt: btree.New(indexDegree)}
}

func (x *partyIndex) insert(addr keeper.Address, id uint64) {
	x.bt.ReplaceOrInsert(indexEntry{addr: addr.String(), id: id})
}

func (x *partyIndex) ids(addr keeper.Address) []uint64 {
	key := addr.String()
	var out []uint64
	x.bt.AscendGreaterOrEqual(indexEntry{addr: key}, func(i btree.Item) bool {
		e := i.(indexEntry)
		if e.addr != key {
			return false
		}
		out = append(out, e.id)
		return true
	})
	return out
}
