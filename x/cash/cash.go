package cash

import (
	"context"

	keeper "github.com/keeperd/keeper"
)

// CoinMover is the funds transfer rail. Amounts are integers in the
// smallest unit of the settlement token.
//
// MoveCoins must be all-or-nothing: on error no balance may have
// changed. The escrow ledger relies on this to keep state transitions
// and fund movements atomic.
type CoinMover interface {
	MoveCoins(ctx context.Context, src, dst keeper.Address, amount int64) error
}

// Balancer is implemented by rails that can report account balances.
// It is optional; the ledger itself never needs it, but tests and
// operational tooling do.
type Balancer interface {
	Balance(ctx context.Context, addr keeper.Address) (int64, error)
}
