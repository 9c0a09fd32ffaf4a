package cash

import (
	"context"
	"math"
	"sync"

	keeper "github.com/keeperd/keeper"
	"github.com/keeperd/keeper/errors"
)

// Controller is an in-process funds rail keeping wallet balances in
// memory. It is the rail used in tests and in single-node deployments
// that do not settle on an external token.
type Controller struct {
	mu      sync.Mutex
	wallets map[string]int64
}

var _ CoinMover = (*Controller)(nil)
var _ Balancer = (*Controller)(nil)

func NewController() *Controller {
	return &Controller{
		wallets: make(map[string]int64),
	}
}

// MoveCoins moves the given amount from src to dst. If src doesn't
// have sufficient coins, it fails and no balance is changed.
func (c *Controller) MoveCoins(ctx context.Context, src, dst keeper.Address, amount int64) error {
	if amount <= 0 {
		return errors.Wrapf(errors.ErrAmount, "non-positive amount %d", amount)
	}
	if err := src.Validate(); err != nil {
		return errors.Wrap(err, "source")
	}
	if err := dst.Validate(); err != nil {
		return errors.Wrap(err, "destination")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sender := c.wallets[src.String()]
	if sender < amount {
		return errors.Wrapf(errors.ErrInsufficientAmount, "%s holds %d, needs %d", src, sender, amount)
	}
	recipient := c.wallets[dst.String()]
	if recipient > math.MaxInt64-amount {
		return errors.Wrapf(errors.ErrOverflow, "%s balance", dst)
	}
	c.wallets[src.String()] = sender - amount
	c.wallets[dst.String()] = recipient + amount
	return nil
}

// IssueCoins credits the destination address out of thin air. Use it
// to fund accounts in tests and development deployments.
func (c *Controller) IssueCoins(ctx context.Context, dst keeper.Address, amount int64) error {
	if amount <= 0 {
		return errors.Wrapf(errors.ErrAmount, "non-positive amount %d", amount)
	}
	if err := dst.Validate(); err != nil {
		return errors.Wrap(err, "destination")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	recipient := c.wallets[dst.String()]
	if recipient > math.MaxInt64-amount {
		return errors.Wrapf(errors.ErrOverflow, "%s balance", dst)
	}
	c.wallets[dst.String()] = recipient + amount
	return nil
}

// Balance returns the current balance of given address. Unknown
// addresses hold zero.
func (c *Controller) Balance(ctx context.Context, addr keeper.Address) (int64, error) {
	if err := addr.Validate(); err != nil {
		return 0, errors.Wrap(err, "address")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wallets[addr.String()], nil
}
