package escrow

import (
	"encoding/binary"
	"fmt"

	keeper "github.com/keeperd/keeper"
	"github.com/keeperd/keeper/errors"
)

// Status is the settlement state of an escrow. Exactly one status
// holds at any time.
type Status uint8

const (
	StatusPending Status = iota
	StatusCompleted
	StatusRefunded
	StatusDisputed
	StatusResolved
)

// Terminal reports whether no transition can ever leave this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRefunded, StatusResolved:
		return true
	}
	return false
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCompleted:
		return "completed"
	case StatusRefunded:
		return "refunded"
	case StatusDisputed:
		return "disputed"
	case StatusResolved:
		return "resolved"
	}
	return fmt.Sprintf("invalid(%d)", uint8(s))
}

// Escrow is a single custody agreement between a buyer and a seller.
//
// Buyer, Seller, Amount, TimeoutAt and CreatedAt are immutable after
// creation. DisputeRaised is sticky: once set it is never cleared, and
// DisputeRaiser is written exactly once together with it. Status is
// mutated only by the Ledger under the per-escrow lock.
type Escrow struct {
	ID             uint64          `json:"id"`
	Buyer          keeper.Address  `json:"buyer"`
	Seller         keeper.Address  `json:"seller"`
	Amount         int64           `json:"amount"`
	TimeoutAt      keeper.UnixTime `json:"timeout_at"`
	CreatedAt      keeper.UnixTime `json:"created_at"`
	Status         Status          `json:"status"`
	BuyerConfirmed bool            `json:"buyer_confirmed"`
	DisputeRaised  bool            `json:"dispute_raised"`
	DisputeRaiser  keeper.Address  `json:"dispute_raiser,omitempty"`
}

// Validate ensures the escrow is valid.
func (e *Escrow) Validate() error {
	if e.Amount <= 0 {
		return errors.Wrapf(errors.ErrAmount, "non-positive amount %d", e.Amount)
	}
	if err := e.Buyer.Validate(); err != nil {
		return errors.Wrap(err, "buyer")
	}
	if err := e.Seller.Validate(); err != nil {
		return errors.Wrap(err, "seller")
	}
	if e.Buyer.Equals(e.Seller) {
		return errors.Wrap(errors.ErrParty, "buyer and seller are the same account")
	}
	if e.TimeoutAt.IsZero() {
		// Zero timeout is a valid value that dates to 1970-01-01. We
		// know that this value is in the past and makes no sense. Most
		// likely value was not provided and a zero value remained.
		return errors.Wrap(errors.ErrDuration, "timeout is required")
	}
	if err := e.TimeoutAt.Validate(); err != nil {
		return errors.Wrap(err, "invalid timeout value")
	}
	if e.DisputeRaised {
		if err := e.DisputeRaiser.Validate(); err != nil {
			return errors.Wrap(err, "dispute raiser")
		}
	}
	return nil
}

// Copy returns an escrow that shares no memory with the original.
func (e *Escrow) Copy() *Escrow {
	cpy := *e
	cpy.Buyer = e.Buyer.Clone()
	cpy.Seller = e.Seller.Clone()
	cpy.DisputeRaiser = e.DisputeRaiser.Clone()
	return &cpy
}

// Condition names the custody account holding the funds of the escrow
// with given id.
func Condition(id uint64) keeper.Condition {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, id)
	return keeper.NewCondition("escrow", "seq", bz)
}

// custodyAddress is the account the escrow's funds sit on while the
// escrow is live.
func custodyAddress(id uint64) keeper.Address {
	return Condition(id).Address()
}

// FeeCollectorAddress is the account arbitration fees accumulate on
// until the admin withdraws them.
func FeeCollectorAddress() keeper.Address {
	return keeper.NewCondition("escrow", "fees", []byte("arbitration")).Address()
}
