package escrow

import (
	"context"

	keeper "github.com/keeperd/keeper"
)

// Event is a domain event describing one state transition. One event
// is emitted per successful mutating operation, in commit order per
// escrow.
type Event interface {
	Kind() string
}

// Emitter is the notification sink collaborator. Delivery and display
// are the sink's concern; the ledger never waits for consumers and
// never fails an operation because of them.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// NopEmitter drops all events.
type NopEmitter struct{}

var _ Emitter = NopEmitter{}

func (NopEmitter) Emit(context.Context, Event) {}

type EscrowCreated struct {
	ID      uint64          `json:"id"`
	Buyer   keeper.Address  `json:"buyer"`
	Seller  keeper.Address  `json:"seller"`
	Amount  int64           `json:"amount"`
	Timeout keeper.UnixTime `json:"timeout"`
}

func (EscrowCreated) Kind() string { return "escrow/created" }

type EscrowCompleted struct {
	ID     uint64         `json:"id"`
	Seller keeper.Address `json:"seller"`
	Amount int64          `json:"amount"`
}

func (EscrowCompleted) Kind() string { return "escrow/completed" }

type EscrowRefunded struct {
	ID     uint64         `json:"id"`
	Buyer  keeper.Address `json:"buyer"`
	Amount int64          `json:"amount"`
}

func (EscrowRefunded) Kind() string { return "escrow/refunded" }

type DisputeRaised struct {
	ID     uint64         `json:"id"`
	Raiser keeper.Address `json:"raiser"`
}

func (DisputeRaised) Kind() string { return "escrow/dispute_raised" }

type DisputeResolved struct {
	ID        uint64         `json:"id"`
	Recipient keeper.Address `json:"recipient"`
	ToSeller  bool           `json:"to_seller"`
	Amount    int64          `json:"amount"`
	Fee       int64          `json:"fee"`
}

func (DisputeResolved) Kind() string { return "escrow/dispute_resolved" }

type EscrowCancelled struct {
	ID        uint64         `json:"id"`
	Canceller keeper.Address `json:"canceller"`
}

func (EscrowCancelled) Kind() string { return "escrow/cancelled" }

type AdminUpdated struct {
	Old keeper.Address `json:"old"`
	New keeper.Address `json:"new"`
}

func (AdminUpdated) Kind() string { return "escrow/admin_updated" }

type AdminFeeUpdated struct {
	Old uint32 `json:"old"`
	New uint32 `json:"new"`
}

func (AdminFeeUpdated) Kind() string { return "escrow/admin_fee_updated" }

type AdminFeesWithdrawn struct {
	Admin  keeper.Address `json:"admin"`
	Amount int64          `json:"amount"`
}

func (AdminFeesWithdrawn) Kind() string { return "escrow/admin_fees_withdrawn" }
