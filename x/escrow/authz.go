package escrow

import (
	"context"

	keeper "github.com/keeperd/keeper"
)

// operation enumerates the mutating escrow transitions gated by
// authorize. Administrative ledger operations (fee, admin transfer)
// are gated by isAdmin directly since they have no escrow.
type operation uint8

const (
	opConfirm operation = iota
	opRefund
	opAutoRefund
	opDispute
	opCancel
	opResolve
	opAdminRelease
	opAdminRefund
)

// authorize reports whether the caller authenticated in ctx may run
// the given operation on the escrow. All role checks live here so the
// mapping from operation to required party can be read (and tested) in
// one place.
func (l *Ledger) authorize(ctx context.Context, op operation, esc *Escrow) bool {
	switch op {
	case opConfirm, opRefund:
		return l.auth.HasAddress(ctx, esc.Buyer)
	case opAutoRefund:
		// Anyone may push a timed out escrow back to the buyer.
		return true
	case opDispute:
		return l.auth.HasAddress(ctx, esc.Buyer) || l.auth.HasAddress(ctx, esc.Seller)
	case opCancel:
		return l.policy(ctx, l.auth, esc)
	case opResolve, opAdminRelease, opAdminRefund:
		return l.isAdmin(ctx)
	}
	return false
}

// CancelPolicy decides whether the caller authenticated in ctx may
// cancel the escrow in its current state. The policy is an explicit
// constructor argument of the ledger, never an ambient default, so
// deployments state their cancellation rule in one visible place.
type CancelPolicy func(ctx context.Context, auth keeper.Authenticator, esc *Escrow) bool

// SellerCancelPolicy permits only the seller to cancel, and only while
// the escrow is still pending. A seller waiving the agreement returns
// the funds to the buyer; a buyer-side cancel would bypass the timeout
// window that protects the seller, so it is not allowed here.
func SellerCancelPolicy(ctx context.Context, auth keeper.Authenticator, esc *Escrow) bool {
	return esc.Status == StatusPending && auth.HasAddress(ctx, esc.Seller)
}

// BuyerOrSellerCancelPolicy permits either party to cancel a pending
// escrow. Deployments choosing this rule accept that a buyer can exit
// before the timeout.
func BuyerOrSellerCancelPolicy(ctx context.Context, auth keeper.Authenticator, esc *Escrow) bool {
	if esc.Status != StatusPending {
		return false
	}
	return auth.HasAddress(ctx, esc.Buyer) || auth.HasAddress(ctx, esc.Seller)
}
