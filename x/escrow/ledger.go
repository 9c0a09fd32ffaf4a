package escrow

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	keeper "github.com/keeperd/keeper"
	"github.com/keeperd/keeper/errors"
	"github.com/keeperd/keeper/x/cash"
)

const (
	// MinTimeoutDays and MaxTimeoutDays bound the duration a buyer can
	// lock funds for.
	MinTimeoutDays = 1
	MaxTimeoutDays = 365

	// MaxFeePercent bounds the arbitration fee.
	MaxFeePercent = 100
)

// Ledger owns the set of all escrows and is the only writer of escrow
// state. All mutating operations on one escrow are serialized by a per
// escrow lock; operations on different escrows proceed in parallel.
type Ledger struct {
	auth   keeper.Authenticator
	bank   cash.CoinMover
	clock  keeper.Clock
	events Emitter
	policy CancelPolicy

	mu       sync.RWMutex
	escrows  map[uint64]*record
	byBuyer  *partyIndex
	bySeller *partyIndex

	nextID atomic.Uint64

	// The fee ledger is the only cross-escrow mutable state besides the
	// id sequence. It has its own lock so escrow transitions never
	// contend on it.
	feeMu      sync.Mutex
	admin      keeper.Address
	feePercent uint32
	collected  int64
}

// record pairs an escrow with the lock serializing its transitions.
type record struct {
	mu  sync.Mutex
	esc Escrow
}

type Option func(*Ledger)

// WithEmitter routes domain events to the given sink.
func WithEmitter(e Emitter) Option {
	return func(l *Ledger) { l.events = e }
}

// WithCancelPolicy replaces the default SellerCancelPolicy.
func WithCancelPolicy(p CancelPolicy) Option {
	return func(l *Ledger) { l.policy = p }
}

// NewLedger creates an empty ledger. The admin account arbitrates
// disputes and administers fees until it transfers that authority.
func NewLedger(auth keeper.Authenticator, bank cash.CoinMover, clock keeper.Clock, admin keeper.Address, feePercent uint32, opts ...Option) (*Ledger, error) {
	if auth == nil || bank == nil || clock == nil {
		return nil, errors.Wrap(errors.ErrInput, "authenticator, rail and clock are required")
	}
	if err := admin.Validate(); err != nil {
		return nil, errors.Wrap(err, "admin")
	}
	if feePercent > MaxFeePercent {
		return nil, errors.Wrapf(errors.ErrFee, "%d%% outside 0-%d", feePercent, MaxFeePercent)
	}
	l := &Ledger{
		auth:       auth,
		bank:       bank,
		clock:      clock,
		events:     NopEmitter{},
		policy:     SellerCancelPolicy,
		escrows:    make(map[uint64]*record),
		byBuyer:    newPartyIndex(),
		bySeller:   newPartyIndex(),
		admin:      admin.Clone(),
		feePercent: feePercent,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Create opens a new escrow and moves the amount from the buyer to the
// escrow's custody account. The caller must be the buyer. It returns
// the id of the new escrow.
func (l *Ledger) Create(ctx context.Context, buyer, seller keeper.Address, amount int64, timeoutDays int) (uint64, error) {
	if amount <= 0 {
		return 0, errors.Wrapf(errors.ErrAmount, "non-positive amount %d", amount)
	}
	if err := buyer.Validate(); err != nil {
		return 0, errors.Wrap(err, "buyer")
	}
	if err := seller.Validate(); err != nil {
		return 0, errors.Wrap(err, "seller")
	}
	if buyer.Equals(seller) {
		return 0, errors.Wrap(errors.ErrParty, "buyer and seller are the same account")
	}
	if timeoutDays < MinTimeoutDays || timeoutDays > MaxTimeoutDays {
		return 0, errors.Wrapf(errors.ErrDuration, "%d days outside %d-%d", timeoutDays, MinTimeoutDays, MaxTimeoutDays)
	}
	if !l.auth.HasAddress(ctx, buyer) {
		return 0, errors.Wrap(errors.ErrUnauthorized, "escrow must be created by the buyer")
	}

	now := l.clock.Now()
	id := l.nextID.Add(1)
	esc := Escrow{
		ID:        id,
		Buyer:     buyer.Clone(),
		Seller:    seller.Clone(),
		Amount:    amount,
		TimeoutAt: now.Add(time.Duration(timeoutDays) * 24 * time.Hour),
		CreatedAt: now,
		Status:    StatusPending,
	}
	if err := esc.Validate(); err != nil {
		return 0, err
	}

	if err := l.bank.MoveCoins(ctx, buyer, custodyAddress(id), amount); err != nil {
		return 0, errors.Wrapf(errors.ErrTransfer, "fund escrow %d: %s", id, err)
	}

	l.mu.Lock()
	l.escrows[id] = &record{esc: esc}
	l.byBuyer.insert(esc.Buyer, id)
	l.bySeller.insert(esc.Seller, id)
	l.mu.Unlock()

	l.events.Emit(ctx, EscrowCreated{
		ID:      id,
		Buyer:   esc.Buyer,
		Seller:  esc.Seller,
		Amount:  amount,
		Timeout: esc.TimeoutAt,
	})
	return id, nil
}

// ConfirmCompletion releases the full amount to the seller. Only the
// buyer may confirm, and only while the escrow is pending.
func (l *Ledger) ConfirmCompletion(ctx context.Context, id uint64) error {
	rec, err := l.record(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	esc := &rec.esc
	if !l.authorize(ctx, opConfirm, esc) {
		return errors.Wrapf(errors.ErrUnauthorized, "only the buyer may confirm escrow %d", id)
	}
	if esc.Status != StatusPending {
		return errStatus(esc)
	}

	if err := l.bank.MoveCoins(ctx, custodyAddress(id), esc.Seller, esc.Amount); err != nil {
		return errors.Wrapf(errors.ErrTransfer, "pay seller: %s", err)
	}
	esc.Status = StatusCompleted
	esc.BuyerConfirmed = true

	l.events.Emit(ctx, EscrowCompleted{ID: id, Seller: esc.Seller, Amount: esc.Amount})
	return nil
}

// Refund returns the full amount to the buyer once the timeout has
// elapsed. Only the buyer may call it; this is the buyer's unilateral
// exit, gated by the deadline that protects the seller.
func (l *Ledger) Refund(ctx context.Context, id uint64) error {
	return l.refundTimedOut(ctx, id, opRefund)
}

// AutoRefund is the permissionless variant of Refund: once the escrow
// has timed out anyone may push the funds back to the buyer.
func (l *Ledger) AutoRefund(ctx context.Context, id uint64) error {
	return l.refundTimedOut(ctx, id, opAutoRefund)
}

func (l *Ledger) refundTimedOut(ctx context.Context, id uint64, op operation) error {
	rec, err := l.record(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	esc := &rec.esc
	if !l.authorize(ctx, op, esc) {
		return errors.Wrapf(errors.ErrUnauthorized, "only the buyer may reclaim escrow %d", id)
	}
	if esc.Status != StatusPending {
		return errStatus(esc)
	}
	if now := l.clock.Now(); now < esc.TimeoutAt {
		return errors.Wrapf(errors.ErrNotExpired, "escrow %d locked until %s", id, esc.TimeoutAt)
	}

	if err := l.bank.MoveCoins(ctx, custodyAddress(id), esc.Buyer, esc.Amount); err != nil {
		return errors.Wrapf(errors.ErrTransfer, "refund buyer: %s", err)
	}
	esc.Status = StatusRefunded

	l.events.Emit(ctx, EscrowRefunded{ID: id, Buyer: esc.Buyer, Amount: esc.Amount})
	return nil
}

// RaiseDispute freezes a pending escrow until the admin arbitrates.
// Either party may raise it, once per escrow.
func (l *Ledger) RaiseDispute(ctx context.Context, id uint64) error {
	rec, err := l.record(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	esc := &rec.esc
	if !l.authorize(ctx, opDispute, esc) {
		return errors.Wrapf(errors.ErrUnauthorized, "only a party to escrow %d may dispute it", id)
	}
	// A second dispute lands here as well: a disputed escrow is no
	// longer pending.
	if esc.Status != StatusPending {
		return errStatus(esc)
	}

	raiser := esc.Seller
	if l.auth.HasAddress(ctx, esc.Buyer) {
		raiser = esc.Buyer
	}
	esc.Status = StatusDisputed
	esc.DisputeRaised = true
	esc.DisputeRaiser = raiser.Clone()

	l.events.Emit(ctx, DisputeRaised{ID: id, Raiser: raiser})
	return nil
}

// ResolveDispute is the only path out of the Disputed state. The admin
// awards the payout to the seller or back to the buyer; the ledger
// retains fee = amount * feePercent / 100 (truncating) and pays out
// exactly amount - fee, so fee + payout == amount always holds.
func (l *Ledger) ResolveDispute(ctx context.Context, id uint64, toSeller bool) error {
	rec, err := l.record(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	esc := &rec.esc
	if !l.authorize(ctx, opResolve, esc) {
		return errors.Wrapf(errors.ErrUnauthorized, "only the admin may arbitrate escrow %d", id)
	}
	if esc.Status != StatusDisputed {
		return errStatus(esc)
	}

	l.feeMu.Lock()
	pct := l.feePercent
	l.feeMu.Unlock()

	fee := arbitrationFee(esc.Amount, pct)
	payout := esc.Amount - fee
	recipient := esc.Buyer
	if toSeller {
		recipient = esc.Seller
	}
	custody := custodyAddress(id)

	if payout > 0 {
		if err := l.bank.MoveCoins(ctx, custody, recipient, payout); err != nil {
			return errors.Wrapf(errors.ErrTransfer, "pay out: %s", err)
		}
	}
	if fee > 0 {
		if err := l.bank.MoveCoins(ctx, custody, FeeCollectorAddress(), fee); err != nil {
			// Return the payout so the escrow stays fully funded.
			if payout > 0 {
				if rbErr := l.bank.MoveCoins(ctx, recipient, custody, payout); rbErr != nil {
					return errors.Wrapf(errors.ErrTransfer, "collect fee: %s (payout rollback failed: %s)", err, rbErr)
				}
			}
			return errors.Wrapf(errors.ErrTransfer, "collect fee: %s", err)
		}
		l.feeMu.Lock()
		l.collected += fee
		l.feeMu.Unlock()
	}
	esc.Status = StatusResolved

	l.events.Emit(ctx, DisputeResolved{
		ID:        id,
		Recipient: recipient,
		ToSeller:  toSeller,
		Amount:    payout,
		Fee:       fee,
	})
	return nil
}

// AdminRelease pays the seller the full amount, bypassing buyer
// confirmation. No fee is taken. Pending escrows only; a disputed
// escrow must go through ResolveDispute.
func (l *Ledger) AdminRelease(ctx context.Context, id uint64) error {
	return l.adminSettle(ctx, id, opAdminRelease)
}

// AdminRefund returns the buyer the full amount, bypassing the
// timeout. No fee is taken. Pending escrows only.
func (l *Ledger) AdminRefund(ctx context.Context, id uint64) error {
	return l.adminSettle(ctx, id, opAdminRefund)
}

func (l *Ledger) adminSettle(ctx context.Context, id uint64, op operation) error {
	rec, err := l.record(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	esc := &rec.esc
	if !l.authorize(ctx, op, esc) {
		return errors.Wrapf(errors.ErrUnauthorized, "only the admin may settle escrow %d", id)
	}
	if esc.Status != StatusPending {
		return errStatus(esc)
	}

	if op == opAdminRelease {
		if err := l.bank.MoveCoins(ctx, custodyAddress(id), esc.Seller, esc.Amount); err != nil {
			return errors.Wrapf(errors.ErrTransfer, "pay seller: %s", err)
		}
		esc.Status = StatusCompleted
		l.events.Emit(ctx, EscrowCompleted{ID: id, Seller: esc.Seller, Amount: esc.Amount})
		return nil
	}

	if err := l.bank.MoveCoins(ctx, custodyAddress(id), esc.Buyer, esc.Amount); err != nil {
		return errors.Wrapf(errors.ErrTransfer, "refund buyer: %s", err)
	}
	esc.Status = StatusRefunded
	l.events.Emit(ctx, EscrowRefunded{ID: id, Buyer: esc.Buyer, Amount: esc.Amount})
	return nil
}

// Cancel refunds the buyer in full before the timeout, if the cancel
// policy permits the caller to do so.
func (l *Ledger) Cancel(ctx context.Context, id uint64) error {
	rec, err := l.record(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	esc := &rec.esc
	if esc.Status != StatusPending {
		return errStatus(esc)
	}
	if !l.authorize(ctx, opCancel, esc) {
		return errors.Wrapf(errors.ErrUnauthorized, "cancel of escrow %d not permitted", id)
	}

	canceller := esc.Buyer
	if l.auth.HasAddress(ctx, esc.Seller) {
		canceller = esc.Seller
	}
	if err := l.bank.MoveCoins(ctx, custodyAddress(id), esc.Buyer, esc.Amount); err != nil {
		return errors.Wrapf(errors.ErrTransfer, "refund buyer: %s", err)
	}
	esc.Status = StatusRefunded

	l.events.Emit(ctx, EscrowCancelled{ID: id, Canceller: canceller})
	return nil
}

// UpdateFeePercent sets the arbitration fee percentage. Admin only.
func (l *Ledger) UpdateFeePercent(ctx context.Context, percent uint32) error {
	if !l.isAdmin(ctx) {
		return errors.Wrap(errors.ErrUnauthorized, "only the admin may change the arbitration fee")
	}
	if percent > MaxFeePercent {
		return errors.Wrapf(errors.ErrFee, "%d%% outside 0-%d", percent, MaxFeePercent)
	}

	l.feeMu.Lock()
	old := l.feePercent
	l.feePercent = percent
	l.feeMu.Unlock()

	l.events.Emit(ctx, AdminFeeUpdated{Old: old, New: percent})
	return nil
}

// WithdrawFees moves all collected arbitration fees to the admin
// account and resets the accumulator. It returns the amount moved.
func (l *Ledger) WithdrawFees(ctx context.Context) (int64, error) {
	if !l.isAdmin(ctx) {
		return 0, errors.Wrap(errors.ErrUnauthorized, "only the admin may withdraw fees")
	}

	l.feeMu.Lock()
	defer l.feeMu.Unlock()

	if l.collected == 0 {
		return 0, errors.Wrap(errors.ErrEmpty, "no fees collected")
	}
	if err := l.bank.MoveCoins(ctx, FeeCollectorAddress(), l.admin, l.collected); err != nil {
		return 0, errors.Wrapf(errors.ErrTransfer, "withdraw fees: %s", err)
	}
	amount := l.collected
	l.collected = 0

	l.events.Emit(ctx, AdminFeesWithdrawn{Admin: l.admin, Amount: amount})
	return amount, nil
}

// TransferAdmin hands arbitration and fee authority to a new account.
func (l *Ledger) TransferAdmin(ctx context.Context, newAdmin keeper.Address) error {
	if !l.isAdmin(ctx) {
		return errors.Wrap(errors.ErrUnauthorized, "only the admin may transfer authority")
	}
	if err := newAdmin.Validate(); err != nil {
		return errors.Wrap(err, "new admin")
	}

	l.feeMu.Lock()
	old := l.admin
	l.admin = newAdmin.Clone()
	l.feeMu.Unlock()

	l.events.Emit(ctx, AdminUpdated{Old: old, New: newAdmin})
	return nil
}

// GetEscrow returns a copy of the escrow with given id.
func (l *Ledger) GetEscrow(id uint64) (*Escrow, error) {
	rec, err := l.record(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.esc.Copy(), nil
}

// ByBuyer returns copies of all escrows with given buyer, ordered by id.
func (l *Ledger) ByBuyer(addr keeper.Address) []*Escrow {
	return l.listParty(l.byBuyer, addr)
}

// BySeller returns copies of all escrows with given seller, ordered by id.
func (l *Ledger) BySeller(addr keeper.Address) []*Escrow {
	return l.listParty(l.bySeller, addr)
}

func (l *Ledger) listParty(idx *partyIndex, addr keeper.Address) []*Escrow {
	l.mu.RLock()
	ids := idx.ids(addr)
	recs := make([]*record, 0, len(ids))
	for _, id := range ids {
		recs = append(recs, l.escrows[id])
	}
	l.mu.RUnlock()

	out := make([]*Escrow, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		out = append(out, rec.esc.Copy())
		rec.mu.Unlock()
	}
	return out
}

// IsTimedOut reports whether the escrow is pending and its deadline
// has passed, i.e. whether Refund would no longer fail on the timeout.
func (l *Ledger) IsTimedOut(id uint64) (bool, error) {
	rec, err := l.record(id)
	if err != nil {
		return false, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.esc.Status == StatusPending && l.clock.Now() >= rec.esc.TimeoutAt, nil
}

// CanCancel reports whether the caller authenticated in ctx may cancel
// the escrow under the configured policy.
func (l *Ledger) CanCancel(ctx context.Context, id uint64) (bool, error) {
	rec, err := l.record(id)
	if err != nil {
		return false, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return l.policy(ctx, l.auth, &rec.esc), nil
}

// NextID returns the id the next created escrow will be assigned.
func (l *Ledger) NextID() uint64 {
	return l.nextID.Load() + 1
}

// FeeState returns the current admin, fee percentage and the amount of
// collected, not yet withdrawn fees.
func (l *Ledger) FeeState() (keeper.Address, uint32, int64) {
	l.feeMu.Lock()
	defer l.feeMu.Unlock()
	return l.admin.Clone(), l.feePercent, l.collected
}

func (l *Ledger) record(id uint64) (*record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.escrows[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "escrow %d", id)
	}
	return rec, nil
}

func (l *Ledger) isAdmin(ctx context.Context) bool {
	l.feeMu.Lock()
	admin := l.admin
	l.feeMu.Unlock()
	return l.auth.HasAddress(ctx, admin)
}

func errStatus(esc *Escrow) error {
	return errors.Wrapf(errors.ErrState, "escrow %d is %s", esc.ID, esc.Status)
}

// arbitrationFee computes amount * percent / 100 with truncating
// division, split so the product cannot overflow int64. Because
// percent is at most 100 the fee never exceeds the amount.
func arbitrationFee(amount int64, percent uint32) int64 {
	p := int64(percent)
	return amount/100*p + amount%100*p/100
}
