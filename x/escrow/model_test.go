package escrow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	keeper "github.com/keeperd/keeper"
	"github.com/keeperd/keeper/errors"
	"github.com/keeperd/keeper/keepertest"
)

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusDisputed.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusRefunded.Terminal())
	assert.True(t, StatusResolved.Terminal())
}

func TestEscrowValidate(t *testing.T) {
	buyer := keepertest.NewAddress()
	seller := keepertest.NewAddress()
	timeout := keeper.AsUnixTime(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	valid := Escrow{
		ID:        1,
		Buyer:     buyer,
		Seller:    seller,
		Amount:    100,
		TimeoutAt: timeout,
		CreatedAt: timeout,
		Status:    StatusPending,
	}

	cases := map[string]struct {
		mutate  func(*Escrow)
		wantErr *errors.Error
	}{
		"valid": {
			mutate:  func(*Escrow) {},
			wantErr: nil,
		},
		"zero amount": {
			mutate:  func(e *Escrow) { e.Amount = 0 },
			wantErr: errors.ErrAmount,
		},
		"missing buyer": {
			mutate:  func(e *Escrow) { e.Buyer = nil },
			wantErr: errors.ErrEmpty,
		},
		"short seller": {
			mutate:  func(e *Escrow) { e.Seller = keeper.Address{1, 2, 3} },
			wantErr: errors.ErrInput,
		},
		"buyer is seller": {
			mutate:  func(e *Escrow) { e.Seller = e.Buyer },
			wantErr: errors.ErrParty,
		},
		"zero timeout": {
			mutate:  func(e *Escrow) { e.TimeoutAt = 0 },
			wantErr: errors.ErrDuration,
		},
		"dispute without raiser": {
			mutate:  func(e *Escrow) { e.DisputeRaised = true },
			wantErr: errors.ErrEmpty,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			esc := *valid.Copy()
			tc.mutate(&esc)
			err := esc.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.True(t, tc.wantErr.Is(err), "unexpected error: %+v", err)
			}
		})
	}
}

func TestEscrowCopyIsDeep(t *testing.T) {
	orig := Escrow{
		ID:            7,
		Buyer:         keepertest.NewAddress(),
		Seller:        keepertest.NewAddress(),
		Amount:        42,
		TimeoutAt:     keeper.AsUnixTime(time.Now()),
		CreatedAt:     keeper.AsUnixTime(time.Now()),
		Status:        StatusDisputed,
		DisputeRaised: true,
		DisputeRaiser: keepertest.NewAddress(),
	}
	cpy := orig.Copy()
	require.Equal(t, &orig, cpy)

	cpy.Buyer[0] ^= 0xff
	cpy.DisputeRaiser[0] ^= 0xff
	assert.False(t, orig.Buyer.Equals(cpy.Buyer))
	assert.False(t, orig.DisputeRaiser.Equals(cpy.DisputeRaiser))
}

func TestConditionIsStable(t *testing.T) {
	// Custody addresses are derived, not stored. They must never change
	// between releases or funds become unreachable.
	assert.Equal(t, Condition(1).Address(), Condition(1).Address())
	assert.NotEqual(t, Condition(1).Address(), Condition(2).Address())
	assert.Equal(t, "escrow/seq/0000000000000001", Condition(1).String())

	require.NoError(t, FeeCollectorAddress().Validate())
	assert.NotEqual(t, FeeCollectorAddress(), Condition(1).Address())
}
