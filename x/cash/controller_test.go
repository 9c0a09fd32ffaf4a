package cash

import (
	"context"
	"math"
	"testing"

	keeper "github.com/keeperd/keeper"
	"github.com/keeperd/keeper/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(b byte) keeper.Address {
	a := make(keeper.Address, keeper.AddressLength)
	a[0] = b
	return a
}

func TestControllerMoveCoins(t *testing.T) {
	ctx := context.Background()
	a := addr(1)
	b := addr(2)

	c := NewController()
	require.NoError(t, c.IssueCoins(ctx, a, 100))

	require.NoError(t, c.MoveCoins(ctx, a, b, 40))

	balA, err := c.Balance(ctx, a)
	require.NoError(t, err)
	balB, err := c.Balance(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, int64(60), balA)
	assert.Equal(t, int64(40), balB)
}

func TestControllerMoveCoinsRejections(t *testing.T) {
	ctx := context.Background()
	a := addr(1)
	b := addr(2)

	c := NewController()
	require.NoError(t, c.IssueCoins(ctx, a, 10))

	cases := map[string]struct {
		src, dst keeper.Address
		amount   int64
		wantErr  *errors.Error
	}{
		"zero amount":        {src: a, dst: b, amount: 0, wantErr: errors.ErrAmount},
		"negative amount":    {src: a, dst: b, amount: -4, wantErr: errors.ErrAmount},
		"insufficient funds": {src: a, dst: b, amount: 11, wantErr: errors.ErrInsufficientAmount},
		"unknown source":     {src: addr(9), dst: b, amount: 1, wantErr: errors.ErrInsufficientAmount},
		"malformed source":   {src: keeper.Address{1, 2}, dst: b, amount: 1, wantErr: errors.ErrInput},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			err := c.MoveCoins(ctx, tc.src, tc.dst, tc.amount)
			assert.True(t, tc.wantErr.Is(err), "unexpected error: %+v", err)

			// A rejected move must not change any balance.
			bal, berr := c.Balance(ctx, a)
			require.NoError(t, berr)
			assert.Equal(t, int64(10), bal)
		})
	}
}

func TestControllerOverflow(t *testing.T) {
	ctx := context.Background()
	a := addr(1)
	b := addr(2)

	c := NewController()
	require.NoError(t, c.IssueCoins(ctx, a, math.MaxInt64))
	require.NoError(t, c.IssueCoins(ctx, b, 1))

	err := c.MoveCoins(ctx, a, b, math.MaxInt64)
	assert.True(t, errors.ErrOverflow.Is(err))

	err = c.IssueCoins(ctx, a, 1)
	assert.True(t, errors.ErrOverflow.Is(err))
}
