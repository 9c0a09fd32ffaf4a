package keepertest

import (
	"context"
	"fmt"

	keeper "github.com/keeperd/keeper"
)

// Auth is a mock implementing the keeper.Authenticator interface.
//
// This structure authenticates any of the referenced addresses. You
// can use either Signer or Signers (or both) attributes. This is for
// convenience and each time all signers (regardless which attribute)
// are considered.
type Auth struct {
	// Signer represents an authentication of a single signer. This is
	// a convenience attribute when a single caller is enough.
	Signer keeper.Address

	// Signers represents an authentication of multiple signers.
	Signers []keeper.Address
}

var _ keeper.Authenticator = (*Auth)(nil)

func (a *Auth) HasAddress(ctx context.Context, addr keeper.Address) bool {
	for _, s := range a.Signers {
		if addr.Equals(s) {
			return true
		}
	}
	if a.Signer == nil {
		return false
	}
	return addr.Equals(a.Signer)
}

// CtxAuth is a mock implementing the keeper.Authenticator interface.
//
// This implementation is using the context to store and retrieve the
// authenticated addresses.
type CtxAuth struct {
	// Key used to set and retrieve addresses from the context. For
	// convenience only string type keys are allowed.
	Key string
}

var _ keeper.Authenticator = (*CtxAuth)(nil)

func (a *CtxAuth) SetAddresses(ctx context.Context, addrs ...keeper.Address) context.Context {
	return context.WithValue(ctx, a.Key, addrs)
}

func (a *CtxAuth) HasAddress(ctx context.Context, addr keeper.Address) bool {
	val := ctx.Value(a.Key)
	if val == nil {
		return false
	}
	addrs, ok := val.([]keeper.Address)
	if !ok {
		panic(fmt.Sprintf("instead of []keeper.Address got %T", val))
	}
	for _, s := range addrs {
		if addr.Equals(s) {
			return true
		}
	}
	return false
}
