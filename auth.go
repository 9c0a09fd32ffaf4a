package keeper

import "context"

// Authenticator is the identity collaborator. It tells the ledger
// whether the caller bound to the context has proven control over an
// address. How that proof is established (signed requests, sessions,
// static grants in tests) is entirely the implementation's concern.
type Authenticator interface {
	HasAddress(ctx context.Context, addr Address) bool
}
