/*
Package keeper defines the common vocabulary shared by all escrow
ledger extensions: account addresses, conditions naming system-owned
accounts, second-precision time, and the interfaces of the external
collaborators (clock and authenticator).

The settlement state machine lives in x/escrow. Funds movement is
delegated to a rail implementing x/cash.CoinMover. Caller identity is
delegated to an Authenticator; the ledger never inspects credentials
itself, it only asks whether the caller controls a given address.
*/
package keeper
