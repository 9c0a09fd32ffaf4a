/*
Package cash defines the funds transfer rail the escrow ledger settles
through, and ships an in-process implementation of it.

The ledger trusts the rail completely: a nil error means the amount
moved, any error means nothing moved. The in-process Controller keeps
that contract by validating everything before touching balances.
*/
package cash
