/*
Package keepertest provides mocks and helpers used through the tests of
all ledger extensions.
*/
package keepertest
