/*
Package errors implements classified errors for the escrow ledger.

Every error returned to a caller wraps exactly one registered root
error. Roots carry a stable numeric code that API surfaces may expose,
while the wrapping layers add human readable context and a stack trace
for the logs.
*/
package errors
