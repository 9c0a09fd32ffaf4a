/*
Package escrow implements the settlement ledger for two-party payments
held by a neutral custodian.

Every escrow walks a single state machine:

	Pending -> Completed   buyer confirmed, funds to seller
	Pending -> Refunded    deadline passed (or cancelled), funds to buyer
	Pending -> Disputed    either party raised a dispute
	Disputed -> Resolved   arbitration by the admin, fee retained

Completed, Refunded and Resolved are terminal; a terminal escrow is
never mutated again. Funds sit on a per-escrow custody account from
creation until the escrow leaves the Pending/Disputed states.
*/
package escrow
