package domain

import "errors"

var (
	ErrValidation     = errors.New("invalid order")
	ErrNotFound       = errors.New("item not found")
	ErrBuild          = errors.New("transaction build failed")
	ErrSigning        = errors.New("signing failed")
	ErrSubmission     = errors.New("submission rejected")
	ErrConfirmation   = errors.New("transaction failed on-chain")
	ErrNetworkTimeout = errors.New("confirmation timed out")

	ErrIllegalTransition  = errors.New("illegal payment status transition")
	ErrDuplicateReference = errors.New("duplicate order reference")
	ErrNotPurchased       = errors.New("item not purchased")
	ErrLedgerWrite        = errors.New("order ledger write failed")
)
