package wallet

import "errors"

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrReferenceConflict = errors.New("reference conflicts with different amount")
	ErrNotFound          = errors.New("wallet not found")
)
