package payout

import "errors"

var (
	ErrNotFound          = errors.New("payout not found")
	ErrInvalidAmount     = errors.New("invalid payout amount")
	ErrInsufficientFunds = errors.New("wallet balance is insufficient")
	ErrInvalidStatus     = errors.New("invalid payout result status")
	ErrMissingBank       = errors.New("bank details are incomplete")
)
