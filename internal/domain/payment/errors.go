package payment

import "errors"

var (
	ErrNotFound          = errors.New("payment not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrBookingNotPending = errors.New("booking is not pending")
	ErrAmountMismatch    = errors.New("amount does not match")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidStatus     = errors.New("invalid payment status for this operation")
	ErrPaymentFailed     = errors.New("payment failed at the gateway")
	ErrPaymentPending    = errors.New("payment is still pending at the gateway")
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrCaptureFailed     = errors.New("payment capture failed")
	ErrRefundFailed      = errors.New("payment refund failed")
)
