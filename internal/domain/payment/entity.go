package payment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending           Status = "pending"
	StatusAuthorized        Status = "authorized"
	StatusSuccess           Status = "success"
	StatusCaptured          Status = "captured"
	StatusFailed            Status = "failed"
	StatusCancelled         Status = "cancelled"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"
	StatusRefundFailed      Status = "refund_failed"
	StatusCaptureFailed     Status = "capture_failed"
)

// IsTerminal reports whether no further settlement transitions apply
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFailed, StatusCancelled, StatusRefunded, StatusRefundFailed, StatusCaptureFailed:
		return true
	}
	return false
}

// IsSettled reports whether the charge has cleared and the payment can
// be refunded or drive a wallet credit.
func (s Status) IsSettled() bool {
	return s == StatusSuccess || s == StatusCaptured
}

// Payment is one charge attempt against a booking. Reference is the
// gateway-visible idempotency key; amounts are integer minor units.
type Payment struct {
	ID                 uuid.UUID       `db:"id" json:"id"`
	BookingID          uuid.UUID       `db:"booking_id" json:"booking_id"`
	Reference          string          `db:"reference" json:"reference"`
	Amount             int64           `db:"amount" json:"amount"`
	RefundedAmount     int64           `db:"refunded_amount" json:"refunded_amount"`
	Status             Status          `db:"status" json:"status"`
	Provider           string          `db:"provider" json:"provider"`
	PaymentURL         string          `db:"payment_url" json:"payment_url,omitempty"`
	RawGatewayResponse json.RawMessage `db:"raw_gateway_response" json:"-"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// Remaining is the amount still refundable
func (p *Payment) Remaining() int64 {
	return p.Amount - p.RefundedAmount
}
