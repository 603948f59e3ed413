package payout

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusReversed   Status = "reversed"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether the payout accepts no further results
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusReversed, StatusCancelled:
		return true
	}
	return false
}

// Payout is one withdrawal of wallet balance to a bank account. The
// wallet debit is always matched by either a completed transfer or a
// compensating re-credit.
type Payout struct {
	ID            uuid.UUID `db:"id" json:"id"`
	MechanicID    uuid.UUID `db:"mechanic_id" json:"mechanic_id"`
	WalletID      uuid.UUID `db:"wallet_id" json:"wallet_id"`
	Amount        int64     `db:"amount" json:"amount"`
	Status        Status    `db:"status" json:"status"`
	AccountName   string    `db:"account_name" json:"account_name"`
	AccountNumber string    `db:"account_number" json:"account_number"`
	BankCode      string    `db:"bank_code" json:"bank_code"`
	ProviderRef   *string   `db:"provider_ref" json:"provider_ref,omitempty"`
	FailureReason *string   `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
