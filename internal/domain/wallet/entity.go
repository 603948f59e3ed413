package wallet

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionTypeCredit         TransactionType = "credit"
	TransactionTypeDebit          TransactionType = "debit"
	TransactionTypeRefund         TransactionType = "refund"
	TransactionTypePayoutRequest  TransactionType = "payout_request"
	TransactionTypePayoutReversal TransactionType = "payout_failed_reversal"
	TransactionTypeDisputeDebit   TransactionType = "dispute_debit"
)

type Wallet struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Balance   int64     `db:"balance" json:"balance"`
	Pending   int64     `db:"pending" json:"pending"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction is one append-only ledger row. Amount is the signed
// delta; BalanceAfter snapshots the wallet balance at commit time.
type Transaction struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	WalletID     uuid.UUID       `db:"wallet_id" json:"wallet_id"`
	Type         TransactionType `db:"type" json:"type"`
	Amount       int64           `db:"amount" json:"amount"`
	BalanceAfter int64           `db:"balance_after" json:"balance_after"`
	BookingID    *uuid.UUID      `db:"booking_id" json:"booking_id,omitempty"`
	Reference    *string         `db:"reference" json:"reference,omitempty"`
	Metadata     json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
