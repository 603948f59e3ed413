package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entry is one append-only audit record. BeforeState/AfterState hold
// JSON snapshots of the mutated entity.
type Entry struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	ActorID     uuid.UUID       `db:"actor_id" json:"actor_id"`
	Action      string          `db:"action" json:"action"`
	EntityType  string          `db:"entity_type" json:"entity_type"`
	EntityID    uuid.UUID       `db:"entity_id" json:"entity_id"`
	BeforeState json.RawMessage `db:"before_state" json:"before_state,omitempty"`
	AfterState  json.RawMessage `db:"after_state" json:"after_state,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Actions recorded by the settlement core.
const (
	ActionPaymentVerified  = "payment.verified"
	ActionPaymentCaptured  = "payment.captured"
	ActionPaymentRefunded  = "payment.refunded"
	ActionPaymentFailed    = "payment.failed"
	ActionBookingCreated   = "booking.created"
	ActionBookingStatus    = "booking.status_changed"
	ActionBookingCancelled = "booking.cancelled"
	ActionWalletCredit     = "wallet.credit"
	ActionWalletDebit      = "wallet.debit"
	ActionDisputeRaised    = "dispute.raised"
	ActionDisputeResolved  = "dispute.resolved"
	ActionPayoutRequested  = "payout.requested"
	ActionPayoutResult     = "payout.result"
	ActionDispatchAccepted = "dispatch.accepted"
	ActionDispatchRejected = "dispatch.rejected"
)
