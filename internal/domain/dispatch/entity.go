package dispatch

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusAssigned Status = "assigned"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Dispatch is one assignment offer to a mechanic. Accept/reject are
// only valid while status is assigned and before ExpiresAt.
type Dispatch struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	BookingID  uuid.UUID  `db:"booking_id" json:"booking_id"`
	MechanicID uuid.UUID  `db:"mechanic_id" json:"mechanic_id"`
	Status     Status     `db:"status" json:"status"`
	Reason     *string    `db:"reason" json:"reason,omitempty"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	AcceptedAt *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	RejectedAt *time.Time `db:"rejected_at" json:"rejected_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
