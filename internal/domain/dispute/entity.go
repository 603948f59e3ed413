package dispute

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
)

// Dispute is a customer complaint against a booking. Resolution is a
// one-time, terminal transition; at most one pending dispute exists per
// booking.
type Dispute struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	UserID         uuid.UUID  `db:"user_id" json:"user_id"`
	BookingID      uuid.UUID  `db:"booking_id" json:"booking_id"`
	Reason         string     `db:"reason" json:"reason"`
	Status         Status     `db:"status" json:"status"`
	Resolution     *string    `db:"resolution" json:"resolution,omitempty"`
	ResolvedAmount int64      `db:"resolved_amount" json:"resolved_amount"`
	ResolvedAt     *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}
