package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether the booking accepts no further transitions
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// transitions is the mechanic-driven part of the lifecycle. Pending →
// confirmed happens through payment verification or dispatch
// acceptance, cancellation through Cancel, never through UpdateStatus.
var transitions = map[Status]Status{
	StatusConfirmed:  StatusInProgress,
	StatusInProgress: StatusCompleted,
}

// CanTransition reports whether UpdateStatus may move from → to
func CanTransition(from, to Status) bool {
	return transitions[from] == to
}

// Booking is one customer–mechanic service appointment. Price is
// copied from the service offering at creation and never changes.
type Booking struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	CustomerID  uuid.UUID  `db:"customer_id" json:"customer_id"`
	MechanicID  *uuid.UUID `db:"mechanic_id" json:"mechanic_id,omitempty"`
	ServiceID   uuid.UUID  `db:"service_id" json:"service_id"`
	Price       int64      `db:"price" json:"price"`
	ScheduledAt time.Time  `db:"scheduled_at" json:"scheduled_at"`
	Status      Status     `db:"status" json:"status"`
	ChatRoomID  uuid.UUID  `db:"chat_room_id" json:"chat_room_id"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
