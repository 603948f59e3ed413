package user

import (
	"time"

	"github.com/google/uuid"
)

// Online status values written by the presence service and read by
// dispatch selection.
const (
	OnlineStatusOnline  = "online"
	OnlineStatusOffline = "offline"
)

type User struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	Email              string    `db:"email" json:"email"`
	FullName           string    `db:"full_name" json:"full_name"`
	Role               string    `db:"role" json:"role"`
	IsAvailableForJobs bool      `db:"is_available_for_jobs" json:"is_available_for_jobs"`
	OnlineStatus       string    `db:"online_status" json:"online_status"`
	CompletedJobs      int       `db:"completed_jobs" json:"completed_jobs"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// ServiceOffering is a service a mechanic sells, priced in minor units.
type ServiceOffering struct {
	ID         uuid.UUID `db:"id" json:"id"`
	MechanicID uuid.UUID `db:"mechanic_id" json:"mechanic_id"`
	Title      string    `db:"title" json:"title"`
	Price      int64     `db:"price" json:"price"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
