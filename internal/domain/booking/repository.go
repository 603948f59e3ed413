package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) BeginTxx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

const selectColumns = `
	id, customer_id, mechanic_id, service_id, price, scheduled_at, status, chat_room_id, created_at, updated_at
`

// Create inserts a pending booking. The partial unique index on
// (mechanic_id, scheduled_at) over non-terminal rows turns a
// double-booked slot into ErrSlotTaken.
func (r *Repository) Create(ctx context.Context, b *Booking) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bookings (id, customer_id, mechanic_id, service_id, price, scheduled_at, status, chat_room_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, b.ID, b.CustomerID, b.MechanicID, b.ServiceID, b.Price, b.ScheduledAt, string(b.Status), b.ChatRoomID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrSlotTaken
		}
		return err
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var b Booking
	err := r.db.GetContext(ctx, &b, `SELECT `+selectColumns+` FROM bookings WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Booking, error) {
	var b Booking
	err := tx.GetContext(ctx, &b, `SELECT `+selectColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListByCustomer returns a customer's bookings, newest first
func (r *Repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Booking, error) {
	bookings := []Booking{}
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT `+selectColumns+` FROM bookings WHERE customer_id = $1 ORDER BY created_at DESC
	`, customerID)
	return bookings, err
}

// ListByMechanic returns a mechanic's bookings, newest first
func (r *Repository) ListByMechanic(ctx context.Context, mechanicID uuid.UUID) ([]Booking, error) {
	bookings := []Booking{}
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT `+selectColumns+` FROM bookings WHERE mechanic_id = $1 ORDER BY created_at DESC
	`, mechanicID)
	return bookings, err
}

// UpdateStatusTx moves the booking between two specific states. The
// WHERE clause on the current status makes concurrent writers lose
// cleanly instead of double-applying.
func (r *Repository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from, to Status) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE bookings SET status = $1, updated_at = now() WHERE id = $2 AND status = $3
	`, string(to), id, string(from))
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// ConfirmTx moves pending → confirmed; already-confirmed is a no-op so
// payment verification stays idempotent.
func (r *Repository) ConfirmTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE bookings SET status = 'confirmed', updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return err
	}
	if rows, err := res.RowsAffected(); err != nil {
		return err
	} else if rows > 0 {
		return nil
	}

	var status string
	if err := tx.GetContext(ctx, &status, `SELECT status FROM bookings WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if Status(status) == StatusConfirmed {
		return nil
	}
	return ErrInvalidTransition
}

// AssignMechanicTx sets the mechanic and confirms the booking in one
// statement (dispatch acceptance).
func (r *Repository) AssignMechanicTx(ctx context.Context, tx *sqlx.Tx, id, mechanicID uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE bookings SET mechanic_id = $1, status = 'confirmed', updated_at = now()
		WHERE id = $2 AND status IN ('pending', 'confirmed')
	`, mechanicID, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// CancelTx flips any non-terminal booking to cancelled
func (r *Repository) CancelTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE bookings SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status NOT IN ('completed', 'cancelled')
	`, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTerminalState
	}
	return nil
}

// Delete removes a booking; only used to compensate a failed creation
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	return err
}

// CancelStalePending cancels pending bookings created before the cutoff
// and returns how many were swept.
func (r *Repository) CancelStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bookings SET status = 'cancelled', updated_at = now()
		WHERE status = 'pending' AND created_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
