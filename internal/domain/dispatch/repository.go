package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
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
	id, booking_id, mechanic_id, status, reason, expires_at, accepted_at, rejected_at, created_at
`

func (r *Repository) Create(ctx context.Context, d *Dispatch) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dispatches (id, booking_id, mechanic_id, status, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, d.ID, d.BookingID, d.MechanicID, string(d.Status), d.ExpiresAt)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Dispatch, error) {
	var d Dispatch
	err := r.db.GetContext(ctx, &d, `SELECT `+selectColumns+` FROM dispatches WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// AcceptTx flips assigned → accepted. The status guard in the WHERE
// clause means exactly one of two concurrent accepts wins.
func (r *Repository) AcceptTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, now time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE dispatches SET status = 'accepted', accepted_at = $1
		WHERE id = $2 AND status = 'assigned'
	`, now, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAlreadyDecided
	}
	return nil
}

// RejectTx flips assigned → rejected
func (r *Repository) RejectTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, reason *string, now time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE dispatches SET status = 'rejected', reason = $1, rejected_at = $2
		WHERE id = $3 AND status = 'assigned'
	`, reason, now, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAlreadyDecided
	}
	return nil
}
