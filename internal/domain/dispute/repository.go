package dispute

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
	id, user_id, booking_id, reason, status, resolution, resolved_amount, resolved_at, created_at
`

// Create inserts a pending dispute. The partial unique index on
// booking_id over pending rows maps a second open dispute to
// ErrAlreadyPending.
func (r *Repository) Create(ctx context.Context, d *Dispute) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO disputes (id, user_id, booking_id, reason, status)
		VALUES ($1, $2, $3, $4, $5)
	`, d.ID, d.UserID, d.BookingID, d.Reason, string(d.Status))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrAlreadyPending
		}
		return err
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Dispute, error) {
	var d Dispute
	err := r.db.GetContext(ctx, &d, `SELECT `+selectColumns+` FROM disputes WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Dispute, error) {
	var d Dispute
	err := tx.GetContext(ctx, &d, `SELECT `+selectColumns+` FROM disputes WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repository) List(ctx context.Context, status string) ([]Dispute, error) {
	disputes := []Dispute{}
	if status != "" {
		err := r.db.SelectContext(ctx, &disputes, `
			SELECT `+selectColumns+` FROM disputes WHERE status = $1 ORDER BY created_at DESC
		`, status)
		return disputes, err
	}
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT `+selectColumns+` FROM disputes ORDER BY created_at DESC
	`)
	return disputes, err
}

// ResolveTx flips pending → resolved; a second resolution loses on the
// status guard.
func (r *Repository) ResolveTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, resolution string, amount int64, now time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE disputes
		SET status = 'resolved', resolution = $1, resolved_amount = $2, resolved_at = $3
		WHERE id = $4 AND status = 'pending'
	`, resolution, amount, now, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAlreadyResolved
	}
	return nil
}
