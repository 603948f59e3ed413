package payment

import (
	"context"
	"database/sql"
	"encoding/json"
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

func (r *Repository) Create(ctx context.Context, p *Payment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (id, booking_id, reference, amount, refunded_amount, status, provider, payment_url, raw_gateway_response)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.BookingID, p.Reference, p.Amount, p.RefundedAmount, string(p.Status), p.Provider, p.PaymentURL, nullableJSON(p.RawGatewayResponse))
	return err
}

const selectColumns = `
	id, booking_id, reference, amount, refunded_amount, status, provider, payment_url, raw_gateway_response, created_at, updated_at
`

func (r *Repository) GetByReference(ctx context.Context, reference string) (*Payment, error) {
	var p Payment
	err := r.db.GetContext(ctx, &p, `SELECT `+selectColumns+` FROM payments WHERE reference = $1`, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*Payment, error) {
	var p Payment
	err := r.db.GetContext(ctx, &p, `
		SELECT `+selectColumns+` FROM payments WHERE booking_id = $1 ORDER BY created_at DESC LIMIT 1
	`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByReferenceForUpdate locks the payment row for the duration of the
// caller's transaction so concurrent webhook deliveries serialize.
func (r *Repository) GetByReferenceForUpdate(ctx context.Context, tx *sqlx.Tx, reference string) (*Payment, error) {
	var p Payment
	err := tx.GetContext(ctx, &p, `SELECT `+selectColumns+` FROM payments WHERE reference = $1 FOR UPDATE`, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) GetByBookingIDForUpdate(ctx context.Context, tx *sqlx.Tx, bookingID uuid.UUID) (*Payment, error) {
	var p Payment
	err := tx.GetContext(ctx, &p, `
		SELECT `+selectColumns+` FROM payments WHERE booking_id = $1 ORDER BY created_at DESC LIMIT 1 FOR UPDATE
	`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateStatusTx flips the status inside the caller's transaction
func (r *Repository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status Status, raw json.RawMessage) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $1,
		    raw_gateway_response = COALESCE($2, raw_gateway_response),
		    updated_at = now()
		WHERE id = $3
	`, string(status), nullableJSON(raw), id)
	return err
}

// UpdateStatus flips the status in its own statement. Used for failure
// states that must survive a rolled-back saga (capture_failed,
// refund_failed).
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, raw json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $1,
		    raw_gateway_response = COALESCE($2, raw_gateway_response),
		    updated_at = now()
		WHERE id = $3
	`, string(status), nullableJSON(raw), id)
	return err
}

// ApplyRefundTx adds to refunded_amount and sets the refund status
func (r *Repository) ApplyRefundTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, amount int64, status Status) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET refunded_amount = refunded_amount + $1,
		    status = $2,
		    updated_at = now()
		WHERE id = $3 AND refunded_amount + $1 <= amount
	`, amount, string(status), id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ListPendingOlderThan returns pending payments created before the
// cutoff, for the sweep worker.
func (r *Repository) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	payments := []Payment{}
	err := r.db.SelectContext(ctx, &payments, `
		SELECT `+selectColumns+`
		FROM payments
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`, cutoff, limit)
	return payments, err
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
