package payout

import (
	"context"
	"database/sql"
	"errors"

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
	id, mechanic_id, wallet_id, amount, status, account_name, account_number, bank_code, provider_ref, failure_reason, created_at, updated_at
`

func (r *Repository) CreateTx(ctx context.Context, tx *sqlx.Tx, p *Payout) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payouts (id, mechanic_id, wallet_id, amount, status, account_name, account_number, bank_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.MechanicID, p.WalletID, p.Amount, string(p.Status), p.AccountName, p.AccountNumber, p.BankCode)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Payout, error) {
	var p Payout
	err := r.db.GetContext(ctx, &p, `SELECT `+selectColumns+` FROM payouts WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Payout, error) {
	var p Payout
	err := tx.GetContext(ctx, &p, `SELECT `+selectColumns+` FROM payouts WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) ListByMechanic(ctx context.Context, mechanicID uuid.UUID) ([]Payout, error) {
	payouts := []Payout{}
	err := r.db.SelectContext(ctx, &payouts, `
		SELECT `+selectColumns+` FROM payouts WHERE mechanic_id = $1 ORDER BY created_at DESC
	`, mechanicID)
	return payouts, err
}

func (r *Repository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status Status, providerRef, failureReason *string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payouts
		SET status = $1,
		    provider_ref = COALESCE($2, provider_ref),
		    failure_reason = COALESCE($3, failure_reason),
		    updated_at = now()
		WHERE id = $4
	`, string(status), providerRef, failureReason, id)
	return err
}
