package wallet

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

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

// ApplyOptions carries the optional columns of a ledger row. Reference,
// when set, makes the apply idempotent: a second apply with the same
// wallet+type+reference and amount is a no-op; a different amount is
// ErrReferenceConflict.
type ApplyOptions struct {
	BookingID *uuid.UUID
	Reference string
	Metadata  json.RawMessage
}

// Ensure returns the wallet for a user, creating it with balance 0 on
// first use. Safe under concurrent first-use via ON CONFLICT.
func (r *Repository) Ensure(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO wallets (id, user_id, balance, pending)
		VALUES ($1, $2, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.New(), userID); err != nil {
		return nil, err
	}
	return r.GetByUserID(ctx, userID)
}

func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := r.db.GetContext(ctx, &w, `
		SELECT id, user_id, balance, pending, updated_at FROM wallets WHERE user_id = $1
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repository) ListTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	txs := []Transaction{}
	err := r.db.SelectContext(ctx, &txs, `
		SELECT id, wallet_id, type, amount, balance_after, booking_id, reference, metadata, created_at
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, walletID, limit)
	return txs, err
}

func (r *Repository) beginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// lockWallet ensures the row exists and takes the write lock that
// serializes concurrent applies on the same wallet.
func (r *Repository) lockWallet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (*Wallet, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (id, user_id, balance, pending)
		VALUES ($1, $2, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.New(), userID); err != nil {
		return nil, err
	}

	var w Wallet
	err := tx.GetContext(ctx, &w, `
		SELECT id, user_id, balance, pending, updated_at FROM wallets WHERE user_id = $1 FOR UPDATE
	`, userID)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repository) getTransactionAmountByRef(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, txType TransactionType, reference string) (int64, bool, error) {
	if reference == "" {
		return 0, false, nil
	}

	var amount int64
	err := tx.GetContext(ctx, &amount, `
		SELECT amount
		FROM wallet_transactions
		WHERE wallet_id = $1 AND type = $2 AND reference = $3
		LIMIT 1
	`, walletID, string(txType), reference)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return amount, true, nil
}

func (r *Repository) updateBalance(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, balance int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance = $1, updated_at = now() WHERE id = $2
	`, balance, walletID)
	return err
}

func (r *Repository) insertTransaction(ctx context.Context, tx *sqlx.Tx, entry Transaction) error {
	var ref interface{}
	if entry.Reference != nil && *entry.Reference != "" {
		ref = *entry.Reference
	}
	var meta interface{}
	if len(entry.Metadata) > 0 {
		meta = []byte(entry.Metadata)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (id, wallet_id, type, amount, balance_after, booking_id, reference, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.WalletID, string(entry.Type), entry.Amount, entry.BalanceAfter, entry.BookingID, ref, meta)
	if err != nil {
		// the unique index can only fire past the pre-check if another
		// writer slipped in; the tx is aborted at this point, so no
		// in-tx recovery is possible
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrReferenceConflict
		}
		return err
	}
	return nil
}

// ApplyTx applies a signed delta inside the caller's transaction. The
// wallet row is locked, the balance check runs against the locked read,
// and the ledger row is appended with its balance_after snapshot. Sagas
// (booking completion, dispute resolution, payout) use this to keep the
// wallet move and their own state flip in one commit.
func (r *Repository) ApplyTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, delta int64, txType TransactionType, opts ApplyOptions) (*Transaction, error) {
	w, err := r.lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	existingAmount, exists, err := r.getTransactionAmountByRef(ctx, tx, w.ID, txType, opts.Reference)
	if err != nil {
		return nil, err
	}
	if exists {
		if existingAmount != delta {
			return nil, ErrReferenceConflict
		}
		// already applied, nothing to do
		return nil, nil
	}

	nextBalance := w.Balance + delta
	if nextBalance < 0 {
		return nil, ErrInsufficientFunds
	}

	if err := r.updateBalance(ctx, tx, w.ID, nextBalance); err != nil {
		return nil, err
	}

	entry := Transaction{
		ID:           uuid.New(),
		WalletID:     w.ID,
		Type:         txType,
		Amount:       delta,
		BalanceAfter: nextBalance,
		BookingID:    opts.BookingID,
		Metadata:     opts.Metadata,
	}
	if opts.Reference != "" {
		ref := opts.Reference
		entry.Reference = &ref
	}

	if err := r.insertTransaction(ctx, tx, entry); err != nil {
		return nil, err
	}

	return &entry, nil
}

// Apply runs ApplyTx in its own transaction
func (r *Repository) Apply(ctx context.Context, userID uuid.UUID, delta int64, txType TransactionType, opts ApplyOptions) (*Transaction, error) {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	entry, err := r.ApplyTx(ctx, tx, userID, delta, txType, opts)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entry, nil
}
