package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Ensure(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return s.repo.Ensure(ctx, userID)
}

// Get returns the wallet with its recent ledger entries
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*Wallet, []Transaction, error) {
	w, err := s.repo.Ensure(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	txs, err := s.repo.ListTransactions(ctx, w.ID, 20)
	if err != nil {
		return nil, nil, err
	}
	return w, txs, nil
}

func (s *Service) Credit(ctx context.Context, userID uuid.UUID, amount int64, txType TransactionType, opts ApplyOptions) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if _, err := s.repo.Apply(ctx, userID, amount, txType, opts); err != nil {
		return err
	}
	log.Info().
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Str("type", string(txType)).
		Str("reference", opts.Reference).
		Msg("wallet credit applied")
	return nil
}

func (s *Service) Debit(ctx context.Context, userID uuid.UUID, amount int64, txType TransactionType, opts ApplyOptions) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if _, err := s.repo.Apply(ctx, userID, -amount, txType, opts); err != nil {
		return err
	}
	log.Info().
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Str("type", string(txType)).
		Str("reference", opts.Reference).
		Msg("wallet debit applied")
	return nil
}
