package payout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fixmate/fixmate-api/internal/domain/audit"
	"github.com/fixmate/fixmate-api/internal/domain/wallet"
	"github.com/fixmate/fixmate-api/internal/pkg/gateway"
)

// Notifier delivers fire-and-forget notifications after commit
type Notifier interface {
	NotifyAsync(userID uuid.UUID, subject, body string)
}

type Service struct {
	repo     *Repository
	wallets  *wallet.Repository
	gw       gateway.Gateway
	auditor  *audit.Repository
	notifier Notifier
}

func NewService(repo *Repository, wallets *wallet.Repository, gw gateway.Gateway, auditor *audit.Repository) *Service {
	return &Service{
		repo:    repo,
		wallets: wallets,
		gw:      gw,
		auditor: auditor,
	}
}

func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// BankDetails is the payout destination
type BankDetails struct {
	AccountName   string
	AccountNumber string
	BankCode      string
}

// Request withdraws wallet balance to a bank account. The wallet is
// debited first inside the transaction, then the transfer is attempted;
// an immediate gateway rejection re-credits the wallet in the same
// transaction before commit, so the wallet is never left debited
// without an accounted transfer.
func (s *Service) Request(ctx context.Context, mechanicID uuid.UUID, amount int64, bank BankDetails) (*Payout, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if bank.AccountName == "" || bank.AccountNumber == "" || bank.BankCode == "" {
		return nil, ErrMissingBank
	}

	w, err := s.wallets.Ensure(ctx, mechanicID)
	if err != nil {
		return nil, err
	}
	if w.Balance < amount {
		return nil, ErrInsufficientFunds
	}

	p := &Payout{
		ID:            uuid.New(),
		MechanicID:    mechanicID,
		WalletID:      w.ID,
		Amount:        amount,
		Status:        StatusPending,
		AccountName:   bank.AccountName,
		AccountNumber: bank.AccountNumber,
		BankCode:      bank.BankCode,
	}

	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.repo.CreateTx(ctx, tx, p); err != nil {
		return nil, err
	}

	// debit first; the locked re-read re-checks the balance
	if _, err := s.wallets.ApplyTx(ctx, tx, mechanicID, -amount, wallet.TransactionTypePayoutRequest, wallet.ApplyOptions{
		Reference: "payout-" + p.ID.String(),
	}); err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			return nil, ErrInsufficientFunds
		}
		return nil, err
	}

	result, transferErr := s.initiateTransfer(ctx, p, bank)
	if transferErr != nil {
		// immediate rejection: compensate inside the same transaction
		reason := transferErr.Error()
		p.Status = StatusFailed
		p.FailureReason = &reason
		if err := s.repo.UpdateStatusTx(ctx, tx, p.ID, StatusFailed, nil, &reason); err != nil {
			return nil, err
		}
		if _, err := s.wallets.ApplyTx(ctx, tx, mechanicID, amount, wallet.TransactionTypePayoutReversal, wallet.ApplyOptions{
			Reference: "payout-" + p.ID.String() + "-reversal",
		}); err != nil {
			return nil, err
		}
	} else {
		p.Status = StatusProcessing
		p.ProviderRef = &result.ProviderRef
		if err := s.repo.UpdateStatusTx(ctx, tx, p.ID, StatusProcessing, &result.ProviderRef, nil); err != nil {
			return nil, err
		}
	}

	if err := s.auditor.RecordTx(ctx, tx, audit.Entry{
		ActorID:    mechanicID,
		Action:     audit.ActionPayoutRequested,
		EntityType: "payout",
		EntityID:   p.ID,
		AfterState: audit.Snapshot(map[string]interface{}{"status": p.Status, "amount": amount}),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().
		Str("payout_id", p.ID.String()).
		Int64("amount", amount).
		Str("status", string(p.Status)).
		Msg("payout requested")

	if s.notifier != nil && p.Status == StatusProcessing {
		s.notifier.NotifyAsync(mechanicID, "Payout processing", "Your payout request was accepted and is processing.")
	}
	return p, nil
}

// initiateTransfer shields the caller from a panicking gateway client;
// any panic is treated as a gateway failure, not rethrown.
func (s *Service) initiateTransfer(ctx context.Context, p *Payout, bank BankDetails) (result *gateway.TransferResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("transfer panicked: %v", r)
		}
	}()

	return s.gw.InitiateTransfer(ctx, gateway.TransferRequest{
		Reference: "payout-" + p.ID.String(),
		Amount:    p.Amount,
		Recipient: gateway.BankDetails{
			AccountName:   bank.AccountName,
			AccountNumber: bank.AccountNumber,
			BankCode:      bank.BankCode,
		},
		Narration: "FixMate payout",
	})
}

// MarkResult applies a provider result callback. Idempotent: a result
// for an already-terminal payout is a no-op, and the failure re-credit
// is keyed so it applies at most once.
func (s *Service) MarkResult(ctx context.Context, payoutID uuid.UUID, status Status, providerRef, failureReason *string) (*Payout, error) {
	switch status {
	case StatusCompleted, StatusFailed, StatusReversed:
	default:
		return nil, ErrInvalidStatus
	}

	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	p, err := s.repo.GetForUpdate(ctx, tx, payoutID)
	if err != nil {
		return nil, err
	}
	if p.Status.IsTerminal() {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return p, nil
	}

	if err := s.repo.UpdateStatusTx(ctx, tx, payoutID, status, providerRef, failureReason); err != nil {
		return nil, err
	}

	if status == StatusFailed || status == StatusReversed {
		if _, err := s.wallets.ApplyTx(ctx, tx, p.MechanicID, p.Amount, wallet.TransactionTypePayoutReversal, wallet.ApplyOptions{
			Reference: "payout-" + p.ID.String() + "-reversal",
		}); err != nil {
			return nil, err
		}
	}

	if err := s.auditor.RecordTx(ctx, tx, audit.Entry{
		ActorID:     p.MechanicID,
		Action:      audit.ActionPayoutResult,
		EntityType:  "payout",
		EntityID:    payoutID,
		BeforeState: audit.Snapshot(map[string]interface{}{"status": p.Status}),
		AfterState:  audit.Snapshot(map[string]interface{}{"status": status}),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	p.Status = status
	log.Info().
		Str("payout_id", payoutID.String()).
		Str("status", string(status)).
		Msg("payout result applied")

	if s.notifier != nil {
		switch status {
		case StatusCompleted:
			s.notifier.NotifyAsync(p.MechanicID, "Payout completed", "Your payout has been sent to your bank.")
		case StatusFailed, StatusReversed:
			s.notifier.NotifyAsync(p.MechanicID, "Payout failed", "Your payout failed and the amount was returned to your wallet.")
		}
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, mechanicID uuid.UUID) ([]Payout, error) {
	return s.repo.ListByMechanic(ctx, mechanicID)
}
