package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fixmate/fixmate-api/internal/domain/audit"
	"github.com/fixmate/fixmate-api/internal/domain/payment"
	"github.com/fixmate/fixmate-api/internal/domain/user"
	"github.com/fixmate/fixmate-api/internal/domain/wallet"
)

// Notifier delivers fire-and-forget notifications after commit
type Notifier interface {
	NotifyAsync(userID uuid.UUID, subject, body string)
}

type Service struct {
	repo         *Repository
	users        *user.Repository
	payments     *payment.Service
	wallets      *wallet.Repository
	auditor      *audit.Repository
	notifier     Notifier
	cancelFeePct float64
}

func NewService(repo *Repository, users *user.Repository, payments *payment.Service, wallets *wallet.Repository, auditor *audit.Repository, cancelFeePct float64) *Service {
	return &Service{
		repo:         repo,
		users:        users,
		payments:     payments,
		wallets:      wallets,
		auditor:      auditor,
		cancelFeePct: cancelFeePct,
	}
}

func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// CreateResult pairs the new booking with its payment checkout data
type CreateResult struct {
	Booking    *Booking         `json:"booking"`
	Payment    *payment.Payment `json:"payment"`
	PaymentURL string           `json:"payment_url"`
}

// Create validates the mechanic and service, copies the price, and
// creates booking + payment initialization as one unit. If the gateway
// rejects initialization the booking is removed again.
func (s *Service) Create(ctx context.Context, customerID, mechanicID, serviceID uuid.UUID, scheduledAt time.Time) (*CreateResult, error) {
	customer, err := s.users.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetMechanic(ctx, mechanicID); err != nil {
		return nil, err
	}

	offering, err := s.users.GetServiceOffering(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if offering.MechanicID != mechanicID {
		return nil, user.ErrServiceNotFound
	}

	b := &Booking{
		ID:          uuid.New(),
		CustomerID:  customerID,
		MechanicID:  &mechanicID,
		ServiceID:   serviceID,
		Price:       offering.Price,
		ScheduledAt: scheduledAt,
		Status:      StatusPending,
		ChatRoomID:  uuid.New(),
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}

	p, err := s.payments.Initialize(ctx, b.ID, b.Price, customer.Email, map[string]string{
		"booking_id": b.ID.String(),
		"service":    offering.Title,
	})
	if err != nil {
		// compensate: a booking without a payment attempt is unusable
		if delErr := s.repo.Delete(ctx, b.ID); delErr != nil {
			log.Error().Err(delErr).Str("booking_id", b.ID.String()).Msg("failed to remove booking after payment init failure")
		}
		return nil, err
	}

	if err := s.auditor.Record(ctx, audit.Entry{
		ActorID:    customerID,
		Action:     audit.ActionBookingCreated,
		EntityType: "booking",
		EntityID:   b.ID,
		AfterState: audit.Snapshot(b),
	}); err != nil {
		log.Error().Err(err).Str("booking_id", b.ID.String()).Msg("failed to record booking creation audit")
	}

	log.Info().
		Str("booking_id", b.ID.String()).
		Str("mechanic_id", mechanicID.String()).
		Int64("price", b.Price).
		Msg("booking created")

	return &CreateResult{Booking: b, Payment: p, PaymentURL: p.PaymentURL}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, role string) ([]Booking, error) {
	if role == "mechanic" {
		return s.repo.ListByMechanic(ctx, userID)
	}
	return s.repo.ListByCustomer(ctx, userID)
}

// UpdateStatus drives the mechanic-side transitions confirmed →
// in_progress → completed. Completion captures the payment, credits the
// mechanic's wallet, and bumps the completion counter in one
// transaction; notification goes out after commit.
func (s *Service) UpdateStatus(ctx context.Context, bookingID uuid.UUID, newStatus Status, actorID uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status.IsTerminal() {
		if b.Status == newStatus {
			return b, nil
		}
		return nil, ErrTerminalState
	}
	if b.MechanicID == nil || *b.MechanicID != actorID {
		return nil, ErrNotAssignedActor
	}
	if !CanTransition(b.Status, newStatus) {
		return nil, ErrInvalidTransition
	}

	if newStatus != StatusCompleted {
		tx, err := s.repo.BeginTxx(ctx)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()
		if err := s.repo.UpdateStatusTx(ctx, tx, bookingID, b.Status, newStatus); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		b.Status = newStatus
		return b, nil
	}

	return s.complete(ctx, b, actorID)
}

func (s *Service) complete(ctx context.Context, b *Booking, actorID uuid.UUID) (*Booking, error) {
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	locked, err := s.repo.GetForUpdate(ctx, tx, b.ID)
	if err != nil {
		return nil, err
	}
	if locked.Status != StatusInProgress {
		return nil, ErrInvalidTransition
	}

	p, err := s.payments.CaptureForBookingTx(ctx, tx, b.ID)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidStatus) || errors.Is(err, payment.ErrNotFound) {
			return nil, ErrPaymentNotReady
		}
		return nil, err
	}

	mechanicID := *locked.MechanicID
	if _, err := s.wallets.ApplyTx(ctx, tx, mechanicID, p.Amount, wallet.TransactionTypeCredit, wallet.ApplyOptions{
		BookingID: &locked.ID,
		Reference: p.Reference,
	}); err != nil {
		return nil, err
	}

	if err := s.users.IncrementCompletedJobsTx(ctx, tx, mechanicID); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatusTx(ctx, tx, locked.ID, StatusInProgress, StatusCompleted); err != nil {
		return nil, err
	}

	if err := s.auditor.RecordTx(ctx, tx, audit.Entry{
		ActorID:     actorID,
		Action:      audit.ActionBookingStatus,
		EntityType:  "booking",
		EntityID:    locked.ID,
		BeforeState: audit.Snapshot(map[string]interface{}{"status": StatusInProgress}),
		AfterState:  audit.Snapshot(map[string]interface{}{"status": StatusCompleted}),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	locked.Status = StatusCompleted
	log.Info().Str("booking_id", locked.ID.String()).Msg("booking completed")

	if s.notifier != nil {
		s.notifier.NotifyAsync(locked.CustomerID, "Job completed", "Your mechanic marked the job as completed.")
		s.notifier.NotifyAsync(mechanicID, "Payment credited", "Your wallet was credited for the completed job.")
	}
	return locked, nil
}

// Cancel cancels a non-terminal booking. For a payment that has cleared
// authorization, the customer is refunded price minus the cancellation
// fee before the status flips.
func (s *Service) Cancel(ctx context.Context, bookingID, customerID uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.CustomerID != customerID {
		return nil, ErrNotOwner
	}
	if b.Status.IsTerminal() {
		return nil, ErrTerminalState
	}

	p, err := s.payments.GetByBooking(ctx, bookingID)
	if err != nil && !errors.Is(err, payment.ErrNotFound) {
		return nil, err
	}

	refund := s.refundAmount(b.Price)
	if p != nil && refund > 0 {
		switch p.Status {
		case payment.StatusAuthorized, payment.StatusSuccess, payment.StatusCaptured:
			if _, err := s.payments.Refund(ctx, p.Reference, refund, customerID); err != nil {
				return nil, err
			}
		}
	}

	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.repo.CancelTx(ctx, tx, bookingID); err != nil {
		return nil, err
	}
	if err := s.auditor.RecordTx(ctx, tx, audit.Entry{
		ActorID:     customerID,
		Action:      audit.ActionBookingCancelled,
		EntityType:  "booking",
		EntityID:    bookingID,
		BeforeState: audit.Snapshot(map[string]interface{}{"status": b.Status}),
		AfterState:  audit.Snapshot(map[string]interface{}{"status": StatusCancelled, "refund": refund}),
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	b.Status = StatusCancelled
	log.Info().
		Str("booking_id", bookingID.String()).
		Int64("refund", refund).
		Msg("booking cancelled")

	if s.notifier != nil {
		s.notifier.NotifyAsync(customerID, "Booking cancelled", "Your booking was cancelled.")
		if b.MechanicID != nil {
			s.notifier.NotifyAsync(*b.MechanicID, "Booking cancelled", "A booking assigned to you was cancelled.")
		}
	}
	return b, nil
}

// refundAmount is price minus the cancellation fee, floored at zero
func (s *Service) refundAmount(price int64) int64 {
	fee := int64(float64(price) * s.cancelFeePct)
	refund := price - fee
	if refund < 0 {
		return 0
	}
	return refund
}

// SweepStaleBookings cancels pending bookings older than the cutoff
func (s *Service) SweepStaleBookings(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.repo.CancelStalePending(ctx, time.Now().Add(-olderThan))
}

// SweepStalePayments re-verifies then cancels pending payments older
// than the cutoff. The gateway re-check is mandatory: a delayed webhook
// must not be contradicted by the sweep.
func (s *Service) SweepStalePayments(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.payments.ListStale(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, p := range stale {
		if err := s.payments.CancelStale(ctx, p); err != nil {
			log.Warn().Err(err).Str("reference", p.Reference).Msg("stale payment sweep skipped")
			continue
		}
		swept++
	}
	return swept, nil
}
