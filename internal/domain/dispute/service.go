package dispute

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fixmate/fixmate-api/internal/domain/audit"
	"github.com/fixmate/fixmate-api/internal/domain/booking"
	"github.com/fixmate/fixmate-api/internal/domain/payment"
	"github.com/fixmate/fixmate-api/internal/domain/wallet"
)

// Notifier delivers fire-and-forget notifications after commit
type Notifier interface {
	NotifyAsync(userID uuid.UUID, subject, body string)
}

type Service struct {
	repo     *Repository
	bookings *booking.Repository
	payments *payment.Service
	wallets  *wallet.Repository
	auditor  *audit.Repository
	notifier Notifier
}

func NewService(repo *Repository, bookings *booking.Repository, payments *payment.Service, wallets *wallet.Repository, auditor *audit.Repository) *Service {
	return &Service{
		repo:     repo,
		bookings: bookings,
		payments: payments,
		wallets:  wallets,
		auditor:  auditor,
	}
}

func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// Raise opens a dispute against a booking. One pending dispute per
// booking, enforced by the DB.
func (s *Service) Raise(ctx context.Context, userID, bookingID uuid.UUID, reason string) (*Dispute, error) {
	if _, err := s.bookings.GetByID(ctx, bookingID); err != nil {
		return nil, err
	}

	d := &Dispute{
		ID:        uuid.New(),
		UserID:    userID,
		BookingID: bookingID,
		Reason:    reason,
		Status:    StatusPending,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	if err := s.auditor.Record(ctx, audit.Entry{
		ActorID:    userID,
		Action:     audit.ActionDisputeRaised,
		EntityType: "dispute",
		EntityID:   d.ID,
		AfterState: audit.Snapshot(d),
	}); err != nil {
		log.Error().Err(err).Str("dispute_id", d.ID.String()).Msg("failed to record dispute audit")
	}

	log.Info().
		Str("dispute_id", d.ID.String()).
		Str("booking_id", bookingID.String()).
		Msg("dispute raised")
	return d, nil
}

func (s *Service) List(ctx context.Context, status string) ([]Dispute, error) {
	return s.repo.List(ctx, status)
}

// ResolveRequest captures an admin's resolution decision
type ResolveRequest struct {
	Resolution       string
	RefundAmount     int64
	RefundToCustomer bool
	DebitMechanic    bool
}

// Resolve settles a pending dispute. When refunding the customer, the
// external gateway refund runs first and cannot be rolled back; the
// mechanic debit then commits together with the resolved flip. A DB
// failure between the two leaves the refund issued but the ledger
// untouched; the saga accepts that window rather than pretending the
// refund can be undone.
func (s *Service) Resolve(ctx context.Context, disputeID uuid.UUID, req ResolveRequest, adminID uuid.UUID) (*Dispute, error) {
	d, err := s.repo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if d.Status != StatusPending {
		return nil, ErrAlreadyResolved
	}
	if req.RefundAmount < 0 {
		return nil, ErrInvalidAmount
	}

	b, err := s.bookings.GetByID(ctx, d.BookingID)
	if err != nil {
		return nil, err
	}
	// reject before the refund call; the refund cannot be rolled back
	if req.RefundAmount > 0 && req.DebitMechanic && b.MechanicID == nil {
		return nil, booking.ErrMechanicUnassigned
	}

	if req.RefundAmount > 0 && req.RefundToCustomer {
		p, err := s.payments.GetByBooking(ctx, d.BookingID)
		if err != nil {
			return nil, err
		}
		if _, err := s.payments.Refund(ctx, p.Reference, req.RefundAmount, adminID); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	locked, err := s.repo.GetForUpdate(ctx, tx, disputeID)
	if err != nil {
		return nil, err
	}
	if locked.Status != StatusPending {
		return nil, ErrAlreadyResolved
	}

	if err := s.repo.ResolveTx(ctx, tx, disputeID, req.Resolution, req.RefundAmount, now); err != nil {
		return nil, err
	}

	if req.RefundAmount > 0 && req.DebitMechanic {
		if _, err := s.wallets.ApplyTx(ctx, tx, *b.MechanicID, -req.RefundAmount, wallet.TransactionTypeDisputeDebit, wallet.ApplyOptions{
			BookingID: &d.BookingID,
			Reference: "dispute-" + disputeID.String(),
		}); err != nil {
			return nil, err
		}
	}

	if err := s.auditor.RecordTx(ctx, tx, audit.Entry{
		ActorID:     adminID,
		Action:      audit.ActionDisputeResolved,
		EntityType:  "dispute",
		EntityID:    disputeID,
		BeforeState: audit.Snapshot(map[string]interface{}{"status": StatusPending}),
		AfterState: audit.Snapshot(map[string]interface{}{
			"status":     StatusResolved,
			"resolution": req.Resolution,
			"amount":     req.RefundAmount,
		}),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	d.Status = StatusResolved
	d.Resolution = &req.Resolution
	d.ResolvedAmount = req.RefundAmount
	d.ResolvedAt = &now

	log.Info().
		Str("dispute_id", disputeID.String()).
		Int64("amount", req.RefundAmount).
		Bool("refund_to_customer", req.RefundToCustomer).
		Bool("debit_mechanic", req.DebitMechanic).
		Msg("dispute resolved")

	if s.notifier != nil {
		s.notifier.NotifyAsync(d.UserID, "Dispute resolved", "Your dispute has been resolved.")
		if b.MechanicID != nil && req.DebitMechanic {
			s.notifier.NotifyAsync(*b.MechanicID, "Dispute resolved", "A dispute on one of your bookings was resolved.")
		}
	}
	return d, nil
}
