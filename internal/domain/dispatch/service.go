package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fixmate/fixmate-api/internal/domain/audit"
	"github.com/fixmate/fixmate-api/internal/domain/booking"
	"github.com/fixmate/fixmate-api/internal/domain/user"
)

// Notifier delivers fire-and-forget notifications after commit
type Notifier interface {
	NotifyAsync(userID uuid.UUID, subject, body string)
}

type Service struct {
	repo     *Repository
	bookings *booking.Repository
	users    *user.Repository
	auditor  *audit.Repository
	notifier Notifier
	ttl      time.Duration
}

func NewService(repo *Repository, bookings *booking.Repository, users *user.Repository, auditor *audit.Repository) *Service {
	return &Service{
		repo:     repo,
		bookings: bookings,
		users:    users,
		auditor:  auditor,
		ttl:      10 * time.Minute,
	}
}

func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// Create offers a booking to a mechanic. With no mechanic given, the
// first available online mechanic is picked, a placeholder policy rather than
// proximity matching.
func (s *Service) Create(ctx context.Context, bookingID uuid.UUID, mechanicID *uuid.UUID) (*Dispatch, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != booking.StatusPending && b.Status != booking.StatusConfirmed {
		return nil, ErrBookingNotOpen
	}

	var assignee uuid.UUID
	if mechanicID != nil {
		m, err := s.users.GetMechanic(ctx, *mechanicID)
		if err != nil {
			return nil, err
		}
		assignee = m.ID
	} else {
		m, err := s.users.FirstAvailableMechanic(ctx)
		if err != nil {
			if err == user.ErrNoMechanics {
				return nil, ErrNoMechanics
			}
			return nil, err
		}
		assignee = m.ID
	}

	d := &Dispatch{
		ID:         uuid.New(),
		BookingID:  bookingID,
		MechanicID: assignee,
		Status:     StatusAssigned,
		ExpiresAt:  time.Now().Add(s.ttl),
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	log.Info().
		Str("dispatch_id", d.ID.String()).
		Str("booking_id", bookingID.String()).
		Str("mechanic_id", assignee.String()).
		Msg("dispatch created")

	if s.notifier != nil {
		s.notifier.NotifyAsync(assignee, "New job offer", "You have a new booking offer waiting.")
	}
	return d, nil
}

// Accept atomically marks the dispatch accepted and the booking
// confirmed with the mechanic assigned.
func (s *Service) Accept(ctx context.Context, dispatchID, mechanicID uuid.UUID) (*Dispatch, error) {
	d, err := s.repo.GetByID(ctx, dispatchID)
	if err != nil {
		return nil, err
	}
	if d.MechanicID != mechanicID {
		return nil, ErrNotAssignee
	}
	if d.Status != StatusAssigned {
		return nil, ErrAlreadyDecided
	}
	if time.Now().After(d.ExpiresAt) {
		return nil, ErrExpired
	}

	now := time.Now()
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.repo.AcceptTx(ctx, tx, dispatchID, now); err != nil {
		return nil, err
	}
	if err := s.bookings.AssignMechanicTx(ctx, tx, d.BookingID, mechanicID); err != nil {
		if err == booking.ErrInvalidTransition {
			return nil, ErrBookingNotOpen
		}
		return nil, err
	}
	if err := s.auditor.RecordTx(ctx, tx, audit.Entry{
		ActorID:    mechanicID,
		Action:     audit.ActionDispatchAccepted,
		EntityType: "dispatch",
		EntityID:   dispatchID,
		AfterState: audit.Snapshot(map[string]interface{}{"status": StatusAccepted, "booking_id": d.BookingID}),
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	d.Status = StatusAccepted
	d.AcceptedAt = &now
	log.Info().Str("dispatch_id", dispatchID.String()).Msg("dispatch accepted")
	return d, nil
}

// Reject marks the offer rejected and leaves the booking dispatch-less;
// reassignment is the caller's concern.
func (s *Service) Reject(ctx context.Context, dispatchID, mechanicID uuid.UUID, reason *string) (*Dispatch, error) {
	d, err := s.repo.GetByID(ctx, dispatchID)
	if err != nil {
		return nil, err
	}
	if d.MechanicID != mechanicID {
		return nil, ErrNotAssignee
	}
	if d.Status != StatusAssigned {
		return nil, ErrAlreadyDecided
	}
	if time.Now().After(d.ExpiresAt) {
		return nil, ErrExpired
	}

	now := time.Now()
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.repo.RejectTx(ctx, tx, dispatchID, reason, now); err != nil {
		return nil, err
	}
	if err := s.auditor.RecordTx(ctx, tx, audit.Entry{
		ActorID:    mechanicID,
		Action:     audit.ActionDispatchRejected,
		EntityType: "dispatch",
		EntityID:   dispatchID,
		AfterState: audit.Snapshot(map[string]interface{}{"status": StatusRejected, "booking_id": d.BookingID}),
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	d.Status = StatusRejected
	d.RejectedAt = &now
	d.Reason = reason
	log.Info().Str("dispatch_id", dispatchID.String()).Msg("dispatch rejected")
	return d, nil
}
