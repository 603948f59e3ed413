package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/fixmate/fixmate-api/internal/domain/audit"
	"github.com/fixmate/fixmate-api/internal/domain/wallet"
	"github.com/fixmate/fixmate-api/internal/pkg/gateway"
)

// BookingInfo is the slice of a booking the settlement engine needs
type BookingInfo struct {
	ID            uuid.UUID
	CustomerID    uuid.UUID
	MechanicID    *uuid.UUID
	Price         int64
	Status        string
	CustomerEmail string
}

// BookingStore breaks the package cycle with the booking domain; the
// composition root passes an adapter over the booking repository.
type BookingStore interface {
	Get(ctx context.Context, id uuid.UUID) (*BookingInfo, error)
	// ConfirmTx moves a pending booking to confirmed inside the
	// caller's transaction; confirming an already-confirmed booking is
	// a no-op.
	ConfirmTx(ctx context.Context, tx *sqlx.Tx, bookingID uuid.UUID) error
}

// Notifier delivers fire-and-forget user notifications after commit
type Notifier interface {
	NotifyAsync(userID uuid.UUID, subject, body string)
}

// Service is the payment settlement engine: it owns payment rows,
// idempotency, and webhook verification, and drives the booking
// confirmation + wallet credit side effects.
type Service struct {
	repo     *Repository
	gw       gateway.Gateway
	gateways map[string]gateway.Gateway
	bookings BookingStore
	wallets  *wallet.Repository
	auditor  *audit.Repository
	notifier Notifier
	rdb      *redis.Client
}

func NewService(repo *Repository, gw gateway.Gateway, bookings BookingStore, wallets *wallet.Repository, auditor *audit.Repository) *Service {
	s := &Service{
		repo:     repo,
		gw:       gw,
		gateways: map[string]gateway.Gateway{},
		bookings: bookings,
		wallets:  wallets,
		auditor:  auditor,
	}
	if gw != nil {
		s.gateways[gw.Name()] = gw
	}
	return s
}

// SetNotifier wires the notifier after construction (optional)
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// SetRedis wires the webhook replay log (optional, observability only)
func (s *Service) SetRedis(rdb *redis.Client) { s.rdb = rdb }

// RegisterGateway adds a gateway for webhook routing beyond the primary
func (s *Service) RegisterGateway(gw gateway.Gateway) {
	s.gateways[gw.Name()] = gw
}

// NewReference builds the gateway-visible idempotency key for one
// payment attempt against a booking.
func NewReference(bookingID uuid.UUID) string {
	return fmt.Sprintf("FXM-%s-%d", strings.ReplaceAll(bookingID.String(), "-", "")[:8], time.Now().Unix())
}

// Initialize starts a payment for a pending booking. The amount must
// match the booking price exactly; anything else is rejected before the
// gateway is called.
func (s *Service) Initialize(ctx context.Context, bookingID uuid.UUID, amount int64, email string, metadata map[string]string) (*Payment, error) {
	booking, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, ErrBookingNotFound
	}
	if booking.Status != "pending" {
		return nil, ErrBookingNotPending
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount != booking.Price {
		return nil, ErrAmountMismatch
	}

	if email == "" {
		email = booking.CustomerEmail
	}
	reference := NewReference(bookingID)

	resp, err := s.gw.InitializePayment(ctx, gateway.InitializeRequest{
		Reference: reference,
		Amount:    amount,
		Email:     email,
		Metadata:  metadata,
	})
	if err != nil {
		return nil, err
	}

	p := &Payment{
		ID:                 uuid.New(),
		BookingID:          bookingID,
		Reference:          reference,
		Amount:             amount,
		Status:             StatusPending,
		Provider:           s.gw.Name(),
		PaymentURL:         resp.PaymentURL,
		RawGatewayResponse: resp.Raw,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	log.Info().
		Str("reference", reference).
		Str("booking_id", bookingID.String()).
		Int64("amount", amount).
		Msg("payment initialized")
	return p, nil
}

// Verify settles a payment against the gateway. Idempotent: a payment
// already in success/captured is returned unchanged without another
// gateway call. A gateway-reported amount that differs from the stored
// amount is treated as suspected fraud and hard-fails without touching
// the payment.
func (s *Service) Verify(ctx context.Context, reference string) (*Payment, error) {
	p, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if p.Status.IsSettled() {
		return p, nil
	}
	if p.Status.IsTerminal() {
		return nil, ErrInvalidStatus
	}

	result, err := s.gw.VerifyPayment(ctx, reference)
	if err != nil {
		return nil, err
	}

	switch result.Status {
	case gateway.StatusSuccess:
		if result.Amount != p.Amount {
			log.Error().
				Str("reference", reference).
				Int64("expected", p.Amount).
				Int64("reported", result.Amount).
				Msg("payment amount mismatch, manual review required")
			return nil, ErrAmountMismatch
		}
		return s.settleSuccess(ctx, p, result.Raw)
	case gateway.StatusFailed:
		if err := s.repo.UpdateStatus(ctx, p.ID, StatusFailed, result.Raw); err != nil {
			return nil, err
		}
		return nil, ErrPaymentFailed
	default:
		return nil, ErrPaymentPending
	}
}

// settleSuccess flips the payment to success, confirms the booking, and
// credits the assigned mechanic, all in one transaction. The wallet credit is
// keyed by the payment reference, so duplicate deliveries credit once.
func (s *Service) settleSuccess(ctx context.Context, p *Payment, raw []byte) (*Payment, error) {
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	locked, err := s.repo.GetByReferenceForUpdate(ctx, tx, p.Reference)
	if err != nil {
		return nil, err
	}
	if locked.Status.IsSettled() {
		// another delivery won the race
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return locked, nil
	}
	if locked.Status.IsTerminal() {
		return nil, ErrInvalidStatus
	}

	if err := s.repo.UpdateStatusTx(ctx, tx, locked.ID, StatusSuccess, raw); err != nil {
		return nil, err
	}

	booking, err := s.bookings.Get(ctx, locked.BookingID)
	if err != nil {
		return nil, err
	}
	if err := s.bookings.ConfirmTx(ctx, tx, locked.BookingID); err != nil {
		return nil, err
	}

	var mechanicID uuid.UUID
	if booking.MechanicID != nil {
		mechanicID = *booking.MechanicID
		_, err = s.wallets.ApplyTx(ctx, tx, mechanicID, locked.Amount, wallet.TransactionTypeCredit, wallet.ApplyOptions{
			BookingID: &locked.BookingID,
			Reference: locked.Reference,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := s.auditor.RecordTx(ctx, tx, audit.Entry{
		ActorID:     booking.CustomerID,
		Action:      audit.ActionPaymentVerified,
		EntityType:  "payment",
		EntityID:    locked.ID,
		BeforeState: audit.Snapshot(map[string]interface{}{"status": locked.Status}),
		AfterState:  audit.Snapshot(map[string]interface{}{"status": StatusSuccess, "amount": locked.Amount}),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	locked.Status = StatusSuccess
	log.Info().
		Str("reference", locked.Reference).
		Int64("amount", locked.Amount).
		Msg("payment settled")

	if s.notifier != nil {
		s.notifier.NotifyAsync(booking.CustomerID, "Payment received", "Your booking payment was confirmed.")
		if mechanicID != uuid.Nil {
			s.notifier.NotifyAsync(mechanicID, "Booking paid", "A booking you are assigned to has been paid.")
		}
	}
	return locked, nil
}

// HandleWebhook verifies the provider signature over the raw body, then
// routes the event. Business-rule failures from Verify are swallowed so
// the endpoint answers 200 and the provider stops retrying; infra
// failures propagate for a retryable 5xx.
func (s *Service) HandleWebhook(ctx context.Context, provider, signature string, rawBody []byte) error {
	gw, ok := s.gateways[provider]
	if !ok {
		return ErrInvalidSignature
	}
	if !gw.VerifyWebhookSignature(rawBody, signature) {
		return ErrInvalidSignature
	}

	s.logReplay(ctx, provider, rawBody)

	event, err := gw.ParseWebhookEvent(rawBody)
	if err != nil {
		log.Warn().Err(err).Str("provider", provider).Msg("unparseable webhook body, ignoring")
		return nil
	}

	switch event.Type {
	case gateway.EventChargeSuccess:
		if _, err := s.Verify(ctx, event.Reference); err != nil {
			if isBusinessError(err) {
				log.Warn().Err(err).Str("reference", event.Reference).Msg("webhook verify rejected")
				return nil
			}
			return err
		}
		return nil
	case gateway.EventChargeFailed:
		return s.markFailed(ctx, event.Reference, event.Raw)
	default:
		log.Info().Str("provider", provider).Str("event", event.Type).Msg("ignoring webhook event")
		return nil
	}
}

func (s *Service) markFailed(ctx context.Context, reference string, raw []byte) error {
	p, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn().Str("reference", reference).Msg("failure webhook for unknown payment")
			return nil
		}
		return err
	}
	if p.Status.IsSettled() || p.Status.IsTerminal() {
		// never regress a settled or terminal payment on a late failure event
		return nil
	}
	return s.repo.UpdateStatus(ctx, p.ID, StatusFailed, raw)
}

// logReplay records webhook bodies in redis with a short TTL so
// duplicate deliveries are visible in logs. Idempotency itself is
// DB-enforced; this is observability only.
func (s *Service) logReplay(ctx context.Context, provider string, rawBody []byte) {
	if s.rdb == nil {
		return
	}
	sum := sha256.Sum256(rawBody)
	key := "webhook:seen:" + provider + ":" + hex.EncodeToString(sum[:])
	set, err := s.rdb.SetNX(ctx, key, 1, 24*time.Hour).Result()
	if err != nil {
		log.Warn().Err(err).Msg("webhook replay log unavailable")
		return
	}
	if !set {
		log.Info().Str("provider", provider).Str("key", key).Msg("duplicate webhook delivery")
	}
}

// Capture settles an authorized payment at the gateway in its own
// transaction. A gateway rejection marks the payment capture_failed:
// terminal, no silent retry.
func (s *Service) Capture(ctx context.Context, reference string) (*Payment, error) {
	p, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	locked, err := s.repo.GetByReferenceForUpdate(ctx, tx, reference)
	if err != nil {
		return nil, err
	}
	if err := s.CaptureTx(ctx, tx, locked); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	p.Status = StatusCaptured
	return p, nil
}

// CaptureTx captures inside the caller's transaction (booking
// completion joins the capture, wallet credit, and counter bump in one
// commit). The capture_failed mark is written outside the transaction
// so it survives the caller's rollback.
func (s *Service) CaptureTx(ctx context.Context, tx *sqlx.Tx, p *Payment) error {
	switch p.Status {
	case StatusCaptured:
		return nil
	case StatusSuccess:
		// already settled by webhook; record the capture state only
		return s.repo.UpdateStatusTx(ctx, tx, p.ID, StatusCaptured, nil)
	case StatusAuthorized, StatusPending:
		if err := s.gw.CapturePayment(ctx, p.Reference); err != nil {
			s.markCaptureFailedAsync(p.ID, p.Reference)
			return fmt.Errorf("%w: %v", ErrCaptureFailed, err)
		}
		return s.repo.UpdateStatusTx(ctx, tx, p.ID, StatusCaptured, nil)
	default:
		return ErrInvalidStatus
	}
}

// markCaptureFailedAsync records the terminal capture failure once the
// caller's transaction has released the row lock; a direct write here
// would wait on our own caller's FOR UPDATE.
func (s *Service) markCaptureFailedAsync(id uuid.UUID, reference string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.repo.UpdateStatus(ctx, id, StatusCaptureFailed, nil); err != nil {
			log.Error().Err(err).Str("reference", reference).Msg("failed to mark capture_failed")
		}
	}()
}

// CaptureForBookingTx locks the booking's payment inside the caller's
// transaction, checks it can drive completion, and captures it.
func (s *Service) CaptureForBookingTx(ctx context.Context, tx *sqlx.Tx, bookingID uuid.UUID) (*Payment, error) {
	p, err := s.repo.GetByBookingIDForUpdate(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case StatusAuthorized, StatusSuccess, StatusCaptured:
	default:
		return nil, ErrInvalidStatus
	}
	if err := s.CaptureTx(ctx, tx, p); err != nil {
		return nil, err
	}
	p.Status = StatusCaptured
	return p, nil
}

// Refund refunds part or all of a settled payment. The row lock is
// taken before the gateway call so concurrent refunds serialize: the
// loser re-reads the refunded amount and fails validation before any
// money moves at the provider. A gateway rejection marks refund_failed;
// wallet-side compensation is the caller's responsibility.
func (s *Service) Refund(ctx context.Context, reference string, amount int64, actorID uuid.UUID) (*Payment, error) {
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	p, err := s.repo.GetByReferenceForUpdate(ctx, tx, reference)
	if err != nil {
		return nil, err
	}

	switch p.Status {
	case StatusAuthorized, StatusSuccess, StatusCaptured, StatusPartiallyRefunded:
	default:
		return nil, ErrInvalidStatus
	}
	if amount <= 0 || amount > p.Remaining() {
		return nil, ErrInvalidAmount
	}

	if err := s.gw.RefundPayment(ctx, reference, amount); err != nil {
		// release the row lock before the non-tx failure mark
		tx.Rollback()
		if markErr := s.repo.UpdateStatus(ctx, p.ID, StatusRefundFailed, nil); markErr != nil {
			log.Error().Err(markErr).Str("reference", reference).Msg("failed to mark refund_failed")
		}
		return nil, fmt.Errorf("%w: %v", ErrRefundFailed, err)
	}

	status := StatusPartiallyRefunded
	if p.RefundedAmount+amount == p.Amount {
		status = StatusRefunded
	}

	if err := s.repo.ApplyRefundTx(ctx, tx, p.ID, amount, status); err != nil {
		return nil, err
	}
	if err := s.auditor.RecordTx(ctx, tx, audit.Entry{
		ActorID:    actorID,
		Action:     audit.ActionPaymentRefunded,
		EntityType: "payment",
		EntityID:   p.ID,
		BeforeState: audit.Snapshot(map[string]interface{}{
			"status": p.Status, "refunded_amount": p.RefundedAmount,
		}),
		AfterState: audit.Snapshot(map[string]interface{}{
			"status": status, "refunded_amount": p.RefundedAmount + amount,
		}),
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	p.RefundedAmount += amount
	p.Status = status
	log.Info().
		Str("reference", reference).
		Int64("amount", amount).
		Str("status", string(status)).
		Msg("payment refunded")
	return p, nil
}

// GetByBooking returns the latest payment for a booking
func (s *Service) GetByBooking(ctx context.Context, bookingID uuid.UUID) (*Payment, error) {
	return s.repo.GetByBookingID(ctx, bookingID)
}

// CancelStale handles one pending payment past the cutoff. The gateway
// is re-verified first: a charge that actually settled but whose
// webhook was delayed must settle, not cancel.
func (s *Service) CancelStale(ctx context.Context, p Payment) error {
	result, err := s.gw.VerifyPayment(ctx, p.Reference)
	if err == nil && result.Status == gateway.StatusSuccess {
		_, verr := s.Verify(ctx, p.Reference)
		return verr
	}
	if err != nil && !gateway.IsClientError(err) {
		// gateway unreachable: leave the payment for the next sweep
		return err
	}

	if err := s.repo.UpdateStatus(ctx, p.ID, StatusCancelled, nil); err != nil {
		return err
	}
	log.Info().Str("reference", p.Reference).Msg("stale pending payment cancelled")
	return nil
}

// ListStale exposes pending payments older than the cutoff for the
// sweep worker.
func (s *Service) ListStale(ctx context.Context, cutoff time.Time) ([]Payment, error) {
	return s.repo.ListPendingOlderThan(ctx, cutoff, 100)
}

func isBusinessError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrPaymentFailed),
		errors.Is(err, ErrPaymentPending),
		errors.Is(err, ErrAmountMismatch),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrBookingNotPending),
		errors.Is(err, wallet.ErrReferenceConflict):
		return true
	}
	return gateway.IsClientError(err)
}
