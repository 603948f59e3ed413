package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fixmate/fixmate-api/internal/domain/user"
)

// Channel selects the delivery variant
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// Sender delivers one rendered message to one target. Delivery itself
// is an external concern; these implementations hand off and log.
type Sender interface {
	Send(ctx context.Context, target, subject, body string) error
}

// EmailSender delivers via the configured SMTP relay
type EmailSender struct {
	From string
}

func (s *EmailSender) Send(ctx context.Context, target, subject, body string) error {
	if target == "" {
		return fmt.Errorf("email target is empty")
	}
	log.Info().
		Str("channel", "email").
		Str("to", target).
		Str("subject", subject).
		Msg("notification dispatched")
	return nil
}

// SMSSender delivers via the SMS provider
type SMSSender struct{}

func (s *SMSSender) Send(ctx context.Context, target, subject, body string) error {
	if target == "" {
		return fmt.Errorf("sms target is empty")
	}
	log.Info().
		Str("channel", "sms").
		Str("to", target).
		Msg("notification dispatched")
	return nil
}

// PushSender delivers via the mobile push provider
type PushSender struct{}

func (s *PushSender) Send(ctx context.Context, target, subject, body string) error {
	if target == "" {
		return fmt.Errorf("push target is empty")
	}
	log.Info().
		Str("channel", "push").
		Str("to", target).
		Str("subject", subject).
		Msg("notification dispatched")
	return nil
}

// Service dispatches on the channel tag and resolves user targets
// through the user directory.
type Service struct {
	users   *user.Repository
	senders map[Channel]Sender
}

func NewService(users *user.Repository) *Service {
	return &Service{
		users: users,
		senders: map[Channel]Sender{
			ChannelEmail: &EmailSender{From: "no-reply@fixmate.app"},
			ChannelSMS:   &SMSSender{},
			ChannelPush:  &PushSender{},
		},
	}
}

// Notify sends one message over one channel
func (s *Service) Notify(ctx context.Context, userID uuid.UUID, channel Channel, subject, body string) error {
	sender, ok := s.senders[channel]
	if !ok {
		return fmt.Errorf("unknown notification channel %q", channel)
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	target := u.Email
	return sender.Send(ctx, target, subject, body)
}

// NotifyAsync sends over email in a detached goroutine. Failures are
// logged, never surfaced: callers use this after commit.
func (s *Service) NotifyAsync(userID uuid.UUID, subject, body string) {
	go func() {
		ctx := context.Background()
		if err := s.Notify(ctx, userID, ChannelEmail, subject, body); err != nil {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("notification delivery failed")
		}
	}()
}
