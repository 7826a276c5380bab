package sender

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"appointment_reminders/internal/domain/appointment"
	"appointment_reminders/internal/domain/notification"
	domainTelegram "appointment_reminders/internal/domain/telegram"
)

// ChatSender delivers the plain-text reminder to the user's linked chat.
type ChatSender struct {
	client domainTelegram.Client
	logger *logrus.Entry
}

func NewChatSender(client domainTelegram.Client, logger *logrus.Entry) *ChatSender {
	return &ChatSender{client: client, logger: logger}
}

func (s *ChatSender) Channel() appointment.Channel { return appointment.ChannelChat }

func (s *ChatSender) Send(ctx context.Context, to notification.Contact, msg notification.Message) error {
	if to.ChatID == 0 {
		return fmt.Errorf("%w: chat not linked", notification.ErrNoRecipient)
	}
	if err := await(ctx, func() error { return s.client.SendMessage(to.ChatID, msg.Text()) }); err != nil {
		return fmt.Errorf("failed to send chat message: %w", err)
	}
	s.logger.WithField("user_id", to.UserID).Debug("Chat message sent")
	return nil
}
