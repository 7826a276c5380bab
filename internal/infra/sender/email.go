package sender

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"appointment_reminders/internal/domain/appointment"
	"appointment_reminders/internal/domain/notification"
	"appointment_reminders/internal/infra/config"
)

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender delivers the HTML reminder over SMTP.
type EmailSender struct {
	dialer mailDialer
	from   string
	logger *logrus.Entry
}

func NewEmailSender(cfg config.SMTPConfig, logger *logrus.Entry) *EmailSender {
	return &EmailSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

func (s *EmailSender) Channel() appointment.Channel { return appointment.ChannelEmail }

func (s *EmailSender) Send(ctx context.Context, to notification.Contact, msg notification.Message) error {
	if to.Email == "" {
		return notification.ErrNoRecipient
	}
	body, err := msg.HTML()
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to.Email)
	m.SetHeader("Subject", msg.Subject())
	m.SetBody("text/html", body)
	m.AddAlternative("text/plain", msg.Text())

	if err := await(ctx, func() error { return s.dialer.DialAndSend(m) }); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.logger.WithField("user_id", to.UserID).Debug("Email sent")
	return nil
}
