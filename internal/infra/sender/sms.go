package sender

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"appointment_reminders/internal/domain/appointment"
	"appointment_reminders/internal/domain/notification"
	"appointment_reminders/internal/infra/config"
)

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// SMSSender delivers the plain-text reminder through Twilio.
type SMSSender struct {
	api    messageCreator
	from   string
	logger *logrus.Entry
}

func NewSMSSender(cfg config.TwilioConfig, logger *logrus.Entry) *SMSSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &SMSSender{api: client.Api, from: cfg.PhoneNumber, logger: logger}
}

func (s *SMSSender) Channel() appointment.Channel { return appointment.ChannelSMS }

func (s *SMSSender) Send(ctx context.Context, to notification.Contact, msg notification.Message) error {
	if to.PhoneNumber == "" {
		return notification.ErrNoRecipient
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to.PhoneNumber)
	params.SetFrom(s.from)
	params.SetBody(msg.Text())

	var resp *openapi.ApiV2010Message
	err := await(ctx, func() error {
		var err error
		resp, err = s.api.CreateMessage(params)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}
	logCtx := s.logger.WithField("user_id", to.UserID)
	if resp != nil && resp.Sid != nil {
		logCtx = logCtx.WithField("sid", *resp.Sid)
	}
	logCtx.Debug("SMS sent")
	return nil
}
