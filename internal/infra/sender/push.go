package sender

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/sirupsen/logrus"

	"appointment_reminders/internal/domain/appointment"
	"appointment_reminders/internal/domain/notification"
	"appointment_reminders/internal/infra/config"
)

// ErrSubscriptionExpired is returned when the push service no longer knows the endpoint.
var ErrSubscriptionExpired = errors.New("push subscription expired")

const pushTTL = 24 * 60 * 60

type pushFunc func(ctx context.Context, message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error)

// PushSender delivers a JSON payload to the user's stored browser subscription.
type PushSender struct {
	options webpush.Options
	push    pushFunc
	logger  *logrus.Entry
}

func NewPushSender(cfg config.VAPIDConfig, logger *logrus.Entry) *PushSender {
	return &PushSender{
		options: webpush.Options{
			Subscriber:      cfg.Subject,
			VAPIDPublicKey:  cfg.PublicKey,
			VAPIDPrivateKey: cfg.PrivateKey,
			TTL:             pushTTL,
		},
		push:   webpush.SendNotificationWithContext,
		logger: logger,
	}
}

func (s *PushSender) Channel() appointment.Channel { return appointment.ChannelPush }

func (s *PushSender) Send(ctx context.Context, to notification.Contact, msg notification.Message) error {
	sub := to.PushSubscription
	if sub == nil || sub.Endpoint == "" {
		return fmt.Errorf("%w: no push subscription", notification.ErrNoRecipient)
	}
	payload, err := msg.PushJSON()
	if err != nil {
		return err
	}

	opts := s.options
	resp, err := s.push(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
	}, &opts)
	if err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionExpired
	case resp.StatusCode >= 300:
		return fmt.Errorf("push service returned %s", resp.Status)
	}
	s.logger.WithField("user_id", to.UserID).Debug("Push notification sent")
	return nil
}
