// Package sender holds the channel senders that wrap external delivery providers.
package sender

import (
	"context"
	"fmt"

	"appointment_reminders/internal/domain/appointment"
	"appointment_reminders/internal/domain/notification"
)

// await runs a provider call that has no context support and gives up when ctx ends.
// The call itself keeps running in the background until the provider returns.
func await(ctx context.Context, call func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- call()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unavailable stands in for a channel whose provider is not configured.
type Unavailable struct {
	channel appointment.Channel
	reason  string
}

func NewUnavailable(ch appointment.Channel, reason string) *Unavailable {
	return &Unavailable{channel: ch, reason: reason}
}

func (u *Unavailable) Channel() appointment.Channel { return u.channel }

func (u *Unavailable) Send(context.Context, notification.Contact, notification.Message) error {
	return fmt.Errorf("%w: %s", notification.ErrChannelUnavailable, u.reason)
}
