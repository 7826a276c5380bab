// internal/domain/notification/sender.go
package notification

import (
	"context"
	"errors"

	"appointment_reminders/internal/domain/appointment"
	"appointment_reminders/internal/domain/user"
)

// Expected failure modes. Senders return these (possibly wrapped) instead of panicking.
var (
	ErrNoRecipient        = errors.New("recipient has no contact details for this channel")
	ErrChannelUnavailable = errors.New("channel provider is not configured")
	ErrSessionNotReady    = errors.New("chat session is not ready")
)

// Contact is the recipient data a sender may need.
type Contact struct {
	UserID           string
	Email            string
	PhoneNumber      string
	ChatID           int64
	PushSubscription *user.PushSubscription
}

// ContactOf extracts the contact details of a user.
func ContactOf(u *user.User) Contact {
	return Contact{
		UserID:           u.ID,
		Email:            u.Email,
		PhoneNumber:      u.PhoneNumber,
		ChatID:           u.ChatID,
		PushSubscription: u.PushSubscription,
	}
}

// Sender delivers a rendered message over one channel. A nil error means the
// provider accepted the message.
type Sender interface {
	Channel() appointment.Channel
	Send(ctx context.Context, to Contact, msg Message) error
}
