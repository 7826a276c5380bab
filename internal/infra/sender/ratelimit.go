package sender

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"appointment_reminders/internal/domain/appointment"
	"appointment_reminders/internal/domain/notification"
)

// RateLimited throttles calls to the wrapped sender.
type RateLimited struct {
	next    notification.Sender
	limiter *rate.Limiter
}

func NewRateLimited(next notification.Sender, perSecond float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (r *RateLimited) Channel() appointment.Channel { return r.next.Channel() }

func (r *RateLimited) Send(ctx context.Context, to notification.Contact, msg notification.Message) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit: %w", r.next.Channel(), err)
	}
	return r.next.Send(ctx, to, msg)
}
