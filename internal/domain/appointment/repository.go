package appointment

import (
	"context"
	"time"
)

// Repository persists appointments together with their embedded reminders.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id string) (*Appointment, error)
	// FindDueForReminders returns active appointments dated today or later that hold
	// at least one reminder which is unsent and scheduled at or before now.
	FindDueForReminders(ctx context.Context, now time.Time) ([]*Appointment, error)
	// SaveReminders writes the reminder sub-records of a single appointment. A stored
	// reminder that is already sent is never overwritten.
	SaveReminders(ctx context.Context, a *Appointment) error
}
