package appointment

import "time"

// Reminder is a channel-specific notification scheduled for one appointment.
// Channel and ScheduledFor never change after creation; only the delivery state moves.
type Reminder struct {
	ID            string     `json:"id"`
	Channel       Channel    `json:"channel"`
	ScheduledFor  time.Time  `json:"scheduled_for"`
	Sent          bool       `json:"sent"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	Attempts      int        `json:"attempts"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	DeadLettered  bool       `json:"dead_lettered"`
}

// Terminal reports whether the reminder will never be attempted again.
func (r *Reminder) Terminal() bool {
	return r.Sent || r.DeadLettered
}

// DueAt reports whether the reminder is unsent and its scheduled time has passed.
func (r *Reminder) DueAt(now time.Time) bool {
	return !r.Terminal() && !r.ScheduledFor.After(now)
}

func (r *Reminder) markSent(at time.Time) {
	if r.Sent {
		return
	}
	sentAt := at
	r.Sent = true
	r.SentAt = &sentAt
}
