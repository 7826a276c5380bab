package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Offset schedules a reminder on Channel at Before ahead of the appointment start.
type Offset struct {
	Channel Channel
	Before  time.Duration
}

// DefaultPlan is the reminder set attached to every new appointment.
var DefaultPlan = []Offset{
	{Channel: ChannelEmail, Before: 24 * time.Hour},
	{Channel: ChannelSMS, Before: 2 * time.Hour},
}

// GenerateReminders computes one unsent reminder per plan entry. The scheduled time is
// the appointment start minus the offset, so it may fall on an earlier calendar day or
// already lie in the past; past reminders are kept and go out on the next dispatch.
func GenerateReminders(a *Appointment, plan []Offset) ([]*Reminder, error) {
	start, err := a.StartsAt()
	if err != nil {
		return nil, err
	}
	reminders := make([]*Reminder, 0, len(plan))
	for _, o := range plan {
		if !o.Channel.Valid() {
			return nil, fmt.Errorf("unknown reminder channel %q", o.Channel)
		}
		reminders = append(reminders, &Reminder{
			ID:           uuid.New().String(),
			Channel:      o.Channel,
			ScheduledFor: start.Add(-o.Before),
		})
	}
	return reminders, nil
}
