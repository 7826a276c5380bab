package notification

import (
	"time"

	"appointment_reminders/internal/domain/appointment"
)

// DeadLetter describes a reminder that was given up on after repeated failures.
type DeadLetter struct {
	AppointmentID  string              `json:"appointment_id"`
	ReminderID     string              `json:"reminder_id"`
	PatientID      string              `json:"patient_id"`
	Channel        appointment.Channel `json:"channel"`
	ScheduledFor   time.Time           `json:"scheduled_for"`
	Attempts       int                 `json:"attempts"`
	LastError      string              `json:"last_error"`
	DeadLetteredAt time.Time           `json:"dead_lettered_at"`
}

// NewDeadLetter snapshots a dead-lettered reminder.
func NewDeadLetter(a *appointment.Appointment, r *appointment.Reminder, at time.Time) DeadLetter {
	return DeadLetter{
		AppointmentID:  a.ID,
		ReminderID:     r.ID,
		PatientID:      a.PatientID,
		Channel:        r.Channel,
		ScheduledFor:   r.ScheduledFor,
		Attempts:       r.Attempts,
		LastError:      r.LastError,
		DeadLetteredAt: at,
	}
}
