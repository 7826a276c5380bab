// internal/domain/appointment/appointment.go
package appointment

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no-show"
)

// Type is the kind of visit.
type Type string

const (
	TypeConsultation Type = "consultation"
	TypeFollowUp     Type = "follow-up"
	TypeEmergency    Type = "emergency"
	TypeRoutine      Type = "routine"
)

var ErrReminderNotFound = errors.New("reminder not found on appointment")
var ErrInvalidTimeRange = errors.New("appointment end time must be after start time")

// Appointment is one scheduled doctor/patient encounter. It owns its reminders.
type Appointment struct {
	ID        string
	DoctorID  string
	PatientID string
	Date      time.Time // calendar date; only year/month/day and location are meaningful
	StartTime string    // "HH:MM"
	EndTime   string    // "HH:MM"
	Status    Status
	Type      Type
	Notes     string
	Reminders []*Reminder
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ParseClock parses an "HH:MM" time of day.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// StartsAt combines the calendar date with the start time of day.
func (a *Appointment) StartsAt() (time.Time, error) {
	h, m, err := ParseClock(a.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(a.Date.Year(), a.Date.Month(), a.Date.Day(), h, m, 0, 0, a.Date.Location()), nil
}

// Validate checks the invariants the core relies on.
func (a *Appointment) Validate() error {
	sh, sm, err := ParseClock(a.StartTime)
	if err != nil {
		return err
	}
	eh, em, err := ParseClock(a.EndTime)
	if err != nil {
		return err
	}
	if eh*60+em <= sh*60+sm {
		return ErrInvalidTimeRange
	}
	return nil
}

// Active reports whether reminders should still go out for this appointment.
func (a *Appointment) Active() bool {
	return a.Status == StatusScheduled || a.Status == StatusConfirmed
}

// InReminderWindow reports whether the appointment's calendar date is today or later
// relative to now, evaluated in the appointment date's location. Only the date is
// compared, so an appointment earlier today still qualifies.
func (a *Appointment) InReminderWindow(now time.Time) bool {
	loc := a.Date.Location()
	n := now.In(loc)
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	day := time.Date(a.Date.Year(), a.Date.Month(), a.Date.Day(), 0, 0, 0, 0, loc)
	return !day.Before(today)
}

// DueReminders returns the reminders that should be attempted at now.
func (a *Appointment) DueReminders(now time.Time) []*Reminder {
	if !a.Active() || !a.InReminderWindow(now) {
		return nil
	}
	var due []*Reminder
	for _, r := range a.Reminders {
		if r.DueAt(now) {
			due = append(due, r)
		}
	}
	return due
}

// Reminder looks up an owned reminder by id.
func (a *Appointment) Reminder(id string) (*Reminder, error) {
	for _, r := range a.Reminders {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, ErrReminderNotFound
}

// MarkReminderSent records a successful delivery. It is a no-op for a reminder
// that is already sent, so sentAt is only ever set once.
func (a *Appointment) MarkReminderSent(reminderID string, at time.Time) error {
	r, err := a.Reminder(reminderID)
	if err != nil {
		return err
	}
	r.markSent(at)
	return nil
}

// MarkAttemptResult records the outcome of one delivery attempt. A nil sendErr is
// equivalent to MarkReminderSent. With maxAttempts > 0 a reminder that has failed
// maxAttempts times is dead-lettered; the return value reports that transition.
func (a *Appointment) MarkAttemptResult(reminderID string, at time.Time, sendErr error, maxAttempts int) (deadLettered bool, err error) {
	r, err := a.Reminder(reminderID)
	if err != nil {
		return false, err
	}
	if r.Terminal() {
		return false, nil
	}
	r.Attempts++
	attemptAt := at
	r.LastAttemptAt = &attemptAt
	if sendErr == nil {
		r.LastError = ""
		r.markSent(at)
		return false, nil
	}
	r.LastError = sendErr.Error()
	if maxAttempts > 0 && r.Attempts >= maxAttempts {
		r.DeadLettered = true
		return true, nil
	}
	return false, nil
}
