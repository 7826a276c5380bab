package appointment

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAppointment(t *testing.T, date time.Time, start string) *Appointment {
	t.Helper()
	a := &Appointment{
		ID:        "appt-1",
		DoctorID:  "doc-1",
		PatientID: "pat-1",
		Date:      date,
		StartTime: start,
		EndTime:   "23:59",
		Status:    StatusScheduled,
		Type:      TypeConsultation,
	}
	reminders, err := GenerateReminders(a, DefaultPlan)
	require.NoError(t, err)
	a.Reminders = reminders
	return a
}

func TestGenerateRemindersDefaultPlan(t *testing.T) {
	date := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	a := newAppointment(t, date, "10:30")

	require.Len(t, a.Reminders, 2)
	start := time.Date(2024, 6, 10, 10, 30, 0, 0, time.UTC)

	assert.Equal(t, ChannelEmail, a.Reminders[0].Channel)
	assert.Equal(t, start.Add(-24*time.Hour), a.Reminders[0].ScheduledFor)
	assert.Equal(t, ChannelSMS, a.Reminders[1].Channel)
	assert.Equal(t, start.Add(-2*time.Hour), a.Reminders[1].ScheduledFor)

	for _, r := range a.Reminders {
		assert.NotEmpty(t, r.ID)
		assert.False(t, r.Sent)
		assert.Nil(t, r.SentAt)
	}
	assert.NotEqual(t, a.Reminders[0].ID, a.Reminders[1].ID)
}

func TestGenerateRemindersRollsIntoPreviousDay(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	a := newAppointment(t, date, "01:00")

	// 01:00 minus 2h lands on the last day of February (leap year).
	assert.Equal(t, time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC), a.Reminders[1].ScheduledFor)
	assert.Equal(t, time.Date(2024, 2, 29, 1, 0, 0, 0, time.UTC), a.Reminders[0].ScheduledFor)
}

func TestGenerateRemindersRejectsBadInput(t *testing.T) {
	a := &Appointment{Date: time.Now(), StartTime: "25:00"}
	_, err := GenerateReminders(a, DefaultPlan)
	assert.Error(t, err)

	a.StartTime = "09:00"
	_, err = GenerateReminders(a, []Offset{{Channel: "fax", Before: time.Hour}})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	a := &Appointment{StartTime: "10:00", EndTime: "10:30"}
	assert.NoError(t, a.Validate())

	a.EndTime = "10:00"
	assert.ErrorIs(t, a.Validate(), ErrInvalidTimeRange)

	a.EndTime = "09:00"
	assert.ErrorIs(t, a.Validate(), ErrInvalidTimeRange)
}

func TestDueRemindersScenario(t *testing.T) {
	date := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	a := newAppointment(t, date, "10:00")

	due := a.DueReminders(time.Date(2024, 6, 9, 9, 59, 0, 0, time.UTC))
	assert.Empty(t, due, "email reminder must not be due one minute early")

	due = a.DueReminders(time.Date(2024, 6, 9, 10, 1, 0, 0, time.UTC))
	require.Len(t, due, 1)
	assert.Equal(t, ChannelEmail, due[0].Channel)

	due = a.DueReminders(time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC))
	assert.Len(t, due, 2)
}

func TestDueRemindersExcludesPastDates(t *testing.T) {
	date := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	a := newAppointment(t, date, "10:00")

	// Same calendar day but after the start time still qualifies.
	assert.Len(t, a.DueReminders(time.Date(2024, 6, 10, 23, 0, 0, 0, time.UTC)), 2)
	// The next day the appointment has left the window.
	assert.Empty(t, a.DueReminders(time.Date(2024, 6, 11, 0, 0, 1, 0, time.UTC)))
}

func TestDueRemindersExcludesInactiveAppointments(t *testing.T) {
	date := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

	for _, status := range []Status{StatusCancelled, StatusCompleted, StatusNoShow} {
		a := newAppointment(t, date, "10:00")
		a.Status = status
		assert.Empty(t, a.DueReminders(now), "status %s", status)
	}

	a := newAppointment(t, date, "10:00")
	a.Status = StatusConfirmed
	assert.Len(t, a.DueReminders(now), 2)
}

func TestMarkReminderSentIsIdempotent(t *testing.T) {
	a := newAppointment(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), "10:00")
	id := a.Reminders[0].ID
	first := time.Date(2024, 6, 9, 10, 1, 0, 0, time.UTC)

	require.NoError(t, a.MarkReminderSent(id, first))
	require.NoError(t, a.MarkReminderSent(id, first.Add(time.Minute)))

	r, err := a.Reminder(id)
	require.NoError(t, err)
	assert.True(t, r.Sent)
	require.NotNil(t, r.SentAt)
	assert.Equal(t, first, *r.SentAt)

	_, err = a.MarkAttemptResult(id, first.Add(2*time.Minute), errors.New("late failure"), 0)
	require.NoError(t, err)
	assert.True(t, r.Sent, "a sent reminder never reverts")
	assert.Equal(t, first, *r.SentAt)

	assert.ErrorIs(t, a.MarkReminderSent("missing", first), ErrReminderNotFound)
}

func TestMarkAttemptResultFailureKeepsReminderDue(t *testing.T) {
	a := newAppointment(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), "10:00")
	r := a.Reminders[0]
	now := time.Date(2024, 6, 9, 12, 0, 0, 0, time.UTC)

	for i := 1; i <= 5; i++ {
		dead, err := a.MarkAttemptResult(r.ID, now, errors.New("smtp down"), 0)
		require.NoError(t, err)
		assert.False(t, dead)
		assert.Equal(t, i, r.Attempts)
	}
	assert.False(t, r.Sent)
	assert.Nil(t, r.SentAt)
	assert.Equal(t, "smtp down", r.LastError)
	assert.True(t, r.DueAt(now))
}

func TestMarkAttemptResultDeadLettersAfterMaxAttempts(t *testing.T) {
	a := newAppointment(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), "10:00")
	r := a.Reminders[1]
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

	dead, err := a.MarkAttemptResult(r.ID, now, errors.New("no phone"), 2)
	require.NoError(t, err)
	assert.False(t, dead)

	dead, err = a.MarkAttemptResult(r.ID, now, errors.New("no phone"), 2)
	require.NoError(t, err)
	assert.True(t, dead)
	assert.True(t, r.DeadLettered)
	assert.False(t, r.Sent)
	assert.False(t, r.DueAt(now))

	dead, err = a.MarkAttemptResult(r.ID, now, errors.New("no phone"), 2)
	require.NoError(t, err)
	assert.False(t, dead, "dead letter transition is reported once")
	assert.Equal(t, 2, r.Attempts)
}
