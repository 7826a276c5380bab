package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appointment_reminders/internal/domain/appointment"
)

type fakeScheduler struct {
	running bool
	runs    int
}

func (s *fakeScheduler) Running() bool { return s.running }

func (s *fakeScheduler) RunNow() error {
	if !s.running {
		return errors.New("stopped")
	}
	s.runs++
	return nil
}

type fakeSession string

func (s fakeSession) Status() string { return string(s) }

func TestAdminServiceAuthorization(t *testing.T) {
	f := newFixture(t, DispatchOptions{}, patient())
	sched := &fakeScheduler{running: true}
	admin := NewAdminService(f.svc, sched, fakeSession("ready"), 42)

	_, err := admin.StatusFor(7)
	assert.ErrorIs(t, err, ErrAdminNotAuthorized)
	assert.ErrorIs(t, admin.TriggerDispatch(context.Background(), 7), ErrAdminNotAuthorized)
	assert.Equal(t, 0, sched.runs)

	require.NoError(t, admin.TriggerDispatch(context.Background(), 42))
	assert.Equal(t, 1, sched.runs)

	sched.running = false
	assert.Error(t, admin.TriggerDispatch(context.Background(), 42), "stopped scheduler refuses")
	assert.Equal(t, 1, sched.runs)
}

func TestAdminServiceStatus(t *testing.T) {
	f := newFixture(t, DispatchOptions{}, patient(), scheduledAppointment(t, "appt-1"))
	admin := NewAdminService(f.svc, &fakeScheduler{running: true}, fakeSession("ready"), 42)

	st, err := admin.StatusFor(42)
	require.NoError(t, err)
	assert.True(t, st.SchedulerRunning)
	assert.Equal(t, "ready", st.ChatSession)
	assert.Nil(t, st.LastCycle)

	f.svc.RunCycle(context.Background())
	st = admin.Status()
	require.NotNil(t, st.LastCycle)
	assert.Equal(t, 1, st.LastCycle.Sent)
}

func TestAdminServiceWithoutAdminConfigured(t *testing.T) {
	f := newFixture(t, DispatchOptions{}, patient())
	admin := NewAdminService(f.svc, nil, nil, 0)

	assert.False(t, admin.IsAdmin(0))
	assert.Equal(t, "disabled", admin.Status().ChatSession)
}

func TestAdminServiceSendTestNotification(t *testing.T) {
	f := newFixture(t, DispatchOptions{}, patient())
	admin := NewAdminService(f.svc, nil, nil, 42)

	err := admin.SendTestNotification(context.Background(), 7, "patient-1", appointment.ChannelEmail)
	assert.ErrorIs(t, err, ErrAdminNotAuthorized)
	assert.Equal(t, 0, f.email.callCount())

	require.NoError(t, admin.SendTestNotification(context.Background(), 42, "patient-1", appointment.ChannelEmail))
	assert.Equal(t, 1, f.email.callCount())
}
