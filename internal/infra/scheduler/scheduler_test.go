package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appointment_reminders/internal/app"
)

type countingDispatcher struct {
	runs    atomic.Int32
	release chan struct{}
}

func (d *countingDispatcher) RunCycle(context.Context) app.CycleReport {
	d.runs.Add(1)
	if d.release != nil {
		<-d.release
	}
	return app.CycleReport{}
}

func newScheduler(t *testing.T, d Dispatcher, spec string) *ReminderScheduler {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return NewReminderScheduler(d, logrus.NewEntry(logger), spec, time.UTC)
}

func TestStartTwiceKeepsOneEntry(t *testing.T) {
	s := newScheduler(t, &countingDispatcher{}, "@every 1m")

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	assert.Equal(t, StateRunning, s.State())
	assert.Len(t, s.cronEngine.Entries(), 1)

	<-s.Stop().Done()
	assert.Equal(t, StateStopped, s.State())
	assert.Empty(t, s.cronEngine.Entries())

	// stopping again is a no-op
	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("second Stop did not complete")
	}
}

func TestRestartAfterStop(t *testing.T) {
	s := newScheduler(t, &countingDispatcher{}, "@every 1m")

	require.NoError(t, s.Start())
	<-s.Stop().Done()
	require.NoError(t, s.Start())
	assert.True(t, s.Running())
	assert.Len(t, s.cronEngine.Entries(), 1)
	<-s.Stop().Done()
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := newScheduler(t, &countingDispatcher{}, "not a schedule")
	assert.Error(t, s.Start())
	assert.Equal(t, StateStopped, s.State())
}

func TestSchedulerTicks(t *testing.T) {
	d := &countingDispatcher{}
	s := newScheduler(t, d, "@every 1s")

	require.NoError(t, s.Start())
	defer s.Stop()

	require.Eventually(t, func() bool { return d.runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestStopWaitsForInFlightCycle(t *testing.T) {
	d := &countingDispatcher{release: make(chan struct{})}
	s := newScheduler(t, d, "@every 1m")
	require.NoError(t, s.Start())

	require.NoError(t, s.RunNow())
	require.Eventually(t, func() bool { return d.runs.Load() == 1 }, time.Second, 10*time.Millisecond)

	done := s.Stop().Done()
	assert.False(t, s.Running(), "no new ticks after Stop")
	select {
	case <-done:
		t.Fatal("Stop finished before the running cycle")
	case <-time.After(50 * time.Millisecond):
	}

	close(d.release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not finish after the cycle completed")
	}
}

func TestRunNowRefusedWhenStopped(t *testing.T) {
	d := &countingDispatcher{}
	s := newScheduler(t, d, "@every 1m")

	assert.ErrorIs(t, s.RunNow(), ErrStopped, "never started")

	require.NoError(t, s.Start())
	<-s.Stop().Done()
	assert.ErrorIs(t, s.RunNow(), ErrStopped)

	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("Stop did not complete")
	}
	assert.Equal(t, int32(0), d.runs.Load())
}
