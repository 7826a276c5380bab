package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"appointment_reminders/internal/app"
)

// Dispatcher runs one dispatch cycle.
type Dispatcher interface {
	RunCycle(ctx context.Context) app.CycleReport
}

// ErrStopped is returned by RunNow once the scheduler has been stopped.
var ErrStopped = errors.New("reminder scheduler is stopped")

type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// ReminderScheduler drives the dispatch cycle on a fixed interval. Ticks do not
// wait for the previous cycle, so cycles may overlap when one runs long.
type ReminderScheduler struct {
	cronEngine *cron.Cron
	dispatcher Dispatcher
	logger     *logrus.Entry
	cronSpec   string

	mu       sync.Mutex
	state    State
	entryID  cron.EntryID
	inflight sync.WaitGroup
}

func NewReminderScheduler(d Dispatcher, logger *logrus.Entry, cronSpec string, loc *time.Location) *ReminderScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &ReminderScheduler{
		cronEngine: cron.New(cron.WithLocation(loc), cron.WithLogger(cron.PrintfLogger(logger))),
		dispatcher: d,
		logger:     logger,
		cronSpec:   cronSpec,
		state:      StateStopped,
	}
}

// Start registers the dispatch job and starts the timer. Calling it while running is a no-op.
func (s *ReminderScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		s.logger.Debug("Reminder scheduler already running")
		return nil
	}

	id, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.logger.Debug("Cron job triggered for reminder dispatch")
		s.runCycle()
	})
	if err != nil {
		return err
	}
	s.entryID = id
	s.cronEngine.Start()
	s.state = StateRunning
	s.logger.WithField("spec", s.cronSpec).Info("Reminder scheduler started")
	return nil
}

// Stop prevents new ticks. It does not cancel a cycle that is already running; the
// returned context is done once in-flight cycles have finished.
func (s *ReminderScheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	if s.state == StateStopped {
		go func() {
			s.inflight.Wait()
			cancel()
		}()
		return ctx
	}

	s.logger.Info("Stopping reminder scheduler...")
	cronCtx := s.cronEngine.Stop()
	s.cronEngine.Remove(s.entryID)
	s.state = StateStopped
	go func() {
		<-cronCtx.Done()
		s.inflight.Wait()
		cancel()
		s.logger.Info("Reminder scheduler gracefully stopped")
	}()
	return ctx
}

// RunNow starts an out-of-band cycle in the background. It refuses once the
// scheduler is stopped so that Stop's wait cannot race a new cycle.
func (s *ReminderScheduler) RunNow() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		s.logger.Warn("Manual reminder dispatch refused, scheduler is stopped")
		return ErrStopped
	}
	s.logger.Info("Manual reminder dispatch requested")
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.dispatcher.RunCycle(context.Background())
	}()
	return nil
}

func (s *ReminderScheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ReminderScheduler) Running() bool {
	return s.State() == StateRunning
}

func (s *ReminderScheduler) runCycle() {
	s.inflight.Add(1)
	defer s.inflight.Done()

	report := s.dispatcher.RunCycle(context.Background())
	if report.Error != "" {
		s.logger.WithField("error", report.Error).Error("Reminder dispatch cycle ended early")
	}
}
