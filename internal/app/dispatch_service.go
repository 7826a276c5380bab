package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"appointment_reminders/internal/domain/appointment"
	"appointment_reminders/internal/domain/notification"
	"appointment_reminders/internal/domain/user"
	"appointment_reminders/internal/infra/lease"
	"appointment_reminders/internal/infra/metrics"
)

var ErrUnknownChannel = errors.New("unknown notification channel")
var ErrChannelDisabled = errors.New("channel is disabled in the user's notification preferences")

// Claimer reserves a reminder for one sender at a time.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// DeadLetterSink receives reminders that will not be attempted again.
type DeadLetterSink interface {
	Publish(ctx context.Context, dl notification.DeadLetter) error
}

// CycleReport summarises one dispatch cycle.
type CycleReport struct {
	StartedAt    time.Time     `json:"started_at"`
	Appointments int           `json:"appointments"`
	Due          int           `json:"due"`
	Sent         int           `json:"sent"`
	Failed       int           `json:"failed"`
	Skipped      int           `json:"skipped"`
	DeadLettered int           `json:"dead_lettered"`
	SaveErrors   int           `json:"save_errors"`
	Duration     time.Duration `json:"duration"`
	Error        string        `json:"error,omitempty"`
}

func (r *CycleReport) add(o CycleReport) {
	r.Due += o.Due
	r.Sent += o.Sent
	r.Failed += o.Failed
	r.Skipped += o.Skipped
	r.DeadLettered += o.DeadLettered
	r.SaveErrors += o.SaveErrors
}

type DispatchOptions struct {
	// MaxAttempts of 0 retries a failing reminder on every cycle for as long as
	// its appointment stays in the reminder window.
	MaxAttempts int
	SendTimeout time.Duration
	LeaseTTL    time.Duration
	Concurrency int
}

func (o DispatchOptions) withDefaults() DispatchOptions {
	if o.SendTimeout <= 0 {
		o.SendTimeout = 30 * time.Second
	}
	if o.LeaseTTL <= 0 {
		o.LeaseTTL = 5 * time.Minute
	}
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	return o
}

// DispatchService finds due reminders, delivers them through the channel senders
// and records the outcome on the appointment and in the patient's history.
type DispatchService struct {
	appointments appointment.Repository
	users        user.Repository
	senders      map[appointment.Channel]notification.Sender
	claimer      Claimer
	deadLetters  DeadLetterSink
	metrics      *metrics.Metrics
	log          *logrus.Entry
	opts         DispatchOptions
	now          func() time.Time

	mu   sync.Mutex
	last *CycleReport
}

func NewDispatchService(
	ar appointment.Repository,
	ur user.Repository,
	senders []notification.Sender,
	claimer Claimer,
	deadLetters DeadLetterSink,
	m *metrics.Metrics,
	log *logrus.Entry,
	opts DispatchOptions,
) *DispatchService {
	bySender := make(map[appointment.Channel]notification.Sender, len(senders))
	for _, s := range senders {
		bySender[s.Channel()] = s
	}
	return &DispatchService{
		appointments: ar,
		users:        ur,
		senders:      bySender,
		claimer:      claimer,
		deadLetters:  deadLetters,
		metrics:      m,
		log:          log,
		opts:         opts.withDefaults(),
		now:          time.Now,
	}
}

// RunCycle performs one scan-and-send pass. It never panics and never returns an
// error; problems are logged and counted in the report.
func (s *DispatchService) RunCycle(ctx context.Context) (report CycleReport) {
	started := time.Now()
	now := s.now()
	report.StartedAt = now

	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("Dispatch cycle panicked")
			report.Error = fmt.Sprintf("panic: %v", r)
		}
		report.Duration = time.Since(started)
		s.metrics.ObserveCycle(report.Duration, report.Due)
		s.mu.Lock()
		last := report
		s.last = &last
		s.mu.Unlock()
	}()

	appts, err := s.appointments.FindDueForReminders(ctx, now)
	if err != nil {
		s.log.WithError(err).Error("Failed to query appointments with due reminders")
		report.Error = err.Error()
		return report
	}
	report.Appointments = len(appts)
	if len(appts) == 0 {
		s.log.Debug("No due reminders")
		return report
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for _, a := range appts {
		a := a
		g.Go(func() error {
			r := s.processAppointment(ctx, a, now)
			mu.Lock()
			report.add(r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.log.WithFields(logrus.Fields{
		"appointments":  report.Appointments,
		"due":           report.Due,
		"sent":          report.Sent,
		"failed":        report.Failed,
		"skipped":       report.Skipped,
		"dead_lettered": report.DeadLettered,
		"save_errors":   report.SaveErrors,
	}).Info("Dispatch cycle finished")
	return report
}

// LastReport returns the report of the most recent cycle, if any.
func (s *DispatchService) LastReport() (CycleReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return CycleReport{}, false
	}
	return *s.last, true
}

func (s *DispatchService) processAppointment(ctx context.Context, a *appointment.Appointment, now time.Time) (res CycleReport) {
	entry := s.log.WithFields(logrus.Fields{
		"appointment_id": a.ID,
		"patient_id":     a.PatientID,
	})
	defer func() {
		if r := recover(); r != nil {
			entry.WithField("panic", r).Error("Panic while dispatching appointment reminders")
			res.Failed++
		}
	}()

	due := a.DueReminders(now)
	if len(due) == 0 {
		return res
	}
	res.Due = len(due)

	patient, err := s.users.GetByID(ctx, a.PatientID)
	if err != nil {
		entry.WithError(err).Error("Failed to load patient for reminders")
		res.Failed = len(due)
		return res
	}
	doctor, err := s.users.GetByID(ctx, a.DoctorID)
	if err != nil {
		entry.WithError(err).Warn("Failed to load doctor, message will omit the doctor's name")
		doctor = nil
	}
	msg := notification.NewReminderMessage(a, patient, doctor)
	to := notification.ContactOf(patient)

	changed := false
	for _, r := range due {
		switch s.deliver(ctx, entry, a, r, patient, to, msg, now) {
		case outcomeSent:
			res.Sent++
			changed = true
		case outcomeFailed:
			res.Failed++
			changed = true
		case outcomeDeadLettered:
			res.Failed++
			res.DeadLettered++
			changed = true
		case outcomeSkipped:
			res.Skipped++
		}
	}

	if !changed {
		return res
	}
	if err := s.appointments.SaveReminders(ctx, a); err != nil {
		entry.WithError(err).Error("Failed to save reminder state")
		s.metrics.ObserveSaveError()
		res.SaveErrors++
	}
	return res
}

type deliveryOutcome int

const (
	outcomeSkipped deliveryOutcome = iota
	outcomeSent
	outcomeFailed
	outcomeDeadLettered
)

func (s *DispatchService) deliver(
	ctx context.Context,
	entry *logrus.Entry,
	a *appointment.Appointment,
	r *appointment.Reminder,
	patient *user.User,
	to notification.Contact,
	msg notification.Message,
	now time.Time,
) deliveryOutcome {
	entry = entry.WithFields(logrus.Fields{
		"reminder_id": r.ID,
		"channel":     r.Channel,
	})

	if !patient.Preferences.Allows(r.Channel) {
		entry.Debug("Channel disabled by patient preferences, skipping reminder")
		s.metrics.ObserveAttempt(string(r.Channel), metrics.OutcomeSkipped)
		return outcomeSkipped
	}

	key := lease.Key(a.ID, r.ID)
	token, ok, err := s.claimer.Claim(ctx, key, s.opts.LeaseTTL)
	if err != nil {
		entry.WithError(err).Warn("Failed to claim reminder, leaving it for the next cycle")
		s.metrics.ObserveAttempt(string(r.Channel), metrics.OutcomeSkipped)
		return outcomeSkipped
	}
	if !ok {
		entry.Debug("Reminder is claimed by another cycle, skipping")
		s.metrics.ObserveAttempt(string(r.Channel), metrics.OutcomeSkipped)
		return outcomeSkipped
	}

	sendErr := s.send(ctx, r.Channel, to, msg)

	deadLettered, err := a.MarkAttemptResult(r.ID, now, sendErr, s.opts.MaxAttempts)
	if err != nil {
		entry.WithError(err).Error("Failed to record attempt result")
	}
	s.recordHistory(ctx, entry, patient.ID, string(r.Channel), a.ID, now, sendErr)

	if sendErr == nil {
		// the lease stays until it expires so an overlapping cycle cannot resend
		// before the sent flag is persisted
		entry.Info("Reminder sent")
		s.metrics.ObserveAttempt(string(r.Channel), metrics.OutcomeSent)
		return outcomeSent
	}

	if err := s.claimer.Release(ctx, key, token); err != nil {
		entry.WithError(err).Debug("Failed to release reminder claim")
	}
	s.metrics.ObserveAttempt(string(r.Channel), metrics.OutcomeFailed)

	if !deadLettered {
		entry.WithError(sendErr).WithField("attempts", r.Attempts).Warn("Reminder delivery failed, will retry next cycle")
		return outcomeFailed
	}

	entry.WithError(sendErr).WithField("attempts", r.Attempts).Error("Reminder delivery failed, giving up")
	s.metrics.ObserveDeadLetter(string(r.Channel))
	if s.deadLetters != nil {
		if err := s.deadLetters.Publish(ctx, notification.NewDeadLetter(a, r, now)); err != nil {
			entry.WithError(err).Error("Failed to publish dead letter")
		}
	}
	return outcomeDeadLettered
}

// send bounds the call with the send timeout and turns a sender panic into an error.
func (s *DispatchService) send(ctx context.Context, ch appointment.Channel, to notification.Contact, msg notification.Message) (err error) {
	sender, ok := s.senders[ch]
	if !ok {
		return fmt.Errorf("%w: %s", notification.ErrChannelUnavailable, ch)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s sender panicked: %v", ch, r)
		}
	}()
	sendCtx, cancel := context.WithTimeout(ctx, s.opts.SendTimeout)
	defer cancel()
	return sender.Send(sendCtx, to, msg)
}

func (s *DispatchService) recordHistory(ctx context.Context, entry *logrus.Entry, userID, channel, appointmentID string, at time.Time, sendErr error) {
	h := user.HistoryEntry{
		Channel:       channel,
		AppointmentID: appointmentID,
		SentAt:        at,
		Status:        user.DeliverySuccess,
	}
	if sendErr != nil {
		h.Status = user.DeliveryFailed
		h.Error = sendErr.Error()
	}
	if err := s.users.AppendNotificationHistory(ctx, userID, h); err != nil {
		entry.WithError(err).Warn("Failed to append notification history")
	}
}

// SendTest sends a test message to a user over one channel and records it in the
// user's notification history.
func (s *DispatchService) SendTest(ctx context.Context, userID string, ch appointment.Channel) error {
	if !ch.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	if !u.Preferences.Allows(ch) {
		return ErrChannelDisabled
	}

	entry := s.log.WithFields(logrus.Fields{"user_id": userID, "channel": ch})
	now := s.now()
	sendErr := s.send(ctx, ch, notification.ContactOf(u), notification.NewTestMessage(u, now))
	s.recordHistory(ctx, entry, u.ID, string(ch), "", now, sendErr)
	if sendErr != nil {
		entry.WithError(sendErr).Warn("Test notification failed")
		return fmt.Errorf("test notification over %s failed: %w", ch, sendErr)
	}
	entry.Info("Test notification sent")
	return nil
}
