package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"appointment_reminders/internal/domain/appointment"
)

// ErrInvalidAppointment wraps every rejection of a new appointment's fields.
var ErrInvalidAppointment = errors.New("invalid appointment")

// AppointmentService is the creation hook that attaches reminders to new appointments.
type AppointmentService struct {
	appointments appointment.Repository
	plan         []appointment.Offset
	loc          *time.Location
	log          *logrus.Entry
	now          func() time.Time
}

// NewAppointmentService interprets appointment dates as calendar days in loc,
// the same zone the repository reads them back in.
func NewAppointmentService(ar appointment.Repository, plan []appointment.Offset, loc *time.Location, log *logrus.Entry) *AppointmentService {
	if len(plan) == 0 {
		plan = appointment.DefaultPlan
	}
	if loc == nil {
		loc = time.Local
	}
	return &AppointmentService{appointments: ar, plan: plan, loc: loc, log: log, now: time.Now}
}

// Schedule validates a new appointment, generates its reminders and stores it.
func (s *AppointmentService) Schedule(ctx context.Context, a *appointment.Appointment) error {
	if a.DoctorID == "" || a.PatientID == "" || a.Date.IsZero() {
		return fmt.Errorf("%w: doctor, patient and date are required", ErrInvalidAppointment)
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAppointment, err)
	}
	// Only the calendar day is stored, so pin it to the configured zone.
	y, m, d := a.Date.Date()
	a.Date = time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = appointment.StatusScheduled
	}
	if a.Type == "" {
		a.Type = appointment.TypeConsultation
	}

	reminders, err := appointment.GenerateReminders(a, s.plan)
	if err != nil {
		return fmt.Errorf("failed to generate reminders: %w", err)
	}
	a.Reminders = reminders

	now := s.now()
	a.CreatedAt, a.UpdatedAt = now, now
	if err := s.appointments.Create(ctx, a); err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	fields := logrus.Fields{"appointment_id": a.ID, "reminders": len(a.Reminders)}
	for _, r := range a.Reminders {
		if !r.ScheduledFor.After(now) {
			fields["overdue_reminders"] = true
			break
		}
	}
	s.log.WithFields(fields).Info("Appointment scheduled")
	return nil
}
