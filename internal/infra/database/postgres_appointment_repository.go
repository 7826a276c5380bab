// internal/infra/database/postgres_appointment_repository.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"appointment_reminders/internal/domain/appointment"

	"github.com/lib/pq"
)

var ErrAppointmentNotFound = errors.New("appointment not found")
var ErrDuplicateAppointment = errors.New("appointment with this ID already exists")

// activeStatuses are the appointment states that still receive reminders.
var activeStatuses = []string{string(appointment.StatusScheduled), string(appointment.StatusConfirmed)}

const appointmentColumns = `id, doctor_id, patient_id, date, start_time, end_time, status, type, notes, reminders, created_at, updated_at`

type PostgresAppointmentRepository struct {
	db  *sql.DB
	loc *time.Location
}

// NewPostgresAppointmentRepository returns a repository that interprets calendar
// dates in loc.
func NewPostgresAppointmentRepository(db *sql.DB, loc *time.Location) *PostgresAppointmentRepository {
	if loc == nil {
		loc = time.Local
	}
	return &PostgresAppointmentRepository{db: db, loc: loc}
}

func (r *PostgresAppointmentRepository) Create(ctx context.Context, a *appointment.Appointment) error {
	reminders, err := json.Marshal(remindersOrEmpty(a.Reminders))
	if err != nil {
		return fmt.Errorf("error encoding reminders: %w", err)
	}
	query := `INSERT INTO appointments (id, doctor_id, patient_id, date, start_time, end_time, status, type, notes, reminders)
               VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10::jsonb)
               RETURNING created_at, updated_at`
	err = r.db.QueryRowContext(ctx, query,
		a.ID, a.DoctorID, a.PatientID, a.Date.Format("2006-01-02"), a.StartTime, a.EndTime,
		a.Status, a.Type, a.Notes, string(reminders),
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateAppointment
		}
		return fmt.Errorf("error creating appointment: %w", err)
	}
	return nil
}

func (r *PostgresAppointmentRepository) GetByID(ctx context.Context, id string) (*appointment.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	a, err := r.scanAppointment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("error getting appointment by ID: %w", err)
	}
	return a, nil
}

// FindDueForReminders selects on the calendar date only: an appointment earlier
// today is still in the window. Per-reminder filtering happens in the domain.
func (r *PostgresAppointmentRepository) FindDueForReminders(ctx context.Context, now time.Time) ([]*appointment.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
               FROM appointments
               WHERE date >= $1::date
                 AND status = ANY($2)
                 AND EXISTS (
                     SELECT 1 FROM jsonb_array_elements(reminders) AS rem(r)
                     WHERE COALESCE((rem.r->>'sent')::boolean, false) = false
                       AND COALESCE((rem.r->>'dead_lettered')::boolean, false) = false
                       AND (rem.r->>'scheduled_for')::timestamptz <= $3
                 )
               ORDER BY date, start_time`
	today := now.In(r.loc).Format("2006-01-02")
	rows, err := r.db.QueryContext(ctx, query, today, pq.Array(activeStatuses), now)
	if err != nil {
		return nil, fmt.Errorf("error querying appointments due for reminders: %w", err)
	}
	defer rows.Close()

	appointments := make([]*appointment.Appointment, 0)
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning appointment row: %w", err)
		}
		appointments = append(appointments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating appointment rows: %w", err)
	}
	return appointments, nil
}

// SaveReminders merges the given reminders into the stored array by id. A stored
// reminder that is already sent wins over the incoming copy, so a stale writer
// cannot revert a delivery recorded by an overlapping cycle.
func (r *PostgresAppointmentRepository) SaveReminders(ctx context.Context, a *appointment.Appointment) error {
	incoming, err := json.Marshal(remindersOrEmpty(a.Reminders))
	if err != nil {
		return fmt.Errorf("error encoding reminders: %w", err)
	}
	query := `UPDATE appointments AS a
               SET reminders = COALESCE((
                       SELECT jsonb_agg(
                                  CASE WHEN COALESCE((cur.r->>'sent')::boolean, false) THEN cur.r
                                       ELSE COALESCE(inc.r, cur.r) END
                                  ORDER BY cur.ord)
                       FROM jsonb_array_elements(a.reminders) WITH ORDINALITY AS cur(r, ord)
                       LEFT JOIN jsonb_array_elements($2::jsonb) AS inc(r) ON inc.r->>'id' = cur.r->>'id'
                   ), '[]'::jsonb),
                   updated_at = NOW()
               WHERE a.id = $1
               RETURNING a.updated_at`
	err = r.db.QueryRowContext(ctx, query, a.ID, string(incoming)).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAppointmentNotFound
		}
		return fmt.Errorf("error saving reminders for appointment %s: %w", a.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresAppointmentRepository) scanAppointment(row rowScanner) (*appointment.Appointment, error) {
	a := &appointment.Appointment{}
	var date time.Time
	var reminders []byte
	err := row.Scan(&a.ID, &a.DoctorID, &a.PatientID, &date, &a.StartTime, &a.EndTime,
		&a.Status, &a.Type, &a.Notes, &reminders, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, r.loc)
	if err := json.Unmarshal(reminders, &a.Reminders); err != nil {
		return nil, fmt.Errorf("error decoding reminders of appointment %s: %w", a.ID, err)
	}
	return a, nil
}

func remindersOrEmpty(rs []*appointment.Reminder) []*appointment.Reminder {
	if rs == nil {
		return []*appointment.Reminder{}
	}
	return rs
}
