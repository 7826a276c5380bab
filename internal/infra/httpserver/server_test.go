package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appointment_reminders/internal/app"
	"appointment_reminders/internal/domain/appointment"
	"appointment_reminders/internal/infra/metrics"
)

type staticStatus app.SystemStatus

func (s staticStatus) Status() app.SystemStatus { return app.SystemStatus(s) }

type appointmentStore struct {
	created   []*appointment.Appointment
	createErr error
}

func (s *appointmentStore) Create(_ context.Context, a *appointment.Appointment) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, a)
	return nil
}

func (s *appointmentStore) GetByID(context.Context, string) (*appointment.Appointment, error) {
	return nil, errors.New("not found")
}

func (s *appointmentStore) FindDueForReminders(context.Context, time.Time) ([]*appointment.Appointment, error) {
	return nil, nil
}

func (s *appointmentStore) SaveReminders(context.Context, *appointment.Appointment) error {
	return nil
}

func newTestRouter(st app.SystemStatus) (*gin.Engine, *metrics.Metrics) {
	r, m, _ := newTestRouterWithStore(st)
	return r, m
}

func newTestRouterWithStore(st app.SystemStatus) (*gin.Engine, *metrics.Metrics, *appointmentStore) {
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()
	entry := logrus.NewEntry(logger)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := &appointmentStore{}
	svc := app.NewAppointmentService(store, nil, time.FixedZone("EDT", -4*60*60), entry)
	return NewRouter(staticStatus(st), svc, reg, entry), m, store
}

func postAppointment(r *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(app.SystemStatus{
		SchedulerRunning: true,
		ChatSession:      "ready",
		LastCycle:        &app.CycleReport{Due: 2, Sent: 2},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body app.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.SchedulerRunning)
	assert.Equal(t, "ready", body.ChatSession)
	require.NotNil(t, body.LastCycle)
	assert.Equal(t, 2, body.LastCycle.Sent)
}

func TestHealthzSchedulerStopped(t *testing.T) {
	r, _ := newTestRouter(app.SystemStatus{ChatSession: "failed"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r, m := newTestRouter(app.SystemStatus{SchedulerRunning: true})
	m.ObserveAttempt("email", metrics.OutcomeSent)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `reminders_delivery_attempts_total{channel="email",outcome="sent"} 1`)
}

func TestCreateAppointmentGeneratesReminders(t *testing.T) {
	r, _, store := newTestRouterWithStore(app.SystemStatus{SchedulerRunning: true})

	w := postAppointment(r, `{"doctor_id":"doctor-1","patient_id":"patient-1","date":"2033-06-10","start_time":"10:00","end_time":"10:30"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body struct {
		ID        string                 `json:"id"`
		Date      string                 `json:"date"`
		Status    string                 `json:"status"`
		Reminders []appointment.Reminder `json:"reminders"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.ID)
	assert.Equal(t, "2033-06-10", body.Date)
	assert.Equal(t, string(appointment.StatusScheduled), body.Status)

	require.Len(t, body.Reminders, 2)
	assert.Equal(t, appointment.ChannelEmail, body.Reminders[0].Channel)
	assert.True(t, body.Reminders[0].ScheduledFor.Equal(time.Date(2033, 6, 9, 14, 0, 0, 0, time.UTC)), "24h before 10:00 EDT")
	assert.Equal(t, appointment.ChannelSMS, body.Reminders[1].Channel)
	assert.True(t, body.Reminders[1].ScheduledFor.Equal(time.Date(2033, 6, 10, 12, 0, 0, 0, time.UTC)))

	require.Len(t, store.created, 1)
	assert.Equal(t, body.ID, store.created[0].ID)
}

func TestCreateAppointmentRejectsBadInput(t *testing.T) {
	r, _, store := newTestRouterWithStore(app.SystemStatus{})

	cases := map[string]string{
		"missing patient":  `{"doctor_id":"d","date":"2033-06-10","start_time":"10:00","end_time":"10:30"}`,
		"bad date":         `{"doctor_id":"d","patient_id":"p","date":"10/06/2033","start_time":"10:00","end_time":"10:30"}`,
		"end before start": `{"doctor_id":"d","patient_id":"p","date":"2033-06-10","start_time":"10:00","end_time":"09:00"}`,
		"not json":         `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, postAppointment(r, body).Code)
		})
	}
	assert.Empty(t, store.created)
}

func TestCreateAppointmentStoreFailure(t *testing.T) {
	r, _, store := newTestRouterWithStore(app.SystemStatus{})
	store.createErr = errors.New("connection refused")

	w := postAppointment(r, `{"doctor_id":"d","patient_id":"p","date":"2033-06-10","start_time":"10:00","end_time":"10:30"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}
