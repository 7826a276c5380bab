package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"appointment_reminders/internal/domain/appointment"
	"appointment_reminders/internal/domain/notification"
	"appointment_reminders/internal/domain/user"
)

var errNotFound = errors.New("not found")

// memAppointments keeps copies so the service never shares memory with the "store".
type memAppointments struct {
	mu          sync.Mutex
	items       map[string]*appointment.Appointment
	saveErr     map[string]error
	findErr     error
	saves       int
	creates     int
	panicOnFind bool
}

func newMemAppointments(appts ...*appointment.Appointment) *memAppointments {
	m := &memAppointments{items: map[string]*appointment.Appointment{}, saveErr: map[string]error{}}
	for _, a := range appts {
		m.items[a.ID] = cloneAppointment(a)
	}
	return m
}

func cloneAppointment(a *appointment.Appointment) *appointment.Appointment {
	c := *a
	c.Reminders = make([]*appointment.Reminder, len(a.Reminders))
	for i, r := range a.Reminders {
		rc := *r
		c.Reminders[i] = &rc
	}
	return &c
}

func (m *memAppointments) Create(_ context.Context, a *appointment.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	m.items[a.ID] = cloneAppointment(a)
	return nil
}

func (m *memAppointments) GetByID(_ context.Context, id string) (*appointment.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return nil, errNotFound
	}
	return cloneAppointment(a), nil
}

func (m *memAppointments) FindDueForReminders(_ context.Context, now time.Time) ([]*appointment.Appointment, error) {
	if m.panicOnFind {
		panic("store exploded")
	}
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*appointment.Appointment
	for _, a := range m.items {
		if len(a.DueReminders(now)) > 0 {
			out = append(out, cloneAppointment(a))
		}
	}
	return out, nil
}

func (m *memAppointments) SaveReminders(_ context.Context, a *appointment.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.saveErr[a.ID]; err != nil {
		return err
	}
	m.saves++
	stored, ok := m.items[a.ID]
	if !ok {
		return errNotFound
	}
	for i, r := range a.Reminders {
		if i < len(stored.Reminders) && stored.Reminders[i].Sent {
			continue
		}
		rc := *r
		stored.Reminders[i] = &rc
	}
	return nil
}

func (m *memAppointments) get(id string) *appointment.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAppointment(m.items[id])
}

type memUsers struct {
	mu      sync.Mutex
	users   map[string]*user.User
	history map[string]*user.History
}

func newMemUsers(users ...*user.User) *memUsers {
	m := &memUsers{users: map[string]*user.User{}, history: map[string]*user.History{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, errNotFound
	}
	c := *u
	return &c, nil
}

func (m *memUsers) GetByPhone(_ context.Context, phone string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if user.PhoneMatches(u.PhoneNumber, phone) {
			c := *u
			return &c, nil
		}
	}
	return nil, errNotFound
}

func (m *memUsers) LinkChat(_ context.Context, userID string, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return errNotFound
	}
	u.ChatID = chatID
	return nil
}

func (m *memUsers) AppendNotificationHistory(_ context.Context, userID string, e user.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.history[userID]
	if !ok {
		h = user.NewHistory()
		m.history[userID] = h
	}
	h.Append(e)
	return nil
}

func (m *memUsers) ListNotificationHistory(_ context.Context, userID string) ([]user.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.history[userID]
	if !ok {
		return nil, nil
	}
	return h.Entries(), nil
}

type stubSender struct {
	mu      sync.Mutex
	channel appointment.Channel
	err     error
	panics  bool
	calls   int
	last    notification.Message
}

func (s *stubSender) Channel() appointment.Channel { return s.channel }

func (s *stubSender) Send(_ context.Context, _ notification.Contact, msg notification.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = msg
	if s.panics {
		panic("provider client bug")
	}
	return s.err
}

func (s *stubSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingSink struct {
	mu      sync.Mutex
	letters []notification.DeadLetter
}

func (s *recordingSink) Publish(_ context.Context, dl notification.DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.letters = append(s.letters, dl)
	return nil
}

// denyClaimer simulates a reminder already claimed by another cycle.
type denyClaimer struct{}

func (denyClaimer) Claim(context.Context, string, time.Duration) (string, bool, error) {
	return "", false, nil
}

func (denyClaimer) Release(context.Context, string, string) error { return nil }
