package app

import (
	"context"
	"fmt"

	"appointment_reminders/internal/domain/appointment"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")

// SchedulerControl is the part of the scheduler the admin commands drive.
type SchedulerControl interface {
	Running() bool
	RunNow() error
}

// SessionStatus reports the state of the chat session as text.
type SessionStatus interface {
	Status() string
}

// SystemStatus is what /status and /healthz show.
type SystemStatus struct {
	SchedulerRunning bool         `json:"scheduler_running"`
	ChatSession      string       `json:"chat_session"`
	LastCycle        *CycleReport `json:"last_cycle,omitempty"`
}

type AdminService struct {
	dispatch        *DispatchService
	scheduler       SchedulerControl
	session         SessionStatus
	adminTelegramID int64
}

func NewAdminService(d *DispatchService, sc SchedulerControl, ss SessionStatus, adminID int64) *AdminService {
	return &AdminService{
		dispatch:        d,
		scheduler:       sc,
		session:         ss,
		adminTelegramID: adminID,
	}
}

// IsAdmin reports whether the chat user is the configured administrator.
func (s *AdminService) IsAdmin(telegramID int64) bool {
	return s.adminTelegramID != 0 && telegramID == s.adminTelegramID
}

// Status returns the system status without an authorization check. It backs /healthz.
func (s *AdminService) Status() SystemStatus {
	st := SystemStatus{ChatSession: "disabled"}
	if s.scheduler != nil {
		st.SchedulerRunning = s.scheduler.Running()
	}
	if s.session != nil {
		st.ChatSession = s.session.Status()
	}
	if report, ok := s.dispatch.LastReport(); ok {
		st.LastCycle = &report
	}
	return st
}

// StatusFor returns the system status for an admin chat user.
func (s *AdminService) StatusFor(performingAdminID int64) (SystemStatus, error) {
	if !s.IsAdmin(performingAdminID) {
		return SystemStatus{}, ErrAdminNotAuthorized
	}
	return s.Status(), nil
}

// TriggerDispatch starts an out-of-band dispatch cycle. It does not wait for it.
func (s *AdminService) TriggerDispatch(_ context.Context, performingAdminID int64) error {
	if !s.IsAdmin(performingAdminID) {
		return ErrAdminNotAuthorized
	}
	if s.scheduler == nil {
		return fmt.Errorf("scheduler is not configured")
	}
	return s.scheduler.RunNow()
}

// SendTestNotification sends a test message to a user on behalf of the admin.
func (s *AdminService) SendTestNotification(ctx context.Context, performingAdminID int64, userID string, ch appointment.Channel) error {
	if !s.IsAdmin(performingAdminID) {
		return ErrAdminNotAuthorized
	}
	return s.dispatch.SendTest(ctx, userID, ch)
}
