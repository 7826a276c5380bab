package user

import (
	"time"

	"appointment_reminders/internal/domain/appointment"
)

// Role distinguishes doctors from patients; both reference the same appointments.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// ChannelPreferences are the per-channel opt-in switches.
type ChannelPreferences struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
	Chat  bool `json:"chat"`
	Push  bool `json:"push"`
}

// Preferences hold a user's notification settings.
type Preferences struct {
	Channels ChannelPreferences `json:"notifications"`
	// ReminderTiming is the preferred lead time in hours.
	ReminderTiming int `json:"reminder_timing"`
}

// DefaultPreferences enables every channel with a 24 hour lead time.
func DefaultPreferences() Preferences {
	return Preferences{
		Channels:       ChannelPreferences{Email: true, SMS: true, Chat: true, Push: true},
		ReminderTiming: 24,
	}
}

// Allows reports whether the user has opted in to the given channel.
func (p Preferences) Allows(c appointment.Channel) bool {
	switch c {
	case appointment.ChannelEmail:
		return p.Channels.Email
	case appointment.ChannelSMS:
		return p.Channels.SMS
	case appointment.ChannelChat:
		return p.Channels.Chat
	case appointment.ChannelPush:
		return p.Channels.Push
	}
	return false
}

// PushKeys are the client keys of a browser push subscription.
type PushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushSubscription is a stored browser push endpoint.
type PushSubscription struct {
	Endpoint string   `json:"endpoint"`
	Keys     PushKeys `json:"keys"`
}

// User is a doctor or patient as seen by the reminder engine.
type User struct {
	ID               string
	Email            string
	Role             Role
	FirstName        string
	LastName         string
	PhoneNumber      string
	ChatID           int64 // zero until the user links a chat account
	Preferences      Preferences
	PushSubscription *PushSubscription
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// FullName joins first and last name.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
