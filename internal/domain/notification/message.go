package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"time"

	"appointment_reminders/internal/domain/appointment"
	"appointment_reminders/internal/domain/user"
)

// Message carries the facts every channel renders.
type Message struct {
	AppointmentID    string
	PatientFirstName string
	PatientLastName  string
	DoctorName       string
	Date             time.Time
	StartTime        string
	Type             appointment.Type
	Test             bool
}

// NewReminderMessage builds the message for one appointment.
func NewReminderMessage(a *appointment.Appointment, patient, doctor *user.User) Message {
	m := Message{
		AppointmentID: a.ID,
		Date:          a.Date,
		StartTime:     a.StartTime,
		Type:          a.Type,
	}
	if patient != nil {
		m.PatientFirstName = patient.FirstName
		m.PatientLastName = patient.LastName
	}
	if doctor != nil {
		m.DoctorName = doctor.FullName()
	}
	return m
}

// NewTestMessage builds a message used to check that a channel works for a user.
func NewTestMessage(u *user.User, now time.Time) Message {
	return Message{
		PatientFirstName: u.FirstName,
		PatientLastName:  u.LastName,
		Date:             now,
		StartTime:        now.Format("15:04"),
		Test:             true,
	}
}

func (m Message) dateText() string {
	return m.Date.Format("01/02/2006")
}

func (m Message) doctorText() string {
	if m.DoctorName == "" {
		return "your doctor"
	}
	return "Dr. " + m.DoctorName
}

// Subject is the email subject line.
func (m Message) Subject() string {
	if m.Test {
		return "Test notification"
	}
	return fmt.Sprintf("Appointment Reminder: %s", m.Type)
}

// Text is the plain-text body used by SMS and chat.
func (m Message) Text() string {
	if m.Test {
		return "This is a test notification from your clinic. Reminders on this channel are working."
	}
	return fmt.Sprintf("Reminder: You have an appointment on %s at %s with %s.", m.dateText(), m.StartTime, m.doctorText())
}

var emailTemplate = template.Must(template.New("reminder").Parse(`<h2>Appointment Reminder</h2>
<p>Dear {{.Patient}},</p>
<p>This is a reminder for your upcoming appointment:</p>
<ul>
  <li>Date: {{.Date}}</li>
  <li>Time: {{.Time}}</li>
  <li>Type: {{.Type}}</li>
  <li>Doctor: {{.Doctor}}</li>
</ul>
<p>Please arrive 10 minutes before your scheduled time.</p>
<p>If you need to reschedule or cancel, please do so at least 24 hours in advance.</p>
`))

// HTML renders the email body. Values are escaped by html/template.
func (m Message) HTML() (string, error) {
	if m.Test {
		return "<p>" + template.HTMLEscapeString(m.Text()) + "</p>", nil
	}
	var buf bytes.Buffer
	err := emailTemplate.Execute(&buf, map[string]string{
		"Patient": (&user.User{FirstName: m.PatientFirstName, LastName: m.PatientLastName}).FullName(),
		"Date":    m.dateText(),
		"Time":    m.StartTime,
		"Type":    string(m.Type),
		"Doctor":  m.doctorText(),
	})
	if err != nil {
		return "", fmt.Errorf("render reminder email: %w", err)
	}
	return buf.String(), nil
}

// PushPayload is the JSON document delivered to a browser service worker.
type PushPayload struct {
	Title string          `json:"title"`
	Body  string          `json:"body"`
	Icon  string          `json:"icon"`
	Data  PushPayloadData `json:"data"`
}

type PushPayloadData struct {
	AppointmentID string `json:"appointmentId,omitempty"`
}

// PushJSON renders the push notification payload.
func (m Message) PushJSON() ([]byte, error) {
	p := PushPayload{
		Title: "Appointment Reminder",
		Body:  fmt.Sprintf("You have an appointment on %s at %s", m.dateText(), m.StartTime),
		Icon:  "/icon.png",
		Data:  PushPayloadData{AppointmentID: m.AppointmentID},
	}
	if m.Test {
		p.Title = "Test notification"
		p.Body = m.Text()
	}
	return json.Marshal(p)
}
