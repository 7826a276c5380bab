package user

import "time"

// HistoryLimit is the number of notification history entries kept per user.
const HistoryLimit = 100

// DeliveryStatus is the outcome recorded in the notification history.
type DeliveryStatus string

const (
	DeliverySuccess DeliveryStatus = "success"
	DeliveryFailed  DeliveryStatus = "failed"
)

// HistoryEntry records one delivery attempt to a user.
type HistoryEntry struct {
	ID            int64
	Channel       string
	AppointmentID string // empty for messages not tied to an appointment
	SentAt        time.Time
	Status        DeliveryStatus
	Error         string
}

// History is an append-only log that keeps only the newest HistoryLimit entries.
type History struct {
	entries []HistoryEntry
}

// NewHistory builds a history from existing entries, oldest first.
func NewHistory(entries ...HistoryEntry) *History {
	h := &History{}
	for _, e := range entries {
		h.Append(e)
	}
	return h
}

// Append adds an entry and evicts the oldest ones beyond HistoryLimit.
func (h *History) Append(e HistoryEntry) {
	h.entries = append(h.entries, e)
	if over := len(h.entries) - HistoryLimit; over > 0 {
		kept := make([]HistoryEntry, HistoryLimit)
		copy(kept, h.entries[over:])
		h.entries = kept
	}
}

// Entries returns a copy of the log, oldest first.
func (h *History) Entries() []HistoryEntry {
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *History) Len() int { return len(h.entries) }
