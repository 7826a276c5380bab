package user

import "context"

// Repository is the read side of the user directory plus the two writes the
// reminder engine needs.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByPhone(ctx context.Context, phone string) (*User, error)
	// LinkChat stores the chat-network identity for a user.
	LinkChat(ctx context.Context, userID string, chatID int64) error
	// AppendNotificationHistory adds an entry and trims the user's log to HistoryLimit.
	AppendNotificationHistory(ctx context.Context, userID string, entry HistoryEntry) error
	ListNotificationHistory(ctx context.Context, userID string) ([]HistoryEntry, error)
}
