package telegram

// Client sends plain-text chat messages. The infra adapter hides the bot library
// and the readiness of its session.
type Client interface {
	SendMessage(recipientChatID int64, text string) error
}
