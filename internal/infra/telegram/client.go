package telegram

import (
	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the domain telegram.Client on top of a Session.
type TelebotAdapter struct {
	session *Session
}

func NewTelebotAdapter(s *Session) *TelebotAdapter {
	return &TelebotAdapter{session: s}
}

// SendMessage sends a text message to the specified chat. It fails with
// notification.ErrSessionNotReady while the session is not ready.
func (tba *TelebotAdapter) SendMessage(recipientChatID int64, text string) error {
	b, err := tba.session.Bot()
	if err != nil {
		return err
	}
	recipient := &telebot.User{ID: recipientChatID}
	_, err = b.Send(recipient, text, &telebot.SendOptions{ParseMode: telebot.ModeDefault})
	return err
}
