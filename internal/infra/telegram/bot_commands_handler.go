package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"appointment_reminders/internal/domain/user"
	idb "appointment_reminders/internal/infra/database" // For ErrUserNotFound
)

const (
	msgShareContact    = "Hello! To receive appointment reminders here, please share your phone number using the button below."
	msgForeignContact  = "Please share your own contact using the button, not someone else's."
	msgUnknownPhone    = "We could not find a patient with this phone number. Please check the number stored at the clinic."
	msgLinkFailed      = "Something went wrong while linking your account. Please try again later."
	shareContactButton = "Share phone number"
)

// ContactLinker connects a chat to the user that owns the shared phone number.
type ContactLinker struct {
	users  user.Repository
	logger *logrus.Entry
}

func NewContactLinker(users user.Repository, logger *logrus.Entry) *ContactLinker {
	return &ContactLinker{users: users, logger: logger}
}

// Link returns the reply text for a shared contact.
func (l *ContactLinker) Link(ctx context.Context, senderID, chatID int64, contact *telebot.Contact) string {
	logCtx := l.logger.WithField("sender_id", senderID)
	if contact == nil || contact.UserID != senderID {
		logCtx.Warn("Contact does not belong to sender")
		return msgForeignContact
	}

	u, err := l.users.GetByPhone(ctx, contact.PhoneNumber)
	if err != nil {
		if errors.Is(err, idb.ErrUserNotFound) {
			logCtx.Info("No user with shared phone number")
			return msgUnknownPhone
		}
		logCtx.WithError(err).Error("Error looking up user by phone")
		return msgLinkFailed
	}

	if err := l.users.LinkChat(ctx, u.ID, chatID); err != nil {
		logCtx.WithError(err).WithField("user_id", u.ID).Error("Failed to link chat")
		return msgLinkFailed
	}
	logCtx.WithField("user_id", u.ID).Info("Chat linked to user")
	return fmt.Sprintf("Thanks, %s! You will now receive appointment reminders in this chat.", u.FirstName)
}

func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	linker *ContactLinker,
	adminTelegramID int64,
	baseLogger *logrus.Entry, // For contextual logging
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", c.Sender().ID)
		logCtx.Info("Processing /start command")

		menu := &telebot.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
		menu.Reply(menu.Row(menu.Contact(shareContactButton)))
		return c.Send(msgShareContact, menu)
	})

	b.Handle(telebot.OnContact, func(c telebot.Context) error {
		reply := linker.Link(ctx, c.Sender().ID, c.Chat().ID, c.Message().Contact)
		return c.Send(reply, &telebot.ReplyMarkup{RemoveKeyboard: true})
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")
		return c.Send(helpText(adminTelegramID != 0 && senderID == adminTelegramID), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}

func helpText(admin bool) string {
	var helpText strings.Builder
	helpText.WriteString("I send reminders about your upcoming appointments.\n\n")
	helpText.WriteString("`/start`\n - Link this chat to your patient account by sharing your phone number.\n\n")
	helpText.WriteString("`/help`\n - Show this message.")
	if admin {
		helpText.WriteString("\n\nAdmin commands:\n\n")
		helpText.WriteString("`/status`\n - Scheduler, chat session and last dispatch cycle.\n\n")
		helpText.WriteString("`/dispatch`\n - Run a dispatch cycle now.\n\n")
		helpText.WriteString("`/test_notification <UserID> <email|sms|chat|push>`\n - Send a test message to a user.")
	}
	return helpText.String()
}
