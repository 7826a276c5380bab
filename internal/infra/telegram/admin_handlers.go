package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"appointment_reminders/internal/app"
	"appointment_reminders/internal/domain/appointment"
)

const msgNotAuthorized = "Error: you are not allowed to run this command."

// RegisterAdminHandlers registers handlers for admin commands.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, baseLogger *logrus.Entry) {
	b.Handle("/status", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/status",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		st, err := adminService.StatusFor(c.Sender().ID)
		if err != nil {
			handlerLogger.WithError(err).Warn("Unauthorized access attempt")
			return c.Send(msgNotAuthorized)
		}
		return c.Send(formatStatus(st))
	})

	b.Handle("/dispatch", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/dispatch",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if err := adminService.TriggerDispatch(ctx, c.Sender().ID); err != nil {
			if errors.Is(err, app.ErrAdminNotAuthorized) {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send(msgNotAuthorized)
			}
			handlerLogger.WithError(err).Error("Failed to trigger dispatch")
			return c.Send(fmt.Sprintf("Could not start a dispatch cycle: %s", err.Error()))
		}
		return c.Send("Dispatch cycle started. Use /status to see the result.")
	})

	b.Handle("/test_notification", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/test_notification",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		args := c.Args()
		if len(args) != 2 {
			handlerLogger.WithField("args_count", len(args)).Warn("Invalid command format")
			return c.Send("Invalid format. Use: /test_notification <UserID> <email|sms|chat|push>")
		}
		userID, ch := args[0], appointment.Channel(strings.ToLower(args[1]))

		err := adminService.SendTestNotification(ctx, c.Sender().ID, userID, ch)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			switch {
			case errors.Is(err, app.ErrAdminNotAuthorized):
				logWithError.Warn("Unauthorized access attempt")
				return c.Send(msgNotAuthorized)
			case errors.Is(err, app.ErrUnknownChannel):
				return c.Send("Unknown channel. Use one of: email, sms, chat, push.")
			case errors.Is(err, app.ErrChannelDisabled):
				return c.Send(fmt.Sprintf("The user has disabled %s notifications.", ch))
			default:
				logWithError.Warn("Test notification failed")
				return c.Send(fmt.Sprintf("Test notification failed: %s", err.Error()))
			}
		}
		return c.Send(fmt.Sprintf("Test notification sent to %s via %s.", userID, ch))
	})
}

func formatStatus(st app.SystemStatus) string {
	var sb strings.Builder
	scheduler := "stopped"
	if st.SchedulerRunning {
		scheduler = "running"
	}
	fmt.Fprintf(&sb, "Scheduler: %s\n", scheduler)
	fmt.Fprintf(&sb, "Chat session: %s\n", st.ChatSession)
	if st.LastCycle == nil {
		sb.WriteString("Last cycle: none yet")
		return sb.String()
	}
	r := st.LastCycle
	fmt.Fprintf(&sb, "Last cycle: %s (%s)\n", r.StartedAt.Format("2006-01-02 15:04:05"), r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&sb, "Due: %d, sent: %d, failed: %d, skipped: %d\n", r.Due, r.Sent, r.Failed, r.Skipped)
	fmt.Fprintf(&sb, "Dead-lettered: %d, save errors: %d", r.DeadLettered, r.SaveErrors)
	if r.Error != "" {
		fmt.Fprintf(&sb, "\nError: %s", r.Error)
	}
	return sb.String()
}
