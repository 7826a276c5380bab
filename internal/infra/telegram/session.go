package telegram

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"appointment_reminders/internal/domain/notification"
)

type SessionState string

const (
	SessionUninitialized SessionState = "uninitialized"
	SessionReady         SessionState = "ready"
	SessionFailed        SessionState = "failed"
)

// Session owns the bot connection. It is created uninitialized and moves to
// ready or failed once the background initialisation finishes.
type Session struct {
	mu      sync.RWMutex
	state   SessionState
	bot     *telebot.Bot
	err     error
	polling bool
	logger  *logrus.Entry
	done    chan struct{}

	newBot func(telebot.Settings) (*telebot.Bot, error)
}

func NewSession(logger *logrus.Entry) *Session {
	return &Session{
		state:  SessionUninitialized,
		logger: logger,
		done:   make(chan struct{}),
		newBot: telebot.NewBot,
	}
}

// Init creates the bot in the background. setup registers handlers before polling
// starts. Polling only starts when the settings carry a poller.
func (s *Session) Init(pref telebot.Settings, setup func(*telebot.Bot)) {
	go func() {
		defer close(s.done)

		b, err := s.newBot(pref)
		if err != nil {
			s.mu.Lock()
			s.state = SessionFailed
			s.err = err
			s.mu.Unlock()
			s.logger.WithError(err).Error("Failed to create Telegram bot, chat reminders will fail")
			return
		}
		if setup != nil {
			setup(b)
		}

		s.mu.Lock()
		s.bot = b
		s.state = SessionReady
		s.polling = pref.Poller != nil
		s.mu.Unlock()

		if pref.Poller != nil {
			s.logger.Info("Telegram bot session ready, polling for updates")
			go b.Start()
		} else {
			s.logger.Info("Telegram bot session ready")
		}
	}()
}

// Initialized is closed once Init has finished, successfully or not.
func (s *Session) Initialized() <-chan struct{} {
	return s.done
}

func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Status() string {
	return string(s.State())
}

// Bot returns the bot if the session is ready.
func (s *Session) Bot() (*telebot.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.state {
	case SessionReady:
		return s.bot, nil
	case SessionFailed:
		return nil, fmt.Errorf("%w: %v", notification.ErrSessionNotReady, s.err)
	default:
		return nil, notification.ErrSessionNotReady
	}
}

// Stop ends long polling if the session is running one.
func (s *Session) Stop() {
	s.mu.Lock()
	b, polling := s.bot, s.polling
	s.polling = false
	s.mu.Unlock()
	if polling {
		b.Stop()
	}
}
