package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"appointment_reminders/internal/app"
	"appointment_reminders/internal/domain/appointment"
	"appointment_reminders/internal/domain/notification"
	"appointment_reminders/internal/infra/config"
	idb "appointment_reminders/internal/infra/database"
	"appointment_reminders/internal/infra/deadletter"
	"appointment_reminders/internal/infra/httpserver"
	"appointment_reminders/internal/infra/lease"
	"appointment_reminders/internal/infra/logger"
	"appointment_reminders/internal/infra/metrics"
	"appointment_reminders/internal/infra/scheduler"
	"appointment_reminders/internal/infra/sender"
	"appointment_reminders/internal/infra/telegram"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Could not load application configuration: %v", err)
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)
	mainLogger := logger.Component(log, "main")
	mainLogger.WithFields(logrus.Fields{
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"timezone":    cfg.Location.String(),
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLogger.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	mainLogger.Info("Database connection established successfully")

	if cfg.RunMigrations {
		if err := idb.Migrate(ctx, db); err != nil {
			mainLogger.Fatalf("Could not apply migrations: %v", err)
		}
		mainLogger.Info("Database migrations applied")
	}

	appointmentRepo := idb.NewPostgresAppointmentRepository(db, cfg.Location)
	userRepo := idb.NewPostgresUserRepository(db)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Claims
	var claimer app.Claimer = lease.NewLocalClaimer()
	if cfg.Redis.Enabled() {
		rdb, err := lease.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			mainLogger.Fatalf("Could not connect to Redis: %v", err)
		}
		defer rdb.Close()
		claimer = lease.NewRedisClaimer(rdb)
		mainLogger.WithField("addr", cfg.Redis.Addr).Info("Using Redis reminder leases")
	} else {
		mainLogger.Warn("REDIS_ADDR not set, reminder leases only cover this process")
	}

	// Dead letters
	var sink interface {
		app.DeadLetterSink
		Close() error
	} = deadletter.NewLogSink(logger.Component(log, "deadletter"))
	if cfg.Kafka.Enabled() {
		sink = deadletter.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.DeadLetterTopic, logger.Component(log, "deadletter"))
	}
	defer sink.Close()

	// Chat session
	session := telegram.NewSession(logger.Component(log, "telegram"))

	senders := buildSenders(cfg, log, session)
	dispatchService := app.NewDispatchService(
		appointmentRepo,
		userRepo,
		senders,
		claimer,
		sink,
		m,
		logger.Component(log, "dispatch"),
		app.DispatchOptions{
			MaxAttempts: cfg.MaxSendAttempts,
			SendTimeout: cfg.SendTimeout,
			LeaseTTL:    cfg.LeaseTTL,
			Concurrency: cfg.DispatchConcurrency,
		},
	)

	appointmentService := app.NewAppointmentService(appointmentRepo, nil, cfg.Location, logger.Component(log, "appointments"))

	reminderScheduler := scheduler.NewReminderScheduler(
		dispatchService,
		logger.Component(log, "scheduler"),
		cfg.CronSpecDispatch,
		cfg.Location,
	)

	var sessionStatus app.SessionStatus
	if cfg.TelegramToken != "" {
		sessionStatus = session
	}
	adminService := app.NewAdminService(dispatchService, reminderScheduler, sessionStatus, cfg.AdminTelegramID)

	if cfg.TelegramToken != "" {
		botLogger := logger.Component(log, "telegram")
		pref := telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) { // Global error handler
				entry := botLogger.WithError(err)
				if c != nil && c.Sender() != nil && c.Chat() != nil {
					entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
				}
				entry.Error("Telegram handler error")
			},
		}
		session.Init(pref, func(b *telebot.Bot) {
			linker := telegram.NewContactLinker(userRepo, botLogger)
			telegram.RegisterBotCommands(ctx, b, linker, cfg.AdminTelegramID, botLogger)
			telegram.RegisterAdminHandlers(ctx, b, adminService, botLogger)
		})
		mainLogger.Info("Telegram session initialising in the background")
	} else {
		mainLogger.Warn("TELEGRAM_TOKEN not set, chat reminders will fail")
	}

	if err := reminderScheduler.Start(); err != nil {
		mainLogger.Fatalf("Could not start reminder scheduler: %v", err)
	}

	var httpSrv *httpserver.Server
	if cfg.HTTPAddr != "" {
		router := httpserver.NewRouter(adminService, appointmentService, reg, logger.Component(log, "http"))
		httpSrv = httpserver.New(cfg.HTTPAddr, router, logger.Component(log, "http"))
		httpSrv.Start()
	}

	mainLogger.Info("Application setup complete")
	<-ctx.Done()

	mainLogger.Info("Shutting down application...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if httpSrv != nil {
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			mainLogger.WithError(err).Warn("HTTP server shutdown error")
		}
	}
	select {
	case <-reminderScheduler.Stop().Done():
	case <-shutdownCtx.Done():
		mainLogger.Warn("Timed out waiting for the running dispatch cycle")
	}
	session.Stop()
	mainLogger.Info("Application shut down gracefully")
}

// buildSenders registers one sender per channel. Channels without provider
// settings still get a sender that reports the channel as unavailable.
func buildSenders(cfg *config.AppConfig, log *logrus.Logger, session *telegram.Session) []notification.Sender {
	senderLogger := logger.Component(log, "sender")
	var senders []notification.Sender

	if cfg.SMTP.Enabled() {
		senders = append(senders, sender.NewEmailSender(cfg.SMTP, senderLogger))
	} else {
		senders = append(senders, sender.NewUnavailable(appointment.ChannelEmail, "SMTP_HOST/SMTP_FROM not set"))
	}

	if cfg.Twilio.Enabled() {
		senders = append(senders, sender.NewSMSSender(cfg.Twilio, senderLogger))
	} else {
		senders = append(senders, sender.NewUnavailable(appointment.ChannelSMS, "Twilio credentials not set"))
	}

	if cfg.TelegramToken != "" {
		senders = append(senders, sender.NewChatSender(telegram.NewTelebotAdapter(session), senderLogger))
	} else {
		senders = append(senders, sender.NewUnavailable(appointment.ChannelChat, "TELEGRAM_TOKEN not set"))
	}

	if cfg.VAPID.Enabled() {
		senders = append(senders, sender.NewPushSender(cfg.VAPID, senderLogger))
	} else {
		senders = append(senders, sender.NewUnavailable(appointment.ChannelPush, "VAPID keys not set"))
	}

	for i, s := range senders {
		senders[i] = sender.NewRateLimited(s, cfg.SendRatePerSecond, 1)
	}
	return senders
}
