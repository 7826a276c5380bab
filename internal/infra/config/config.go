package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SMTPConfig configures the email channel.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func (c SMTPConfig) Enabled() bool { return c.Host != "" && c.From != "" }

// TwilioConfig configures the SMS channel.
type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
}

func (c TwilioConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.PhoneNumber != ""
}

// VAPIDConfig holds the service key pair for browser push.
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

func (c VAPIDConfig) Enabled() bool { return c.PublicKey != "" && c.PrivateKey != "" }

// RedisConfig configures the claim lease store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// KafkaConfig configures the dead-letter sink.
type KafkaConfig struct {
	Brokers         []string
	DeadLetterTopic string
}

func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL   string
	LogLevel      string
	Environment   string
	Location      *time.Location
	RunMigrations bool
	HTTPAddr      string

	CronSpecDispatch    string
	SendTimeout         time.Duration
	LeaseTTL            time.Duration
	DispatchConcurrency int
	SendRatePerSecond   float64
	MaxSendAttempts     int

	TelegramToken   string
	AdminTelegramID int64

	SMTP   SMTPConfig
	Twilio TwilioConfig
	VAPID  VAPIDConfig
	Redis  RedisConfig
	Kafka  KafkaConfig
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.LogLevel = strings.ToLower(envOr("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(envOr("ENVIRONMENT", "development"))

	cfg.Location, err = time.LoadLocation(envOr("APP_TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}

	if cfg.RunMigrations, err = boolEnv("RUN_MIGRATIONS", true); err != nil {
		return nil, err
	}
	cfg.HTTPAddr = envOr("HTTP_ADDR", ":8080")

	cfg.CronSpecDispatch = envOr("CRON_SPEC_DISPATCH", "@every 1m")
	if cfg.SendTimeout, err = durationEnv("SEND_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.LeaseTTL, err = durationEnv("LEASE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.DispatchConcurrency, err = intEnv("DISPATCH_CONCURRENCY", 1); err != nil {
		return nil, err
	}
	if cfg.DispatchConcurrency < 1 {
		return nil, fmt.Errorf("DISPATCH_CONCURRENCY must be at least 1")
	}
	if cfg.MaxSendAttempts, err = intEnv("MAX_SEND_ATTEMPTS", 0); err != nil {
		return nil, err
	}
	if cfg.MaxSendAttempts < 0 {
		return nil, fmt.Errorf("MAX_SEND_ATTEMPTS must not be negative")
	}
	rateStr := envOr("SEND_RATE_PER_SECOND", "10")
	cfg.SendRatePerSecond, err = strconv.ParseFloat(rateStr, 64)
	if err != nil || cfg.SendRatePerSecond <= 0 {
		return nil, fmt.Errorf("invalid SEND_RATE_PER_SECOND %q", rateStr)
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	cfg.SMTP = SMTPConfig{
		Host:     os.Getenv("SMTP_HOST"),
		User:     os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASS"),
		From:     os.Getenv("SMTP_FROM"),
	}
	if cfg.SMTP.Port, err = intEnv("SMTP_PORT", 587); err != nil {
		return nil, err
	}

	cfg.Twilio = TwilioConfig{
		AccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		AuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		PhoneNumber: os.Getenv("TWILIO_PHONE_NUMBER"),
	}

	cfg.VAPID = VAPIDConfig{
		PublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		PrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		Subject:    os.Getenv("VAPID_SUBJECT"),
	}

	cfg.Redis = RedisConfig{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASS"),
	}
	if cfg.Redis.DB, err = intEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}

	cfg.Kafka.DeadLetterTopic = envOr("KAFKA_DEAD_LETTER_TOPIC", "reminders.dead-letter")
	for _, b := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
		}
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
