package initializers

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort                = "8080"
	defaultCurrency            = "inr"
	defaultPublicURL           = "http://localhost:3000"
	defaultLogLevel            = "info"
	defaultReservationTTL      = time.Hour
	defaultReaperInterval      = 10 * time.Minute
	defaultProductImagesPrefix = "farm-products"
)

// Config captures runtime configuration, grouped by concern.
type Config struct {
	Port        string
	DatabaseDSN string
	RedisURL    string
	JWTSecret   string
	PublicURL   string
	CORSOrigins []string
	LogLevel    string
	Stripe      StripeConfig
	Google      GoogleConfig
	Storage     StorageConfig
	Mail        MailConfig
	Orders      OrderConfig
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type StorageConfig struct {
	Bucket string
	Prefix string
}

type MailConfig struct {
	From        string
	Password    string
	SMTPHost    string
	SMTPAddress string
}

type OrderConfig struct {
	ReservationTTL time.Duration
	ReaperInterval time.Duration
}

// AppConfig is populated by LoadEnv.
var AppConfig Config

// LoadEnv reads .env when present and fills AppConfig from the environment.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := ConfigFromEnv(os.Getenv)
	if err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

// ConfigFromEnv builds a Config using the supplied lookup function.
func ConfigFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:        valueOr(getenv("PORT"), defaultPort),
		DatabaseDSN: strings.TrimSpace(getenv("DB_DSN")),
		RedisURL:    strings.TrimSpace(getenv("REDIS_URL")),
		JWTSecret:   getenv("JWT_SECRET"),
		PublicURL:   strings.TrimRight(valueOr(getenv("PUBLIC_URL"), defaultPublicURL), "/"),
		CORSOrigins: splitList(getenv("CORS_ORIGINS")),
		LogLevel:    valueOr(getenv("LOG_LEVEL"), defaultLogLevel),
		Stripe: StripeConfig{
			SecretKey:     strings.TrimSpace(getenv("STRIPE_SECRET_KEY")),
			WebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET")),
			Currency:      strings.ToLower(valueOr(getenv("STRIPE_CURRENCY"), defaultCurrency)),
		},
		Google: GoogleConfig{
			ClientID:     strings.TrimSpace(getenv("GOOGLE_CLIENT_ID")),
			ClientSecret: strings.TrimSpace(getenv("GOOGLE_CLIENT_SECRET")),
			RedirectURL:  strings.TrimSpace(getenv("GOOGLE_REDIRECT_URL")),
		},
		Storage: StorageConfig{
			Bucket: strings.TrimSpace(getenv("S3_BUCKET")),
			Prefix: valueOr(getenv("S3_PREFIX"), defaultProductImagesPrefix),
		},
		Mail: MailConfig{
			From:        getenv("FROM_EMAIL"),
			Password:    getenv("FROM_EMAIL_PASSWORD"),
			SMTPHost:    getenv("FROM_EMAIL_SMTP"),
			SMTPAddress: getenv("SMTP_ADDRESS"),
		},
		Orders: OrderConfig{
			ReservationTTL: defaultReservationTTL,
			ReaperInterval: defaultReaperInterval,
		},
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("config: JWT_SECRET is required")
	}
	if cfg.Google.RedirectURL == "" {
		cfg.Google.RedirectURL = "http://localhost:" + cfg.Port + "/auth/google/callback"
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{cfg.PublicURL}
	}

	var err error
	if cfg.Orders.ReservationTTL, err = durationOr(getenv("ORDER_RESERVATION_TTL"), defaultReservationTTL); err != nil {
		return Config{}, fmt.Errorf("config: ORDER_RESERVATION_TTL: %w", err)
	}
	if cfg.Orders.ReaperInterval, err = durationOr(getenv("REAPER_INTERVAL"), defaultReaperInterval); err != nil {
		return Config{}, fmt.Errorf("config: REAPER_INTERVAL: %w", err)
	}

	return cfg, nil
}

func valueOr(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func durationOr(value string, fallback time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", value)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
