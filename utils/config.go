package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Port   string
	AppEnv string

	DSN       string
	DBTimeout time.Duration

	MpesaBaseURL        string
	MpesaConsumerKey    string
	MpesaConsumerSecret string
	MpesaShortCode      string
	MpesaPasskey        string
	MpesaCallbackURL    string
	MpesaAccountRef     string
	MpesaTxnDesc        string
	MpesaHTTPTimeout    time.Duration
	MpesaMaxAmount      int64

	CallbackSecret     string
	CallbackAllowedIPs []string

	RateLimit  int
	RateWindow time.Duration

	JWTSecret   string
	CORSOrigins []string

	// Proxies whose X-Forwarded-For is believed. Empty means none.
	TrustedProxies []string

	SweepInterval time.Duration
	SweepAge      time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPass     string
	FromAddr     string
	NotifyEmails []string
}

func LoadConfig() Config {
	LoadEnv()

	return Config{
		Port:   EnvOr("PORT", "8080"),
		AppEnv: EnvOr("APP_ENV", "development"),

		DSN:       EnvOr("DB", ""),
		DBTimeout: EnvDuration("DB_TIMEOUT", 5*time.Second),

		MpesaBaseURL:        strings.TrimRight(EnvOr("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"), "/"),
		MpesaConsumerKey:    EnvOr("MPESA_CONSUMER_KEY", ""),
		MpesaConsumerSecret: EnvOr("MPESA_CONSUMER_SECRET", ""),
		MpesaShortCode:      EnvOr("MPESA_SHORTCODE", ""),
		MpesaPasskey:        EnvOr("MPESA_PASSKEY", ""),
		MpesaCallbackURL:    EnvOr("MPESA_CALLBACK_URL", ""),
		MpesaAccountRef:     EnvOr("MPESA_ACCOUNT_REF", "PropertyPayment"),
		MpesaTxnDesc:        EnvOr("MPESA_TRANSACTION_DESC", "Property payment"),
		MpesaHTTPTimeout:    EnvDuration("MPESA_HTTP_TIMEOUT", 30*time.Second),
		MpesaMaxAmount:      EnvInt64("MPESA_MAX_AMOUNT", 250000),

		CallbackSecret:     EnvOr("MPESA_CALLBACK_SECRET", ""),
		CallbackAllowedIPs: EnvList("MPESA_CALLBACK_ALLOWED_IPS"),

		RateLimit:  EnvInt("RATE_LIMIT", 5),
		RateWindow: EnvDuration("RATE_WINDOW", time.Minute),

		JWTSecret:   EnvOr("SECRET", ""),
		CORSOrigins: EnvList("CORS_ALLOWED_ORIGINS"),

		TrustedProxies: EnvList("TRUSTED_PROXIES"),

		SweepInterval: EnvDuration("PENDING_SWEEP_INTERVAL", time.Minute),
		SweepAge:      EnvDuration("PENDING_SWEEP_AGE", 2*time.Minute),

		KafkaBrokers: EnvList("KAFKA_BROKERS"),
		KafkaTopic:   EnvOr("KAFKA_TOPIC", "payments.status"),

		SMTPHost:     EnvOr("SMTP_HOST", ""),
		SMTPPort:     EnvInt("SMTP_PORT", 465),
		SMTPUser:     EnvOr("SMTP_USER", ""),
		SMTPPass:     EnvOr("SMTP_PASS", ""),
		FromAddr:     EnvOr("FROM_ADDR", ""),
		NotifyEmails: EnvList("NOTIFY_EMAILS"),
	}
}

func (c Config) Production() bool {
	return c.AppEnv == "production"
}

// Validate checks the values the payment flow cannot run without.
func (c Config) Validate() error {
	required := []struct{ key, value string }{
		{"DB", c.DSN},
		{"MPESA_CONSUMER_KEY", c.MpesaConsumerKey},
		{"MPESA_CONSUMER_SECRET", c.MpesaConsumerSecret},
		{"MPESA_SHORTCODE", c.MpesaShortCode},
		{"MPESA_PASSKEY", c.MpesaPasskey},
		{"MPESA_CALLBACK_URL", c.MpesaCallbackURL},
		{"MPESA_CALLBACK_SECRET", c.CallbackSecret},
	}

	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.RateLimit < 1 || c.RateWindow <= 0 {
		return errors.New("RATE_LIMIT and RATE_WINDOW must be positive")
	}
	if c.SweepInterval <= 0 || c.SweepAge <= 0 {
		return errors.New("PENDING_SWEEP_INTERVAL and PENDING_SWEEP_AGE must be positive")
	}
	if c.MpesaMaxAmount < 1 {
		return errors.New("MPESA_MAX_AMOUNT must be positive")
	}
	return nil
}
