package config

import (
	"os"
	"time"

	"github.com/shopspring/decimal"
)

// Config carries everything the server reads from the environment.
type Config struct {
	Port           string
	CommerceAPIURL string
	PaymentAPIURL  string
	RabbitURL      string // optional; empty means log-only notifications
	DatabaseDSN    string

	SuccessURL string
	CancelURL  string

	UpstreamTimeout time.Duration
	PollInterval    time.Duration
	PollMaxWait     time.Duration

	TaxRate decimal.Decimal
}

// Load reads the configuration from the environment, falling back to
// development defaults.
func Load() Config {
	base := getEnv("PUBLIC_BASE_URL", "http://localhost:8080")
	return Config{
		Port:           getEnv("PORT", "8080"),
		CommerceAPIURL: getEnv("COMMERCE_API_URL", "http://localhost:8090"),
		PaymentAPIURL:  getEnv("PAYMENT_API_URL", "http://localhost:8091"),
		RabbitURL:      os.Getenv("RABBITMQ_URL"),
		DatabaseDSN:    os.Getenv("STOREFRONT_DB_DSN"),

		SuccessURL: base + "/checkout/success",
		CancelURL:  base + "/checkout/cancel",

		UpstreamTimeout: getDuration("UPSTREAM_TIMEOUT", 5*time.Second),
		PollInterval:    getDuration("ORDER_POLL_INTERVAL", 3*time.Second),
		PollMaxWait:     getDuration("ORDER_POLL_MAX_WAIT", 2*time.Minute),

		TaxRate: getDecimal("TAX_RATE", decimal.Zero),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getDecimal(key string, def decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return def
}
