package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/ulule/limiter/v3"
)

// Config holds process configuration for the ledger server and tools.
type Config struct {
	DatabaseURL     string
	Port            string
	LogLevel        string
	LogFormat       string
	JWTSecret       string
	AllowedOrigins  []string
	RateLimit       limiter.Rate
	InvoiceSeries   string
	MigrateOnStart  bool
	ShutdownTimeout time.Duration

	// Outbound notification hooks. Each is disabled when its target is empty.
	WebhookURL            string
	WebhookSecret         string
	WebhookTimeout        time.Duration
	PubSubProjectID       string
	PubSubTopic           string
	PubSubCredentialsJSON string
}

// Load reads configuration from the environment, after merging a .env file if
// one is present. Real environment variables win over .env values.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("RATE_LIMIT", "100-M")
	v.SetDefault("DEFAULT_INVOICE_SERIES", "A")
	v.SetDefault("MIGRATE_ON_START", true)
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("WEBHOOK_URL", "")
	v.SetDefault("WEBHOOK_SECRET", "")
	v.SetDefault("WEBHOOK_TIMEOUT", "10s")
	v.SetDefault("PUBSUB_PROJECT_ID", "")
	v.SetDefault("PUBSUB_TOPIC", "")
	v.SetDefault("PUBSUB_CREDENTIALS_JSON", "")
	v.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:           v.GetString("DATABASE_URL"),
		Port:                  v.GetString("SERVER_PORT"),
		LogLevel:              strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:             strings.ToLower(v.GetString("LOG_FORMAT")),
		JWTSecret:             v.GetString("JWT_SECRET"),
		AllowedOrigins:        splitList(v.GetString("ALLOWED_ORIGINS")),
		InvoiceSeries:         strings.TrimSpace(v.GetString("DEFAULT_INVOICE_SERIES")),
		MigrateOnStart:        v.GetBool("MIGRATE_ON_START"),
		WebhookURL:            v.GetString("WEBHOOK_URL"),
		WebhookSecret:         v.GetString("WEBHOOK_SECRET"),
		PubSubProjectID:       v.GetString("PUBSUB_PROJECT_ID"),
		PubSubTopic:           v.GetString("PUBSUB_TOPIC"),
		PubSubCredentialsJSON: v.GetString("PUBSUB_CREDENTIALS_JSON"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.InvoiceSeries == "" {
		return nil, fmt.Errorf("DEFAULT_INVOICE_SERIES cannot be blank")
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("LOG_FORMAT must be json or text, got %q", cfg.LogFormat)
	}

	rate, err := limiter.NewRateFromFormatted(v.GetString("RATE_LIMIT"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT: %w", err)
	}
	cfg.RateLimit = rate

	if cfg.ShutdownTimeout, err = duration(v, "SHUTDOWN_TIMEOUT"); err != nil {
		return nil, err
	}
	if cfg.WebhookTimeout, err = duration(v, "WEBHOOK_TIMEOUT"); err != nil {
		return nil, err
	}
	if (cfg.PubSubProjectID == "") != (cfg.PubSubTopic == "") {
		return nil, fmt.Errorf("PUBSUB_PROJECT_ID and PUBSUB_TOPIC must be set together")
	}
	return cfg, nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
