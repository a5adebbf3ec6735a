package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ledger")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "A", cfg.InvoiceSeries)
	assert.True(t, cfg.MigrateOnStart)
	assert.Equal(t, int64(100), cfg.RateLimit.Limit)
	assert.Equal(t, time.Minute, cfg.RateLimit.Period)
	assert.Equal(t, 10*time.Second, cfg.WebhookTimeout)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ledger")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_FORMAT", "TEXT")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("RATE_LIMIT", "10-S")
	t.Setenv("MIGRATE_ON_START", "false")
	t.Setenv("PUBSUB_PROJECT_ID", "proj")
	t.Setenv("PUBSUB_TOPIC", "ledger-events")

	cfg, err := load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(10), cfg.RateLimit.Limit)
	assert.Equal(t, time.Second, cfg.RateLimit.Period)
	assert.False(t, cfg.MigrateOnStart)
	assert.Equal(t, "ledger-events", cfg.PubSubTopic)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database url", map[string]string{"DATABASE_URL": ""}},
		{"missing jwt secret", map[string]string{"JWT_SECRET": ""}},
		{"bad rate", map[string]string{"RATE_LIMIT": "lots"}},
		{"bad webhook timeout", map[string]string{"WEBHOOK_TIMEOUT": "soon"}},
		{"negative shutdown timeout", map[string]string{"SHUTDOWN_TIMEOUT": "-1s"}},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}},
		{"blank series", map[string]string{"DEFAULT_INVOICE_SERIES": " "}},
		{"pubsub topic without project", map[string]string{"PUBSUB_TOPIC": "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/ledger")
			t.Setenv("JWT_SECRET", "s3cret")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := load(viper.New())
			assert.Error(t, err)
		})
	}
}
