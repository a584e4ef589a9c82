package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"STORE_DRIVER", "SQLITE_PATH", "PG_URL", "REDIS_ADDR", "KAFKA_ADDR", "OUTBOX_TOPIC",
		"OTEL_ENDPOINT", "HTTP_ADDR", "GRPC_ADDR", "LOG_LEVEL", "SEED_FILE",
		"IDEMPOTENCY_TTL", "INVOICE_CACHE_TTL", "HISTORY_LIMIT", "DISPLAY_TZ",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "pos_system.db", cfg.SQLitePath)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, ":5000", cfg.HTTPAddr)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, time.Hour, cfg.InvoiceCacheTTL)
	assert.Equal(t, 10, cfg.HistoryLimit)
	assert.Same(t, time.Local, cfg.DisplayLocation)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("KAFKA_ADDR", "k1:9092, k2:9092,")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("IDEMPOTENCY_TTL", "30m")
	t.Setenv("HISTORY_LIMIT", "25")
	t.Setenv("DISPLAY_TZ", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 30*time.Minute, cfg.IdempotencyTTL)
	assert.Equal(t, 25, cfg.HistoryLimit)
	assert.Equal(t, "UTC", cfg.DisplayLocation.String())
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string][2]string{
		"driver":   {"STORE_DRIVER", "mysql"},
		"ttl":      {"IDEMPOTENCY_TTL", "soon"},
		"negative": {"INVOICE_CACHE_TTL", "-1m"},
		"limit":    {"HISTORY_LIMIT", "ten"},
		"zero":     {"HISTORY_LIMIT", "0"},
		"zone":     {"DISPLAY_TZ", "Mars/Olympus"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
