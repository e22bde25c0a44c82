package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "prod", cfg.Environment)
	assert.False(t, cfg.Development())

	assert.Equal(t, BackendMemory, cfg.CacheBackend)
	assert.Equal(t, 90*24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 2*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 10000, cfg.MemoryCacheSize)
	assert.Equal(t, "reasoning:", cfg.RedisKeyPrefix)
	assert.Equal(t, time.Hour, cfg.PostgresPurgeInterval)

	assert.Equal(t, SourceEnv, cfg.CredentialSource)
	assert.Equal(t, "GEMINI_API_KEY", cfg.SecretName)
	assert.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
	assert.Equal(t, "https://generativelanguage.googleapis.com", cfg.GeminiBaseURL)
	assert.Equal(t, 25*time.Second, cfg.GeminiTimeout)
	assert.Equal(t, 35*time.Second, cfg.RequestTimeout)

	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.AuditEnabled())
	assert.Equal(t, "reasoning-audit", cfg.KafkaAuditTopic)
	assert.Equal(t, "none", cfg.TracingExporter)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("ENVIRONMENT", "dev")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_KEY_PREFIX", "co2:")
	t.Setenv("CACHE_TTL_DAYS", "7")
	t.Setenv("STORE_TIMEOUT", "500ms")
	t.Setenv("CREDENTIAL_SOURCE", "secretsmanager")
	t.Setenv("GEMINI_API_KEY_SECRET_NAME", "prod/gemini")
	t.Setenv("GEMINI_MODEL", "gemini-1.5-flash")
	t.Setenv("GEMINI_TIMEOUT", "20s")
	t.Setenv("REQUEST_TIMEOUT", "30s")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_AUDIT_TOPIC", "custom-audit")
	t.Setenv("TRACING_EXPORTER", "stdout")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.Development())
	assert.Equal(t, BackendRedis, cfg.CacheBackend)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "co2:", cfg.RedisKeyPrefix)
	assert.Equal(t, 7*24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 500*time.Millisecond, cfg.StoreTimeout)
	assert.Equal(t, SourceSecretsManager, cfg.CredentialSource)
	assert.Equal(t, "prod/gemini", cfg.SecretName)
	assert.Equal(t, "gemini-1.5-flash", cfg.GeminiModel)
	assert.Equal(t, 20*time.Second, cfg.GeminiTimeout)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.AuditEnabled())
	assert.Equal(t, "custom-audit", cfg.KafkaAuditTopic)
	assert.Equal(t, "stdout", cfg.TracingExporter)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value, wantErr string
	}{
		{"CACHE_TTL_DAYS", "0", "CACHE_TTL_DAYS"},
		{"CACHE_TTL_DAYS", "ninety", "CACHE_TTL_DAYS"},
		{"MEMORY_CACHE_SIZE", "-5", "MEMORY_CACHE_SIZE"},
		{"STORE_TIMEOUT", "soon", "STORE_TIMEOUT"},
		{"GEMINI_TIMEOUT", "-1s", "GEMINI_TIMEOUT"},
		{"POSTGRES_PURGE_INTERVAL", "0s", "POSTGRES_PURGE_INTERVAL"},
		{"CACHE_BACKEND", "memcached", "CACHE_BACKEND"},
		{"CREDENTIAL_SOURCE", "vault", "CREDENTIAL_SOURCE"},
		{"TRACING_EXPORTER", "jaeger", "TRACING_EXPORTER"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_BackendRequiresSettings(t *testing.T) {
	for backend, key := range map[string]string{
		BackendRedis:    "REDIS_URL",
		BackendPostgres: "POSTGRES_URL",
		BackendDynamoDB: "DYNAMODB_TABLE_NAME",
	} {
		t.Run(backend, func(t *testing.T) {
			t.Setenv("CACHE_BACKEND", backend)
			t.Setenv(key, "")
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_RequestTimeoutMustExceedGeminiTimeout(t *testing.T) {
	t.Setenv("GEMINI_TIMEOUT", "30s")
	t.Setenv("REQUEST_TIMEOUT", "30s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_TIMEOUT")
}
