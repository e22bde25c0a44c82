package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/reasoning-cache-service/internal/adapter/memory"
	"github.com/couchcryptid/reasoning-cache-service/internal/adapter/secrets"
	"github.com/couchcryptid/reasoning-cache-service/internal/config"
	"github.com/couchcryptid/reasoning-cache-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memoryConfig() *config.Config {
	return &config.Config{
		CacheBackend:     config.BackendMemory,
		CacheTTL:         90 * 24 * time.Hour,
		StoreTimeout:     time.Second,
		MemoryCacheSize:  10,
		CredentialSource: config.SourceEnv,
		SecretName:       "GEMINI_API_KEY",
		GeminiModel:      "gemini-2.0-flash",
		GeminiTimeout:    time.Second,
		RequestTimeout:   2 * time.Second,
	}
}

func TestNew_Memory(t *testing.T) {
	app, err := New(context.Background(), memoryConfig(), clockwork.NewFakeClock(), discardLogger(), observability.NewMetricsForTesting())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	require.NotNil(t, app.Service)
	assert.IsType(t, &memory.Store{}, app.Store)
	_, ok := app.Purger()
	assert.False(t, ok)
	require.NoError(t, app.Service.CheckReadiness(context.Background()))
}

func TestOpenSecretSource(t *testing.T) {
	cfg := memoryConfig()

	src, err := OpenSecretSource(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &secrets.Env{}, src)

	cfg.CredentialSource = config.SourceFile
	src, err = OpenSecretSource(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &secrets.File{}, src)

	cfg.CredentialSource = "vault"
	_, err = OpenSecretSource(context.Background(), cfg)
	require.Error(t, err)
}

func TestOpenStore_Unknown(t *testing.T) {
	cfg := memoryConfig()
	cfg.CacheBackend = "memcached"
	_, err := OpenStore(context.Background(), cfg, clockwork.NewFakeClock(), discardLogger())
	require.Error(t, err)
}
