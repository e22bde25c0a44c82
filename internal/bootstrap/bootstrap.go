// Package bootstrap builds the reasoning service from configuration. It is
// shared by the server and the command-line front end.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/couchcryptid/reasoning-cache-service/internal/adapter/dynamo"
	"github.com/couchcryptid/reasoning-cache-service/internal/adapter/gemini"
	kafkaadapter "github.com/couchcryptid/reasoning-cache-service/internal/adapter/kafka"
	"github.com/couchcryptid/reasoning-cache-service/internal/adapter/memory"
	"github.com/couchcryptid/reasoning-cache-service/internal/adapter/postgres"
	redisstore "github.com/couchcryptid/reasoning-cache-service/internal/adapter/redis"
	"github.com/couchcryptid/reasoning-cache-service/internal/adapter/secrets"
	"github.com/couchcryptid/reasoning-cache-service/internal/config"
	"github.com/couchcryptid/reasoning-cache-service/internal/credential"
	"github.com/couchcryptid/reasoning-cache-service/internal/domain"
	"github.com/couchcryptid/reasoning-cache-service/internal/observability"
	"github.com/couchcryptid/reasoning-cache-service/internal/reasoning"
	"github.com/jonboulle/clockwork"
)

// App holds the wired service and the resources it owns.
type App struct {
	Service *reasoning.Service
	Store   domain.CacheStore

	closers []io.Closer
}

// Close releases every resource opened by New, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

// Purger is implemented by stores that reclaim expired entries themselves.
func (a *App) Purger() (*postgres.Store, bool) {
	pg, ok := a.Store.(*postgres.Store)
	return pg, ok
}

// New opens the configured store, secret source, reasoning client and audit
// stream and returns the service built on them.
func New(ctx context.Context, cfg *config.Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) (*App, error) {
	app := &App{}

	store, err := OpenStore(ctx, cfg, clock, logger)
	if err != nil {
		return nil, err
	}
	app.Store = store
	if c, ok := store.(io.Closer); ok {
		app.closers = append(app.closers, c)
	}

	source, err := OpenSecretSource(ctx, cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	credentials := credential.NewProvider(source, cfg.SecretName, logger,
		credential.WithFetchHook(func(ok bool) {
			outcome := "success"
			if !ok {
				outcome = "error"
			}
			metrics.CredentialFetches.WithLabelValues(outcome).Inc()
		}))

	reasoner := gemini.NewClient(cfg.GeminiBaseURL, cfg.GeminiModel, cfg.GeminiTimeout, logger)

	opts := []reasoning.Option{
		reasoning.WithClock(clock),
		reasoning.WithTTL(cfg.CacheTTL),
		reasoning.WithStoreTimeout(cfg.StoreTimeout),
		reasoning.WithRequestTimeout(cfg.RequestTimeout),
	}
	if cfg.AuditEnabled() {
		audit := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaAuditTopic, logger)
		app.closers = append(app.closers, audit)
		opts = append(opts, reasoning.WithAuditPublisher(audit))
		logger.Info("audit stream enabled", "topic", cfg.KafkaAuditTopic)
	}

	app.Service = reasoning.New(store, credentials, reasoner, logger, metrics, opts...)
	return app, nil
}

// OpenStore connects the CacheStore named by CACHE_BACKEND.
func OpenStore(ctx context.Context, cfg *config.Config, clock clockwork.Clock, logger *slog.Logger) (domain.CacheStore, error) {
	switch cfg.CacheBackend {
	case config.BackendRedis:
		s, err := redisstore.Dial(ctx, cfg.RedisURL,
			redisstore.WithKeyPrefix(cfg.RedisKeyPrefix),
			redisstore.WithClock(clock))
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return s, nil
	case config.BackendPostgres:
		s, err := postgres.Open(ctx, cfg.PostgresURL, clock, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	case config.BackendDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return dynamo.NewStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, clock), nil
	case config.BackendMemory:
		logger.Warn("using in-memory cache store; entries are lost on restart", "max_entries", cfg.MemoryCacheSize)
		return memory.NewStore(cfg.MemoryCacheSize, clock), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// OpenSecretSource returns the SecretSource named by CREDENTIAL_SOURCE.
func OpenSecretSource(ctx context.Context, cfg *config.Config) (credential.SecretSource, error) {
	switch cfg.CredentialSource {
	case config.SourceEnv:
		return secrets.NewEnv(), nil
	case config.SourceFile:
		return secrets.NewFile(), nil
	case config.SourceSecretsManager:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return secrets.NewSecretsManager(secretsmanager.NewFromConfig(awsCfg)), nil
	default:
		return nil, fmt.Errorf("unknown credential source %q", cfg.CredentialSource)
	}
}
