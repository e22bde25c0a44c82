package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Cache backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
)

// Credential sources.
const (
	SourceEnv            = "env"
	SourceFile           = "file"
	SourceSecretsManager = "secretsmanager"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	Environment     string

	// Cache store.
	CacheBackend          string
	CacheTTL              time.Duration
	StoreTimeout          time.Duration
	MemoryCacheSize       int
	RedisURL              string
	RedisKeyPrefix        string
	PostgresURL           string
	PostgresPurgeInterval time.Duration
	DynamoDBTable         string

	// Reasoning API and its credential.
	CredentialSource string
	SecretName       string
	GeminiModel      string
	GeminiBaseURL    string
	GeminiTimeout    time.Duration
	RequestTimeout   time.Duration

	// Audit stream; disabled when KafkaBrokers is empty.
	KafkaBrokers    []string
	KafkaAuditTopic string

	TracingExporter string
}

// Development reports whether detailed errors may be shown to callers.
func (c *Config) Development() bool {
	return c.Environment == "dev"
}

// AuditEnabled reports whether generated explanations are published to Kafka.
func (c *Config) AuditEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	ttlDays, err := positiveInt("CACHE_TTL_DAYS", 90)
	if err != nil {
		return nil, err
	}
	memorySize, err := positiveInt("MEMORY_CACHE_SIZE", 10000)
	if err != nil {
		return nil, err
	}
	storeTimeout, err := positiveDuration("STORE_TIMEOUT", "2s")
	if err != nil {
		return nil, err
	}
	purgeInterval, err := positiveDuration("POSTGRES_PURGE_INTERVAL", "1h")
	if err != nil {
		return nil, err
	}
	geminiTimeout, err := positiveDuration("GEMINI_TIMEOUT", "25s")
	if err != nil {
		return nil, err
	}
	requestTimeout, err := positiveDuration("REQUEST_TIMEOUT", "35s")
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		Environment:     sharedcfg.EnvOrDefault("ENVIRONMENT", "prod"),

		CacheBackend:          sharedcfg.EnvOrDefault("CACHE_BACKEND", BackendMemory),
		CacheTTL:              time.Duration(ttlDays) * 24 * time.Hour,
		StoreTimeout:          storeTimeout,
		MemoryCacheSize:       memorySize,
		RedisURL:              os.Getenv("REDIS_URL"),
		RedisKeyPrefix:        sharedcfg.EnvOrDefault("REDIS_KEY_PREFIX", "reasoning:"),
		PostgresURL:           os.Getenv("POSTGRES_URL"),
		PostgresPurgeInterval: purgeInterval,
		DynamoDBTable:         os.Getenv("DYNAMODB_TABLE_NAME"),

		CredentialSource: sharedcfg.EnvOrDefault("CREDENTIAL_SOURCE", SourceEnv),
		SecretName:       sharedcfg.EnvOrDefault("GEMINI_API_KEY_SECRET_NAME", "GEMINI_API_KEY"),
		GeminiModel:      sharedcfg.EnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiBaseURL:    sharedcfg.EnvOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiTimeout:    geminiTimeout,
		RequestTimeout:   requestTimeout,

		KafkaBrokers:    brokers,
		KafkaAuditTopic: sharedcfg.EnvOrDefault("KAFKA_AUDIT_TOPIC", "reasoning-audit"),

		TracingExporter: sharedcfg.EnvOrDefault("TRACING_EXPORTER", "none"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CacheBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when CACHE_BACKEND=redis")
		}
	case BackendPostgres:
		if c.PostgresURL == "" {
			return errors.New("POSTGRES_URL is required when CACHE_BACKEND=postgres")
		}
	case BackendDynamoDB:
		if c.DynamoDBTable == "" {
			return errors.New("DYNAMODB_TABLE_NAME is required when CACHE_BACKEND=dynamodb")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend)
	}

	switch c.CredentialSource {
	case SourceEnv, SourceFile, SourceSecretsManager:
	default:
		return fmt.Errorf("unknown CREDENTIAL_SOURCE %q", c.CredentialSource)
	}

	switch c.TracingExporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("unknown TRACING_EXPORTER %q", c.TracingExporter)
	}

	if c.RequestTimeout <= c.GeminiTimeout {
		return errors.New("REQUEST_TIMEOUT must be greater than GEMINI_TIMEOUT")
	}
	if c.AuditEnabled() && c.KafkaAuditTopic == "" {
		return errors.New("KAFKA_AUDIT_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func positiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func positiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
