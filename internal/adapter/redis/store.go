// Package redis implements a CacheStore on Redis using native key expiry.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/reasoning-cache-service/internal/domain"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

var errAlreadyExpired = errors.New("entry already expired")

// DefaultKeyPrefix namespaces cache keys within a shared Redis database.
const DefaultKeyPrefix = "reasoning:"

// Store persists entries as JSON strings with a Redis TTL equal to the time
// remaining until ExpiresAt.
type Store struct {
	client *goredis.Client
	prefix string
	clock  clockwork.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithClock overrides the real clock used to compute remaining TTLs.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Store) { s.clock = clock }
}

// NewStore wraps an existing client. The caller owns the client lifecycle.
func NewStore(client *goredis.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: DefaultKeyPrefix,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial parses redisURL, creates a client and verifies it with a PING.
func Dial(ctx context.Context, redisURL string, opts ...Option) (*Store, error) {
	options, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewStore(client, opts...), nil
}

func (s *Store) Get(ctx context.Context, key domain.CacheKey) (domain.CacheEntry, error) {
	raw, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.CacheEntry{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.CacheEntry{}, fmt.Errorf("redis get: %w", err)
	}

	entry, err := decodeEntry(raw)
	if err != nil {
		return domain.CacheEntry{}, err
	}
	// Redis expiry has second granularity; enforce the exact horizon here.
	if entry.Expired(s.clock.Now()) {
		return domain.CacheEntry{}, domain.ErrNotFound
	}
	return entry, nil
}

func (s *Store) Put(ctx context.Context, entry domain.CacheEntry) error {
	ttl := entry.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return fmt.Errorf("redis set %s: %w", entry.Key, errAlreadyExpired)
	}
	raw, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.redisKey(entry.Key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) redisKey(key domain.CacheKey) string {
	return s.prefix + string(key)
}

func encodeEntry(entry domain.CacheEntry) ([]byte, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encode cache entry: %w", err)
	}
	return raw, nil
}

func decodeEntry(raw []byte) (domain.CacheEntry, error) {
	var entry domain.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return domain.CacheEntry{}, fmt.Errorf("decode cache entry: %w", err)
	}
	if entry.ReasoningText == "" {
		return domain.CacheEntry{}, errors.New("decode cache entry: missing reasoning")
	}
	return entry, nil
}

var (
	_ domain.CacheStore = (*Store)(nil)
	_ domain.Pinger     = (*Store)(nil)
)
