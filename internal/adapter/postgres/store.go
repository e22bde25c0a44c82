// Package postgres implements a CacheStore on PostgreSQL. Postgres has no
// native row expiry, so lookups filter on expires_at and a purge loop
// reclaims expired rows.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/couchcryptid/reasoning-cache-service/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq" // postgres driver
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	getQuery = `
		SELECT cache_key, reasoning, cached_at, expires_at, metadata
		FROM reasoning_cache
		WHERE cache_key = $1 AND expires_at > $2`

	upsertQuery = `
		INSERT INTO reasoning_cache (cache_key, reasoning, cached_at, expires_at, metadata)
		VALUES (:cache_key, :reasoning, :cached_at, :expires_at, :metadata)
		ON CONFLICT (cache_key) DO UPDATE SET
			reasoning  = EXCLUDED.reasoning,
			cached_at  = EXCLUDED.cached_at,
			expires_at = EXCLUDED.expires_at,
			metadata   = EXCLUDED.metadata`

	purgeQuery = `DELETE FROM reasoning_cache WHERE expires_at <= $1`
)

// row mirrors the reasoning_cache table.
type row struct {
	CacheKey  string    `db:"cache_key"`
	Reasoning string    `db:"reasoning"`
	CachedAt  time.Time `db:"cached_at"`
	ExpiresAt time.Time `db:"expires_at"`
	Metadata  []byte    `db:"metadata"`
}

// Store is a CacheStore backed by the reasoning_cache table.
type Store struct {
	db     *sqlx.DB
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewStore wraps an open database. Call Migrate before first use.
func NewStore(db *sqlx.DB, clock clockwork.Clock, logger *slog.Logger) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{db: db, clock: clock, logger: logger}
}

// Open connects to dsn, applies migrations and returns a ready Store.
func Open(ctx context.Context, dsn string, clock clockwork.Clock, logger *slog.Logger) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := NewStore(db, clock, logger)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, s.db.DB, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		s.logger.Info("migration applied", "source", r.Source.Path, "duration", r.Duration)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key domain.CacheKey) (domain.CacheEntry, error) {
	var r row
	err := s.db.GetContext(ctx, &r, getQuery, string(key), s.clock.Now())
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CacheEntry{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.CacheEntry{}, fmt.Errorf("select cache entry: %w", err)
	}
	return fromRow(r)
}

func (s *Store) Put(ctx context.Context, entry domain.CacheEntry) error {
	r, err := toRow(entry)
	if err != nil {
		return err
	}
	if _, err := s.db.NamedExecContext(ctx, upsertQuery, r); err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

// Purge deletes every row whose expiry has passed and returns the count.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, purgeQuery, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("purge expired entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge rows affected: %w", err)
	}
	return n, nil
}

// RunPurger purges expired rows every interval until ctx is cancelled.
func (s *Store) RunPurger(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			n, err := s.Purge(ctx)
			if err != nil {
				s.logger.Warn("cache purge failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("expired cache entries purged", "count", n)
			}
		}
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func toRow(entry domain.CacheEntry) (row, error) {
	r := row{
		CacheKey:  string(entry.Key),
		Reasoning: entry.ReasoningText,
		CachedAt:  entry.CachedAt.UTC(),
		ExpiresAt: entry.ExpiresAt.UTC(),
	}
	if entry.Metadata != nil {
		meta, err := json.Marshal(entry.Metadata)
		if err != nil {
			return row{}, fmt.Errorf("encode metadata: %w", err)
		}
		r.Metadata = meta
	}
	return r, nil
}

func fromRow(r row) (domain.CacheEntry, error) {
	entry := domain.CacheEntry{
		Key:           domain.CacheKey(r.CacheKey),
		ReasoningText: r.Reasoning,
		CachedAt:      r.CachedAt.UTC(),
		ExpiresAt:     r.ExpiresAt.UTC(),
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &entry.Metadata); err != nil {
			return domain.CacheEntry{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return entry, nil
}

var (
	_ domain.CacheStore = (*Store)(nil)
	_ domain.Pinger     = (*Store)(nil)
)
