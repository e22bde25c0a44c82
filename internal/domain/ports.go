package domain

import (
	"context"
	"time"
)

// CacheStore is a durable key-value store with per-entry expiration.
//
// Get returns ErrNotFound for absent keys and for entries whose ExpiresAt has
// passed, even if the backend has not reclaimed them yet. Any other error is
// a store failure. Put is an unconditional upsert.
type CacheStore interface {
	Get(ctx context.Context, key CacheKey) (CacheEntry, error)
	Put(ctx context.Context, entry CacheEntry) error
}

// Pinger is implemented by stores that can report their own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Reasoner turns a validated request into an explanation using the given
// API credential. Failures are *InferenceError.
type Reasoner interface {
	Infer(ctx context.Context, req ReasoningRequest, credential string) (string, error)
}

// CredentialProvider returns the reasoning API credential. Failures are
// *CredentialError.
type CredentialProvider interface {
	Credential(ctx context.Context) (string, error)
}

// ReasoningGenerated is emitted after a fresh explanation has been produced.
type ReasoningGenerated struct {
	ID          string         `json:"id"`
	CacheKey    CacheKey       `json:"cache_key"`
	Reasoning   string         `json:"reasoning"`
	Metadata    map[string]any `json:"metadata"`
	GeneratedAt time.Time      `json:"generated_at"`
	Persisted   bool           `json:"persisted"`
}

// AuditPublisher records generated explanations outside the cache.
type AuditPublisher interface {
	Publish(ctx context.Context, event ReasoningGenerated) error
}
