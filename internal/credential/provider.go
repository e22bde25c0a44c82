// Package credential resolves the reasoning API key from a secret source and
// keeps it for the life of the process.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/couchcryptid/reasoning-cache-service/internal/domain"
)

// JSON payload fields that may carry the key, in lookup order.
var jsonKeyFields = []string{"apiKey", "GEMINI_API_KEY"}

var (
	errEmptySecret   = errors.New("secret is empty")
	errNoKeyInSecret = errors.New("secret JSON has no apiKey or GEMINI_API_KEY field")
)

// SecretSource fetches a raw secret value by name.
type SecretSource interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// Provider returns the API credential, fetching it from the source at most
// once per successful resolution. Concurrent first calls may each fetch; the
// value is identical so the duplicate is harmless. Failures are not cached.
type Provider struct {
	source  SecretSource
	name    string
	logger  *slog.Logger
	onFetch func(success bool)
	cached  atomic.Pointer[string]
}

// Option configures a Provider.
type Option func(*Provider)

// WithFetchHook registers a callback invoked after every source fetch.
func WithFetchHook(fn func(success bool)) Option {
	return func(p *Provider) { p.onFetch = fn }
}

func NewProvider(source SecretSource, name string, logger *slog.Logger, opts ...Option) *Provider {
	p := &Provider{source: source, name: name, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Credential returns the cached key or resolves it. Failures are *domain.CredentialError.
func (p *Provider) Credential(ctx context.Context) (string, error) {
	if v := p.cached.Load(); v != nil {
		return *v, nil
	}

	raw, err := p.source.GetSecret(ctx, p.name)
	if err == nil {
		raw, err = ParseSecret(raw)
	}
	if p.onFetch != nil {
		p.onFetch(err == nil)
	}
	if err != nil {
		p.logger.Error("credential unavailable", "secret", p.name, "error", err)
		return "", &domain.CredentialError{Name: p.name, Err: err}
	}

	p.cached.Store(&raw)
	p.logger.Info("credential loaded", "secret", p.name)
	return raw, nil
}

// ParseSecret extracts the key from a secret payload. The payload is either
// the bare key or a JSON object with an apiKey or GEMINI_API_KEY field.
func ParseSecret(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errEmptySecret
	}
	if !strings.HasPrefix(raw, "{") {
		return raw, nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		// Not JSON; treat as an opaque key.
		return raw, nil
	}
	for _, name := range jsonKeyFields {
		if v, ok := fields[name].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}
	return "", errNoKeyInSecret
}

var _ domain.CredentialProvider = (*Provider)(nil)
