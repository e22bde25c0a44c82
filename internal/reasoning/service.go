// Package reasoning orchestrates a cache-aside lookup in front of the
// reasoning API: validate, derive the key, read the store, and on a miss
// resolve the credential, infer, persist and publish.
package reasoning

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/reasoning-cache-service/internal/domain"
	"github.com/couchcryptid/reasoning-cache-service/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTTL            = 90 * 24 * time.Hour
	DefaultStoreTimeout   = 2 * time.Second
	DefaultRequestTimeout = 35 * time.Second
)

// Response is the outcome of a successful Handle.
type Response struct {
	Reasoning string          `json:"reasoning"`
	Cached    bool            `json:"cached"`
	CacheKey  domain.CacheKey `json:"cache_key"`
}

// Service is the only component that talks to both the cache store and the
// reasoning API for a request.
type Service struct {
	store       domain.CacheStore
	credentials domain.CredentialProvider
	reasoner    domain.Reasoner
	audit       domain.AuditPublisher
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *observability.Metrics
	tracer      trace.Tracer
	newID       func() string

	ttl            time.Duration
	storeTimeout   time.Duration
	requestTimeout time.Duration

	inflight sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithTTL sets how long new entries live.
func WithTTL(d time.Duration) Option { return func(s *Service) { s.ttl = d } }

// WithStoreTimeout bounds each store read, write and audit publish.
func WithStoreTimeout(d time.Duration) Option { return func(s *Service) { s.storeTimeout = d } }

// WithRequestTimeout bounds the resolution of a miss. It must exceed the
// reasoning API timeout so an upstream timeout still yields a clean error.
func WithRequestTimeout(d time.Duration) Option { return func(s *Service) { s.requestTimeout = d } }

// WithAuditPublisher publishes every freshly generated explanation.
func WithAuditPublisher(p domain.AuditPublisher) Option { return func(s *Service) { s.audit = p } }

// WithClock overrides the clock used to stamp entries.
func WithClock(c clockwork.Clock) Option { return func(s *Service) { s.clock = c } }

// New creates a Service.
func New(store domain.CacheStore, credentials domain.CredentialProvider, reasoner domain.Reasoner, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Service {
	s := &Service{
		store:          store,
		credentials:    credentials,
		reasoner:       reasoner,
		clock:          clockwork.NewRealClock(),
		logger:         logger,
		metrics:        metrics,
		tracer:         otel.Tracer("github.com/couchcryptid/reasoning-cache-service/internal/reasoning"),
		newID:          uuid.NewString,
		ttl:            DefaultTTL,
		storeTimeout:   DefaultStoreTimeout,
		requestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle answers one raw request. Errors are *domain.ValidationError,
// *domain.CredentialError, *domain.InferenceError, or the context error when
// the caller gave up first. Store failures never fail a request.
//
// A miss is resolved detached from ctx's cancellation and bounded by the
// request timeout: if the caller leaves, the answer is still generated and
// cached for the next request, and only the response is dropped. A miss that
// runs out of time fails with the typed error of the step that timed out.
func (s *Service) Handle(ctx context.Context, raw map[string]any) (Response, error) {
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, "reasoning.Handle")
	defer span.End()

	logger := s.logger
	if id := observability.RequestIDFrom(ctx); id != "" {
		logger = logger.With("request_id", id)
		span.SetAttributes(attribute.String("request.id", id))
	}

	req, err := domain.ValidateRequest(raw)
	if err != nil {
		logger.Info("request rejected", "state", stateError, "error", err)
		s.finish(span, "validation_error", err)
		return Response{}, err
	}

	key := req.CacheKey()
	logger = logger.With("cache_key", key, "request", req.String())
	span.SetAttributes(attribute.String("cache.key", string(key)))
	logger.Debug("request validated", "state", stateValidated)

	if entry, ok := s.lookup(ctx, key, logger); ok {
		logger.Info("cache hit", "state", stateCacheHit, "cached_at", entry.CachedAt)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		s.metrics.RequestDuration.WithLabelValues("true").Observe(s.clock.Since(start).Seconds())
		s.finish(span, "hit", nil)
		return Response{Reasoning: entry.ReasoningText, Cached: true, CacheKey: key}, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		rctx, rcancel := context.WithTimeout(context.WithoutCancel(ctx), s.requestTimeout)
		defer rcancel()
		text, err := s.resolve(rctx, req, key, logger)
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			logger.Error("request failed", "state", stateError, "error", r.err)
			s.finish(span, errorOutcome(r.err), r.err)
			return Response{}, r.err
		}
		s.metrics.RequestDuration.WithLabelValues("false").Observe(s.clock.Since(start).Seconds())
		s.finish(span, "miss", nil)
		return Response{Reasoning: r.text, Cached: false, CacheKey: key}, nil
	case <-ctx.Done():
		logger.Warn("caller gone before reasoning completed, result will still be cached", "error", ctx.Err())
		s.finish(span, "canceled", ctx.Err())
		return Response{}, ctx.Err()
	}
}

// Wait blocks until every detached miss resolution has finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// CheckReadiness reports the store's reachability when the store can be pinged.
func (s *Service) CheckReadiness(ctx context.Context) error {
	p, ok := s.store.(domain.Pinger)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return errors.Join(errors.New("cache store unreachable"), err)
	}
	return nil
}

// lookup reads the store. Read failures degrade to a miss but are logged
// differently from a true miss.
func (s *Service) lookup(ctx context.Context, key domain.CacheKey, logger *slog.Logger) (domain.CacheEntry, bool) {
	ctx, span := s.tracer.Start(ctx, "cache.Get")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	entry, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		s.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return entry, true
	case errors.Is(err, domain.ErrNotFound):
		s.metrics.CacheLookups.WithLabelValues("miss").Inc()
		logger.Info("cache miss", "state", stateCacheMiss)
		return domain.CacheEntry{}, false
	default:
		readErr := &domain.CacheReadError{Key: key, Err: err}
		s.metrics.CacheLookups.WithLabelValues("error").Inc()
		span.RecordError(readErr)
		span.SetStatus(codes.Error, "cache read failed")
		logger.Warn("cache read failed, treating as miss", "state", stateCacheMiss, "error", readErr)
		return domain.CacheEntry{}, false
	}
}

func (s *Service) resolve(ctx context.Context, req domain.ReasoningRequest, key domain.CacheKey, logger *slog.Logger) (string, error) {
	credential, err := s.credentials.Credential(ctx)
	if err != nil {
		return "", err
	}
	logger.Debug("credential resolved", "state", stateCredentialResolved)

	text, err := s.infer(ctx, req, credential)
	if err != nil {
		return "", err
	}
	logger.Debug("reasoning generated", "state", stateInferred, "chars", len(text))

	entry := domain.NewCacheEntry(key, text, req.Metadata(), s.clock.Now(), s.ttl)
	persisted := s.persist(ctx, entry, logger)
	s.publish(ctx, entry, persisted, logger)

	logger.Info("reasoning cached", "state", stateDone, "persisted", persisted, "expires_at", entry.ExpiresAt)
	return text, nil
}

func (s *Service) infer(ctx context.Context, req domain.ReasoningRequest, credential string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "reasoner.Infer")
	defer span.End()

	start := s.clock.Now()
	text, err := s.reasoner.Infer(ctx, req, credential)
	s.metrics.InferenceDuration.Observe(s.clock.Since(start).Seconds())

	if err != nil {
		outcome := string(domain.InferenceTransport)
		var infErr *domain.InferenceError
		switch {
		case errors.As(err, &infErr):
			outcome = string(infErr.Failure)
		case errors.Is(err, context.DeadlineExceeded):
			outcome = string(domain.InferenceTimeout)
			err = &domain.InferenceError{Failure: domain.InferenceTimeout, Err: err}
		default:
			err = &domain.InferenceError{Failure: domain.InferenceTransport, Err: err}
		}
		s.metrics.InferenceRequests.WithLabelValues(outcome).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return "", err
	}
	s.metrics.InferenceRequests.WithLabelValues("success").Inc()
	return text, nil
}

// persist writes the entry; failure is logged and absorbed.
func (s *Service) persist(ctx context.Context, entry domain.CacheEntry, logger *slog.Logger) bool {
	ctx, span := s.tracer.Start(ctx, "cache.Put")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.store.Put(ctx, entry); err != nil {
		writeErr := &domain.CacheWriteError{Key: entry.Key, Err: err}
		s.metrics.CacheWriteFailures.Inc()
		span.RecordError(writeErr)
		span.SetStatus(codes.Error, "cache write failed")
		logger.Warn("cache write failed", "error", writeErr)
		return false
	}
	logger.Debug("entry persisted", "state", stateCachePersisted)
	return true
}

func (s *Service) publish(ctx context.Context, entry domain.CacheEntry, persisted bool, logger *slog.Logger) {
	if s.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	err := s.audit.Publish(ctx, domain.ReasoningGenerated{
		ID:          s.newID(),
		CacheKey:    entry.Key,
		Reasoning:   entry.ReasoningText,
		Metadata:    entry.Metadata,
		GeneratedAt: entry.CachedAt,
		Persisted:   persisted,
	})
	if err != nil {
		s.metrics.AuditPublishFailures.Inc()
		logger.Warn("audit publish failed", "error", err)
	}
}

func (s *Service) finish(span trace.Span, outcome string, err error) {
	s.metrics.Requests.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("reasoning.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
}

func errorOutcome(err error) string {
	var credErr *domain.CredentialError
	if errors.As(err, &credErr) {
		return "credential_error"
	}
	return "inference_error"
}
