// Package dynamo implements a CacheStore on DynamoDB using the table's native
// TTL attribute.
package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/couchcryptid/reasoning-cache-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// item is the table layout. ttl is the epoch-seconds attribute DynamoDB TTL
// is configured on; deletion lags expiry, so reads also check expires_at.
type item struct {
	CacheKey  string         `dynamodbav:"cache_key"`
	Reasoning string         `dynamodbav:"reasoning"`
	CachedAt  string         `dynamodbav:"cached_at"`
	ExpiresAt string         `dynamodbav:"expires_at"`
	TTL       int64          `dynamodbav:"ttl"`
	Metadata  map[string]any `dynamodbav:"metadata,omitempty"`
}

// Store is a CacheStore backed by a DynamoDB table keyed on cache_key.
type Store struct {
	api   API
	table string
	clock clockwork.Clock
}

func NewStore(api API, table string, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{api: api, table: table, clock: clock}
}

func (s *Store) Get(ctx context.Context, key domain.CacheKey) (domain.CacheEntry, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"cache_key": &types.AttributeValueMemberS{Value: string(key)},
		},
	})
	if err != nil {
		return domain.CacheEntry{}, fmt.Errorf("dynamodb get item: %w", err)
	}
	if len(out.Item) == 0 {
		return domain.CacheEntry{}, domain.ErrNotFound
	}

	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return domain.CacheEntry{}, fmt.Errorf("decode item: %w", err)
	}
	entry, err := fromItem(it)
	if err != nil {
		return domain.CacheEntry{}, err
	}
	if entry.Expired(s.clock.Now()) {
		return domain.CacheEntry{}, domain.ErrNotFound
	}
	return entry, nil
}

func (s *Store) Put(ctx context.Context, entry domain.CacheEntry) error {
	av, err := attributevalue.MarshalMap(toItem(entry))
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}
	if _, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("dynamodb put item: %w", err)
	}
	return nil
}

// Ping checks that the table exists and is reachable with the current credentials.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	return err
}

func toItem(entry domain.CacheEntry) item {
	return item{
		CacheKey:  string(entry.Key),
		Reasoning: entry.ReasoningText,
		CachedAt:  entry.CachedAt.UTC().Format(time.RFC3339Nano),
		ExpiresAt: entry.ExpiresAt.UTC().Format(time.RFC3339Nano),
		TTL:       entry.ExpiresAt.Unix(),
		Metadata:  entry.Metadata,
	}
}

func fromItem(it item) (domain.CacheEntry, error) {
	cachedAt, err := time.Parse(time.RFC3339Nano, it.CachedAt)
	if err != nil {
		return domain.CacheEntry{}, fmt.Errorf("parse cached_at: %w", err)
	}
	expiresAt := time.Unix(it.TTL, 0).UTC()
	if it.ExpiresAt != "" {
		if expiresAt, err = time.Parse(time.RFC3339Nano, it.ExpiresAt); err != nil {
			return domain.CacheEntry{}, fmt.Errorf("parse expires_at: %w", err)
		}
	}
	return domain.CacheEntry{
		Key:           domain.CacheKey(it.CacheKey),
		ReasoningText: it.Reasoning,
		CachedAt:      cachedAt,
		ExpiresAt:     expiresAt,
		Metadata:      it.Metadata,
	}, nil
}

var (
	_ domain.CacheStore = (*Store)(nil)
	_ domain.Pinger     = (*Store)(nil)
)
