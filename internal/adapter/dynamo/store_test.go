package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/couchcryptid/reasoning-cache-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ttl = 90 * 24 * time.Hour

var epoch = time.Date(2024, time.April, 26, 12, 0, 0, 0, time.UTC)

// fakeTable keeps items in memory, keyed on cache_key.
type fakeTable struct {
	items  map[string]map[string]types.AttributeValue
	getErr error
	puts   int
}

func newFakeTable() *fakeTable {
	return &fakeTable{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeTable) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	key := in.Key["cache_key"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[key]}, nil
}

func (f *fakeTable) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts++
	key := in.Item["cache_key"].(*types.AttributeValueMemberS).Value
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeTable) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{TableName: in.TableName}}, nil
}

func TestStore_RoundTrip(t *testing.T) {
	table := newFakeTable()
	clock := clockwork.NewFakeClockAt(epoch)
	s := NewStore(table, "reasoning-cache", clock)
	ctx := context.Background()

	entry := domain.NewCacheEntry("abc", "urban traffic", map[string]any{"co2": 420.5, "severity": "low"}, epoch, ttl)
	require.NoError(t, s.Put(ctx, entry))

	stored := table.items["abc"]
	require.NotNil(t, stored)
	ttlAttr, ok := stored["ttl"].(*types.AttributeValueMemberN)
	require.True(t, ok, "ttl must be a number attribute")
	assert.Equal(t, "1721908800", ttlAttr.Value)

	got, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "urban traffic", got.ReasoningText)
	assert.Equal(t, epoch, got.CachedAt)
	assert.Equal(t, epoch.Add(ttl), got.ExpiresAt)
	assert.Equal(t, 420.5, got.Metadata["co2"])
}

func TestStore_Miss(t *testing.T) {
	s := NewStore(newFakeTable(), "t", clockwork.NewFakeClockAt(epoch))
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_ExpiredButNotReclaimed(t *testing.T) {
	table := newFakeTable()
	clock := clockwork.NewFakeClockAt(epoch)
	s := NewStore(table, "t", clock)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, domain.NewCacheEntry("abc", "text", nil, epoch, ttl)))
	clock.Advance(ttl + time.Minute)

	_, err := s.Get(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, table.items, "abc", "store must not delete entries itself")
}

func TestStore_GetError(t *testing.T) {
	table := newFakeTable()
	table.getErr = errors.New("throttled")
	s := NewStore(table, "t", nil)

	_, err := s.Get(context.Background(), "abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestFromItem_LegacyWithoutExpiresAt(t *testing.T) {
	entry, err := fromItem(item{
		CacheKey:  "abc",
		Reasoning: "text",
		CachedAt:  epoch.Format(time.RFC3339),
		TTL:       epoch.Add(ttl).Unix(),
	})
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(ttl), entry.ExpiresAt)
}

func TestStore_Ping(t *testing.T) {
	s := NewStore(newFakeTable(), "reasoning-cache", nil)
	require.NoError(t, s.Ping(context.Background()))
}
