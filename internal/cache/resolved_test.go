package cache

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/domain"
)

func setupTestRedis(t *testing.T) *goredis.Client {
	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379", DB: 15})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skip("redis not available, skipping")
	}
	client.FlushDB(ctx)
	return client
}

func TestResolvedCacheRoundTrip(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	c := NewResolvedCache(client, config.CacheConfig{TTL: time.Minute, KeyPrefix: "test:resolved:"}, nil)
	ctx := context.Background()

	miss, err := c.Get(ctx, "what is the vision")
	require.NoError(t, err)
	assert.Nil(t, miss)

	ra := &domain.ResolvedAnswer{TicketID: "t1", Question: "What is the vision?",
		NormalizedQuestion: "what is the vision", Answer: "A ten year plan."}
	require.NoError(t, c.Set(ctx, ra))

	hit, err := c.Get(ctx, "what is the vision")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "A ten year plan.", hit.Answer)

	require.NoError(t, c.Delete(ctx, "what is the vision"))
	gone, err := c.Get(ctx, "what is the vision")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestResolvedCacheDropsCorruptEntries(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	c := NewResolvedCache(client, config.CacheConfig{TTL: time.Minute}, nil)
	ctx := context.Background()
	require.NoError(t, client.Set(ctx, c.key("broken"), "{not json", time.Minute).Err())

	got, err := c.Get(ctx, "broken")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, client.Exists(ctx, c.key("broken")).Val())
}

func TestResolvedCacheKeyIsStable(t *testing.T) {
	c := NewResolvedCache(nil, config.CacheConfig{}, nil)
	assert.Equal(t, c.key("a"), c.key("a"))
	assert.NotEqual(t, c.key("a"), c.key("b"))
	assert.Contains(t, c.key("a"), "askdesk:resolved:")
}
