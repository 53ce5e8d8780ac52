// Package cache keeps resolved answers hot in redis, keyed by the
// normalized question.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/domain"
)

// ResolvedCache is an exact-match cache of resolved answers
type ResolvedCache struct {
	redis     *goredis.Client
	ttl       time.Duration
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisClient creates the redis client for cfg
func NewRedisClient(cfg config.CacheConfig) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewResolvedCache creates a cache on client
func NewResolvedCache(client *goredis.Client, cfg config.CacheConfig, logger *zap.Logger) *ResolvedCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "askdesk:resolved:"
	}
	return &ResolvedCache{redis: client, ttl: cfg.TTL, keyPrefix: prefix, logger: logger}
}

func (c *ResolvedCache) key(normalized string) string {
	hash := sha256.Sum256([]byte(normalized))
	return c.keyPrefix + hex.EncodeToString(hash[:])
}

// Get returns the cached answer for a normalized question, or nil on a miss
func (c *ResolvedCache) Get(ctx context.Context, normalized string) (*domain.ResolvedAnswer, error) {
	key := c.key(normalized)
	data, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ra domain.ResolvedAnswer
	if err := json.Unmarshal(data, &ra); err != nil {
		c.logger.Warn("dropping corrupt cache entry", zap.String("key", key), zap.Error(err))
		_ = c.redis.Del(ctx, key).Err()
		return nil, nil
	}
	return &ra, nil
}

// Set stores ra under its normalized question
func (c *ResolvedCache) Set(ctx context.Context, ra *domain.ResolvedAnswer) error {
	data, err := json.Marshal(ra)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, c.key(ra.NormalizedQuestion), data, c.ttl).Err()
}

// Delete removes the entry of a normalized question
func (c *ResolvedCache) Delete(ctx context.Context, normalized string) error {
	return c.redis.Del(ctx, c.key(normalized)).Err()
}

// Ping checks the redis connection
func (c *ResolvedCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the redis client
func (c *ResolvedCache) Close() error {
	return c.redis.Close()
}
