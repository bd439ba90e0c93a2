package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix Redis中数据集key的前缀
const RedisKeyPrefix = "scholar-rank:dataset:"

// RedisCache 基于Redis的缓存，过期交给Redis TTL处理
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache 解析URL并连接Redis
func NewRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewRedisCacheWithClient(client), nil
}

// NewRedisCacheWithClient 使用已有客户端
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get 获取缓存
func (c *RedisCache) Get(ctx context.Context, key string) (*CachedDataset, error) {
	data, err := c.client.Get(ctx, RedisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read redis cache: %w", err)
	}

	var entry CachedDataset
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cached dataset: %w", err)
	}
	return &entry, nil
}

// Set 设置缓存
func (c *RedisCache) Set(ctx context.Context, key string, records []map[string]any, ttl time.Duration) error {
	data, err := json.Marshal(newEntry(key, records, time.Now(), ttl))
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}

	if err := c.client.Set(ctx, RedisKeyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write redis cache: %w", err)
	}
	return nil
}

// Delete 删除缓存
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, RedisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete redis cache: %w", err)
	}
	return nil
}

// Close 关闭连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}
