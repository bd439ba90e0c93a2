package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// 后端名称，对应 CACHE_BACKEND
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendBolt     = "bolt"
	BackendRedis    = "redis"
)

// CachedDataset 缓存的venue数据集
type CachedDataset struct {
	Key       string           `json:"key"`
	Records   []map[string]any `json:"records"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Expired 是否已过期
func (d *CachedDataset) Expired(now time.Time) bool {
	return now.After(d.ExpiresAt)
}

// Cache 数据集缓存接口
// Get 在未命中或已过期时返回 (nil, nil)
type Cache interface {
	Get(ctx context.Context, key string) (*CachedDataset, error)
	Set(ctx context.Context, key string, records []map[string]any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

func newEntry(key string, records []map[string]any, now time.Time, ttl time.Duration) *CachedDataset {
	return &CachedDataset{
		Key:       key,
		Records:   records,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// MemoryCache 内存缓存实现（用于测试或单机部署）
type MemoryCache struct {
	clock clockwork.Clock
	data  map[string]*CachedDataset
	mu    sync.RWMutex
}

// NewMemoryCache 创建内存缓存，clock 为 nil 时使用系统时钟
func NewMemoryCache(clock clockwork.Clock) *MemoryCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryCache{
		clock: clock,
		data:  make(map[string]*CachedDataset),
	}
}

// Get 获取缓存
func (c *MemoryCache) Get(_ context.Context, key string) (*CachedDataset, error) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if entry.Expired(c.clock.Now()) {
		c.mu.Lock()
		if current, ok := c.data[key]; ok && current == entry {
			delete(c.data, key)
		}
		c.mu.Unlock()
		return nil, nil
	}

	return entry, nil
}

// Set 设置缓存
func (c *MemoryCache) Set(_ context.Context, key string, records []map[string]any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = newEntry(key, records, c.clock.Now(), ttl)
	return nil
}

// Delete 删除缓存
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, key)
	return nil
}
