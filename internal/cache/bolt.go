package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	bolt "go.etcd.io/bbolt"
)

// BucketDatasets bolt中保存数据集的bucket
const BucketDatasets = "datasets"

// BoltCache 基于bbolt的本地持久缓存
type BoltCache struct {
	db    *bolt.DB
	clock clockwork.Clock
}

// NewBoltCache 打开（或创建）bolt数据库
func NewBoltCache(path string, clock clockwork.Clock) (*BoltCache, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketDatasets))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltCache{db: db, clock: clock}, nil
}

// Get 获取缓存
func (c *BoltCache) Get(ctx context.Context, key string) (*CachedDataset, error) {
	var entry *CachedDataset
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(BucketDatasets)).Get([]byte(key))
		if data == nil {
			return nil
		}
		entry = &CachedDataset{}
		return json.Unmarshal(data, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read bolt cache: %w", err)
	}
	if entry == nil {
		return nil, nil
	}

	if entry.Expired(c.clock.Now()) {
		return nil, c.Delete(ctx, key)
	}
	return entry, nil
}

// Set 设置缓存
func (c *BoltCache) Set(_ context.Context, key string, records []map[string]any, ttl time.Duration) error {
	data, err := json.Marshal(newEntry(key, records, c.clock.Now(), ttl))
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}

	err = c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketDatasets)).Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to write bolt cache: %w", err)
	}
	return nil
}

// Delete 删除缓存
func (c *BoltCache) Delete(_ context.Context, key string) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketDatasets)).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete bolt cache: %w", err)
	}
	return nil
}

// Close 关闭数据库
func (c *BoltCache) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close bolt database: %w", err)
	}
	return nil
}
