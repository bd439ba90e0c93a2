package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var keyReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")

// FileCache 基于文件的缓存实现，每个key一个JSON文件
type FileCache struct {
	fs    afero.Fs
	dir   string
	clock clockwork.Clock
	mu    sync.RWMutex
}

// NewFileCache 创建文件缓存
func NewFileCache(fs afero.Fs, dir string, clock clockwork.Clock) (*FileCache, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileCache{fs: fs, dir: dir, clock: clock}, nil
}

func (c *FileCache) cacheFile(key string) string {
	return filepath.Join(c.dir, keyReplacer.Replace(key)+".json")
}

// Get 获取缓存
func (c *FileCache) Get(ctx context.Context, key string) (*CachedDataset, error) {
	c.mu.RLock()
	data, err := afero.ReadFile(c.fs, c.cacheFile(key))
	c.mu.RUnlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var entry CachedDataset
	if err := json.Unmarshal(data, &entry); err != nil {
		// 损坏的缓存文件按未命中处理
		log.Warn().Err(err).Str("key", key).Msg("discarding corrupt dataset cache file")
		return nil, c.Delete(ctx, key)
	}

	if entry.Expired(c.clock.Now()) {
		return nil, c.Delete(ctx, key)
	}

	return &entry, nil
}

// Set 设置缓存
func (c *FileCache) Set(_ context.Context, key string, records []map[string]any, ttl time.Duration) error {
	data, err := json.Marshal(newEntry(key, records, c.clock.Now(), ttl))
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := afero.WriteFile(c.fs, c.cacheFile(key), data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

// Delete 删除缓存
func (c *FileCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.fs.Remove(c.cacheFile(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	return nil
}
