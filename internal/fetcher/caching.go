package fetcher

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"scholar-rank-go/internal/cache"
)

// DefaultDatasetTTL 数据集持久缓存有效期
const DefaultDatasetTTL = 24 * time.Hour

// CachingSource 给数据源加一层持久缓存
type CachingSource struct {
	source DatasetSource
	cache  cache.Cache
	key    string
	ttl    time.Duration
}

// NewCachingSource 创建带缓存的数据源，ttl <= 0 时使用默认值
func NewCachingSource(source DatasetSource, c cache.Cache, key string, ttl time.Duration) *CachingSource {
	if ttl <= 0 {
		ttl = DefaultDatasetTTL
	}
	if key == "" {
		key = source.Name()
	}
	return &CachingSource{source: source, cache: c, key: key, ttl: ttl}
}

// Name 数据源名称
func (s *CachingSource) Name() string {
	return s.source.Name()
}

// Load 优先读缓存，未命中时加载并写回
// 缓存本身出错不影响加载
func (s *CachingSource) Load(ctx context.Context) ([]map[string]any, error) {
	cached, err := s.cache.Get(ctx, s.key)
	if err != nil {
		log.Warn().Err(err).Str("key", s.key).Msg("dataset cache read failed")
	}
	if cached != nil {
		log.Debug().Str("key", s.key).Int("records", len(cached.Records)).Msg("dataset cache hit")
		return cached.Records, nil
	}

	records, err := s.source.Load(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, s.key, records, s.ttl); err != nil {
		log.Warn().Err(err).Str("key", s.key).Msg("dataset cache write failed")
	}
	return records, nil
}

// Invalidate 删除缓存条目
func (s *CachingSource) Invalidate(ctx context.Context) error {
	return s.cache.Delete(ctx, s.key)
}
