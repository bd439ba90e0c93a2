package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"scholar-rank-go/internal/fetcher"
	"scholar-rank-go/internal/model"
)

// ErrNoDataset 数据集加载失败且没有可用的旧索引
var ErrNoDataset = errors.New("venue dataset unavailable")

// DefaultIndexTTL 内存索引有效期
const DefaultIndexTTL = 24 * time.Hour

// DefaultLoadTimeout 单次数据集加载的上限，与调用方的ctx无关
const DefaultLoadTimeout = 2 * time.Minute

// maxRebuildAttempts 加载期间数据集被重置时最多重新加载的次数
const maxRebuildAttempts = 3

// IndexProvider 提供当前可用的venue索引
type IndexProvider interface {
	Get(ctx context.Context) (*Index, error)
	Invalidate(ctx context.Context) error
	Stats() model.DatasetStats
}

// invalidator 带持久缓存的数据源
type invalidator interface {
	Invalidate(ctx context.Context) error
}

// CachedIndexProvider 按TTL重建索引，并发重建只执行一次
type CachedIndexProvider struct {
	source      fetcher.DatasetSource
	ttl         time.Duration
	loadTimeout time.Duration
	clock       clockwork.Clock
	group       singleflight.Group

	mu          sync.RWMutex
	index       *Index
	builtAt     time.Time
	invalidated bool
	generation  uint64
}

// NewCachedIndexProvider 创建索引提供者
func NewCachedIndexProvider(source fetcher.DatasetSource, ttl time.Duration, clock clockwork.Clock) *CachedIndexProvider {
	if ttl <= 0 {
		ttl = DefaultIndexTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CachedIndexProvider{source: source, ttl: ttl, loadTimeout: DefaultLoadTimeout, clock: clock}
}

// Get 返回当前索引，过期或失效时重建
// 重建失败时如果有旧索引则继续使用旧索引
func (p *CachedIndexProvider) Get(ctx context.Context) (*Index, error) {
	p.mu.RLock()
	current, builtAt, invalidated := p.index, p.builtAt, p.invalidated
	p.mu.RUnlock()

	if current != nil && !invalidated && p.clock.Since(builtAt) < p.ttl {
		return current, nil
	}

	// 重建不跟随某个调用方的取消，每个调用方只等待自己的ctx
	ch := p.group.DoChan("index", func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.loadTimeout)
		defer cancel()
		return p.rebuild(loadCtx)
	})

	var (
		v   any
		err error
	)
	select {
	case res := <-ch:
		v, err = res.Val, res.Err
	case <-ctx.Done():
		if current != nil {
			return current, nil
		}
		return nil, ctx.Err()
	}
	if err != nil {
		if current != nil {
			log.Warn().Err(err).Str("source", p.source.Name()).Msg("dataset reload failed, serving stale index")
			return current, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrNoDataset, err)
	}
	return v.(*Index), nil
}

// rebuild 加载并安装新索引
// 加载期间发生 Invalidate 时丢弃结果重新加载，避免装回重置前的数据
func (p *CachedIndexProvider) rebuild(ctx context.Context) (*Index, error) {
	var (
		idx     *Index
		records []map[string]any
	)
	for attempt := 1; ; attempt++ {
		p.mu.RLock()
		generation := p.generation
		p.mu.RUnlock()

		var err error
		records, err = p.source.Load(ctx)
		if err != nil {
			return nil, err
		}
		idx = BuildIndex(records)

		p.mu.Lock()
		if p.generation == generation {
			p.index = idx
			p.builtAt = p.clock.Now()
			p.invalidated = false
			p.mu.Unlock()
			break
		}
		p.mu.Unlock()

		if attempt >= maxRebuildAttempts {
			log.Warn().Str("source", p.source.Name()).Msg("dataset invalidated during every reload, index not installed")
			return idx, nil
		}
		log.Debug().Str("source", p.source.Name()).Msg("dataset invalidated during reload, reloading")
	}

	stats := idx.Stats()
	log.Info().
		Str("source", p.source.Name()).
		Int("records", len(records)).
		Int("venues", stats.Venues).
		Int("aliases", stats.Aliases).
		Msg("venue index rebuilt")
	return idx, nil
}

// Invalidate 下次 Get 时强制重建，并清除数据源的持久缓存
func (p *CachedIndexProvider) Invalidate(ctx context.Context) error {
	p.mu.Lock()
	p.invalidated = true
	p.generation++
	p.mu.Unlock()

	if inv, ok := p.source.(invalidator); ok {
		if err := inv.Invalidate(ctx); err != nil {
			return fmt.Errorf("failed to invalidate dataset cache: %w", err)
		}
	}
	return nil
}

// LastBuilt 最近一次构建时间，未构建时为零值
func (p *CachedIndexProvider) LastBuilt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.builtAt
}

// Stats 当前索引统计
func (p *CachedIndexProvider) Stats() model.DatasetStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.index == nil {
		return model.DatasetStats{}
	}
	stats := p.index.Stats()
	stats.LastBuilt = p.builtAt.UTC().Format(time.RFC3339)
	return stats
}
