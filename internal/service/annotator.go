package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"scholar-rank-go/internal/fetcher"
	"scholar-rank-go/internal/model"
)

// DefaultQueueInterval 队列中相邻两条记录的处理间隔
const DefaultQueueInterval = 500 * time.Millisecond

// AnnotationService 学术记录标注服务
// 记录按队列逐条处理，必要时获取引用格式后交给匹配器
type AnnotationService struct {
	provider  IndexProvider
	citations fetcher.CitationFetcher
	parser    *fetcher.ScholarParser
	interval  time.Duration
	opts      []MatcherOption

	enabled atomic.Bool

	mu      sync.Mutex
	matcher *Matcher
}

// AnnotatorOption 标注服务选项
type AnnotatorOption func(*AnnotationService)

// WithCitationFetcher 记录没有引用文本时通过它获取
func WithCitationFetcher(f fetcher.CitationFetcher) AnnotatorOption {
	return func(s *AnnotationService) {
		s.citations = f
	}
}

// WithQueueInterval 队列间隔，<= 0 表示不限速
func WithQueueInterval(d time.Duration) AnnotatorOption {
	return func(s *AnnotationService) {
		s.interval = d
	}
}

// WithMatcherOptions 构建匹配器时使用的选项
func WithMatcherOptions(opts ...MatcherOption) AnnotatorOption {
	return func(s *AnnotationService) {
		s.opts = append(s.opts, opts...)
	}
}

// NewAnnotationService 创建标注服务，默认启用
func NewAnnotationService(provider IndexProvider, opts ...AnnotatorOption) *AnnotationService {
	s := &AnnotationService{
		provider: provider,
		parser:   fetcher.NewScholarParser(),
		interval: DefaultQueueInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.enabled.Store(true)
	return s
}

// Enabled 是否启用
func (s *AnnotationService) Enabled() bool {
	return s.enabled.Load()
}

// SetEnabled 启用或停用标注
func (s *AnnotationService) SetEnabled(enabled bool) {
	s.enabled.Store(enabled)
	log.Info().Bool("enabled", enabled).Msg("annotation toggled")
}

// currentMatcher 索引变化时重新创建匹配器
func (s *AnnotationService) currentMatcher(ctx context.Context) (*Matcher, error) {
	idx, err := s.provider.Get(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.matcher == nil || s.matcher.Index() != idx {
		s.matcher = NewMatcher(idx, s.opts...)
	}
	return s.matcher, nil
}

// MatchSnippet 匹配单个文本片段
func (s *AnnotationService) MatchSnippet(ctx context.Context, q model.Query) ([]model.MatchResult, error) {
	if !s.Enabled() {
		return []model.MatchResult{}, nil
	}
	m, err := s.currentMatcher(ctx)
	if err != nil {
		return nil, err
	}
	return Finalize(MergeByVenue(m.MatchSnippet(q))), nil
}

// MatchRecord 匹配单条记录（不获取引用格式）
func (s *AnnotationService) MatchRecord(ctx context.Context, r model.ScholarRecord) ([]model.MatchResult, error) {
	if !s.Enabled() {
		return []model.MatchResult{}, nil
	}
	m, err := s.currentMatcher(ctx)
	if err != nil {
		return nil, err
	}
	return m.MatchRecord(r), nil
}

// Annotate 逐条标注记录，每完成一条调用一次 onResult
// ctx 取消时在两条记录之间停止，返回已完成的部分和 ctx 的错误
func (s *AnnotationService) Annotate(ctx context.Context, records []model.ScholarRecord, onResult func(model.Annotation)) ([]model.Annotation, error) {
	annotations := make([]model.Annotation, 0, len(records))

	if !s.Enabled() {
		for _, r := range records {
			ann := model.Annotation{Record: r, Matches: []model.MatchResult{}}
			annotations = append(annotations, ann)
			if onResult != nil {
				onResult(ann)
			}
		}
		return annotations, nil
	}

	m, err := s.currentMatcher(ctx)
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if s.interval > 0 {
		limit = rate.Every(s.interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	for i, r := range records {
		if err := limiter.Wait(ctx); err != nil {
			log.Info().Int("done", i).Int("total", len(records)).Msg("annotation queue stopped")
			return annotations, fmt.Errorf("annotation stopped: %w", err)
		}

		if len(r.Citations) == 0 && r.ID != "" && s.citations != nil {
			r.Citations = s.citations.FetchCitations(ctx, r.ID)
		}

		ann := model.Annotation{Record: r, Matches: m.MatchRecord(r)}
		if len(ann.Matches) > 0 {
			primary := ann.Matches[0]
			ann.Primary = &primary
		}
		annotations = append(annotations, ann)
		if onResult != nil {
			onResult(ann)
		}
	}

	return annotations, nil
}

// ParseHTML 解析Scholar结果页或个人主页中的记录
func (s *AnnotationService) ParseHTML(html string) ([]model.ScholarRecord, error) {
	records, err := s.parser.ParseSearchResults(html)
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}
	if len(records) > 0 {
		return records, nil
	}
	// 个人主页格式
	records, err = s.parser.ParseProfilePublications(html)
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile page: %w", err)
	}
	return records, nil
}

// AnnotateHTML 解析页面后标注
func (s *AnnotationService) AnnotateHTML(ctx context.Context, html string, onResult func(model.Annotation)) ([]model.Annotation, error) {
	records, err := s.ParseHTML(html)
	if err != nil {
		return nil, err
	}
	return s.Annotate(ctx, records, onResult)
}

// InvalidateDataset 丢弃内存索引和持久缓存
func (s *AnnotationService) InvalidateDataset(ctx context.Context) error {
	s.mu.Lock()
	s.matcher = nil
	s.mu.Unlock()

	if err := s.provider.Invalidate(ctx); err != nil {
		return err
	}
	log.Info().Msg("venue dataset invalidated")
	return nil
}

// DatasetStats 数据集统计
func (s *AnnotationService) DatasetStats() model.DatasetStats {
	return s.provider.Stats()
}
