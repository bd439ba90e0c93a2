package service

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/rs/zerolog/log"

	"scholar-rank-go/internal/model"
	"scholar-rank-go/internal/utils"
)

// MinTypoTokenLength 参与拼写纠正的token最小长度
const MinTypoTokenLength = 5

// Matcher 引用文本与venue的匹配器
// 只读取索引，不保存任何查询状态，可并发调用
type Matcher struct {
	index         *Index
	tokenizer     utils.Tokenizer
	vocabulary    map[string]bool
	typoThreshold float32
}

// MatcherOption 匹配器选项
type MatcherOption func(*Matcher)

// WithKnownAcronyms 使用索引中出现过的缩写识别已丢失大小写的输入
func WithKnownAcronyms() MatcherOption {
	return func(m *Matcher) {
		m.tokenizer = utils.Tokenizer{KnownAcronyms: m.index.Acronyms()}
	}
}

// WithTypoTolerance 把词表外的目标token纠正为Jaro-Winkler相似度不低于阈值的词表token
// 阈值 <= 0 表示关闭
func WithTypoTolerance(minSimilarity float32) MatcherOption {
	return func(m *Matcher) {
		m.typoThreshold = minSimilarity
	}
}

// NewMatcher 创建匹配器
func NewMatcher(idx *Index, opts ...MatcherOption) *Matcher {
	if idx == nil {
		idx = BuildIndex(nil)
	}
	m := &Matcher{index: idx}
	for _, opt := range opts {
		opt(m)
	}
	if m.typoThreshold > 0 {
		m.vocabulary = utils.TokenSet(idx.Vocabulary())
	}
	return m
}

// Index 匹配器使用的索引
func (m *Matcher) Index() *Index {
	return m.index
}

// MatchSnippet 对单个文本片段执行 精确 -> 模糊 匹配，按分数降序返回所有候选
func (m *Matcher) MatchSnippet(q model.Query) []model.MatchResult {
	citationVenue := strings.TrimSpace(q.CitationVenue)
	if citationVenue == "" {
		citationVenue = StripVenueSuffix(q.Text)
	}
	normalized := utils.Normalize(citationVenue)
	if normalized == "" {
		return nil
	}

	fuzzyMethod := q.Method
	if fuzzyMethod == "" {
		fuzzyMethod = model.MethodFuzzy
	}
	exactMethod := model.MethodExact
	if fuzzyMethod != model.MethodFuzzy && fuzzyMethod != model.MethodFuzzyAlt {
		// 回退来源的匹配始终带上回退标签
		exactMethod = fuzzyMethod
	}

	tokens := m.tokenizer.Tokenize(citationVenue)
	target, excludedAll := applyExclusion(tokens, q.ExcludeTokens)
	if excludedAll {
		// 片段只剩标题token，仍然匹配但明确标记来源
		exactMethod = model.MethodTitleFallback
		fuzzyMethod = model.MethodTitleFallback
	}

	var matches []model.MatchResult

	if venue, alias, ok := m.index.Lookup(normalized); ok {
		matches = append(matches, model.MatchResult{
			Entry:         venue,
			Matched:       alias,
			Score:         1,
			Method:        exactMethod,
			SourceText:    q.Text,
			CitationVenue: citationVenue,
		})
	}

	target = m.correctTypos(target)
	if len(target) > 0 {
		for _, c := range m.index.Candidates() {
			b := ComputeScore(c.Alias, target)
			if !Accepted(b) {
				continue
			}
			log.Debug().
				Str("target", normalized).
				Str("alias", c.Alias.Raw).
				Float64("score", b.Score).
				Float64("coverageAlias", b.CoverageAlias).
				Float64("sequence", b.SequenceScore).
				Msg("fuzzy venue candidate accepted")
			matches = append(matches, model.MatchResult{
				Entry:         c.Venue,
				Matched:       c.Alias.Raw,
				Score:         b.Score,
				Method:        fuzzyMethod,
				SourceText:    q.Text,
				CitationVenue: citationVenue,
			})
		}
	}

	sortByScore(matches)
	return matches
}

// MatchRecord 对一条学术记录的所有片段匹配，合并去重后排序
// 片段全部无结果时依次回退到元数据行和标题
func (m *Matcher) MatchRecord(r model.ScholarRecord) []model.MatchResult {
	exclude := m.tokenizer.Tokenize(r.Title)

	var collected []model.MatchResult
	for i, snippet := range r.Citations {
		method := model.MethodFuzzy
		if i > 0 {
			method = model.MethodFuzzyAlt
		}
		collected = append(collected, m.MatchSnippet(model.Query{
			Text:          snippet,
			ExcludeTokens: exclude,
			Method:        method,
		})...)
	}

	// 只有标题信号的片段匹配不能挡住元数据行
	if !hasCitationSignal(collected) {
		for _, candidate := range MetadataVenueCandidates(r.Metadata) {
			fallback := m.MatchSnippet(model.Query{
				Text:          r.Metadata,
				CitationVenue: candidate,
				ExcludeTokens: exclude,
				Method:        model.MethodMetadataFallback,
			})
			if len(fallback) > 0 {
				collected = fallback
				break
			}
		}
	}

	if len(collected) == 0 && strings.TrimSpace(r.Title) != "" {
		collected = m.MatchSnippet(model.Query{
			Text:          r.Title,
			CitationVenue: r.Title,
			Method:        model.MethodTitleFallback,
		})
	}

	return Finalize(MergeByVenue(collected))
}

// hasCitationSignal 是否存在非 title-fallback 的匹配
func hasCitationSignal(matches []model.MatchResult) bool {
	for _, mr := range matches {
		if mr.Method != model.MethodTitleFallback {
			return true
		}
	}
	return false
}

// MergeByVenue 按venue合并，每个venue只保留分数最高的匹配（同分保留先出现的）
func MergeByVenue(matches []model.MatchResult) []model.MatchResult {
	best := make(map[string]int, len(matches))
	var merged []model.MatchResult
	for _, match := range matches {
		key := match.Entry.Key()
		if i, ok := best[key]; ok {
			if match.Score > merged[i].Score {
				merged[i] = match
			}
			continue
		}
		best[key] = len(merged)
		merged = append(merged, match)
	}
	return merged
}

// Finalize 排序，标记首选，并为每个结果附上其余结果作为备选
func Finalize(matches []model.MatchResult) []model.MatchResult {
	if len(matches) == 0 {
		return []model.MatchResult{}
	}

	flat := make([]model.MatchResult, len(matches))
	copy(flat, matches)
	sortByScore(flat)
	for i := range flat {
		flat[i].IsPrimary = i == 0
		flat[i].Alternatives = nil
	}

	out := make([]model.MatchResult, len(flat))
	for i := range flat {
		out[i] = flat[i]
		alts := make([]model.MatchResult, 0, len(flat)-1)
		for j := range flat {
			if j != i {
				alts = append(alts, flat[j])
			}
		}
		out[i].Alternatives = alts
	}
	return out
}

// applyExclusion 从目标token中去掉标题token；若全部被去掉则忽略排除并返回 excludedAll=true
func applyExclusion(tokens, exclude []string) ([]string, bool) {
	if len(exclude) == 0 || len(tokens) == 0 {
		return tokens, false
	}
	ex := make(map[string]bool, len(exclude))
	for _, t := range exclude {
		ex[strings.ToLower(t)] = true
	}
	kept := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !ex[t] {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return tokens, true
	}
	return kept, false
}

// correctTypos 把词表外的长token替换为最相近的词表token
func (m *Matcher) correctTypos(tokens []string) []string {
	if m.typoThreshold <= 0 || len(m.vocabulary) == 0 {
		return tokens
	}

	vocab := m.index.Vocabulary()
	out := make([]string, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		replacement := tok
		if !m.vocabulary[tok] && len(tok) >= MinTypoTokenLength {
			var best float32
			for _, candidate := range vocab {
				lenDiff := len(candidate) - len(tok)
				if lenDiff > 2 || lenDiff < -2 {
					continue
				}
				sim := edlib.JaroWinklerSimilarity(tok, candidate)
				if sim >= m.typoThreshold && sim > best {
					best = sim
					replacement = candidate
				}
			}
			if replacement != tok {
				log.Debug().Str("token", tok).Str("corrected", replacement).Float32("similarity", best).Msg("typo corrected")
			}
		}
		if seen[replacement] {
			continue
		}
		seen[replacement] = true
		out = append(out, replacement)
	}
	return out
}

func sortByScore(matches []model.MatchResult) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
}
