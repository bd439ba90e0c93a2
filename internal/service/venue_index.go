package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog/log"

	"scholar-rank-go/internal/model"
	"scholar-rank-go/internal/utils"
)

// ErrInvalidDataset 数据集不是记录列表或无法解析
var ErrInvalidDataset = errors.New("invalid dataset")

// rawVenue 数据集原始记录的所有字段变体，只在边界使用
type rawVenue struct {
	Type          string   `mapstructure:"type"`
	Name          string   `mapstructure:"name"`
	OfficialName  string   `mapstructure:"officialName"`
	DisplayName   string   `mapstructure:"displayName"`
	Abbrv         string   `mapstructure:"abbrv"`
	Abbr          string   `mapstructure:"abbr"`
	Abbrev        string   `mapstructure:"abbrev"`
	Aliases       []string `mapstructure:"aliases"`
	AlternateName string   `mapstructure:"alternate-name"`
	Rank          string   `mapstructure:"rank"`
	Class         string   `mapstructure:"class"`
	Rating        string   `mapstructure:"rating"`
	Area          string   `mapstructure:"area"`
	Source        string   `mapstructure:"source"`
	SourceURL     string   `mapstructure:"sourceUrl"`
	SourceURLAlt  string   `mapstructure:"source_url"`
	LastUpdated   string   `mapstructure:"lastUpdated"`
	LastUpdated2  string   `mapstructure:"last_updated"`
	AccessNote    string   `mapstructure:"accessNote"`
}

// AliasCandidate 模糊匹配候选：别名及其所属venue
type AliasCandidate struct {
	Venue *model.VenueRecord
	Alias model.AliasEntry
}

type exactHit struct {
	venue *model.VenueRecord
	alias string
}

// Index 数据集索引，构建后只读，可并发使用
type Index struct {
	venues     []*model.VenueRecord
	exact      map[string]exactHit
	candidates []AliasCandidate
	vocabulary []string
	acronyms   map[string]bool
}

// DecodeDataset 解析数据集：JSON数组，或包裹了数组的JS脚本
func DecodeDataset(data []byte) ([]map[string]any, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		// 兼容 conferenceranks 的 data/*.js 脚本：截取第一个 [ 到最后一个 ]
		text := string(data)
		start := strings.Index(text, "[")
		end := strings.LastIndex(text, "]")
		if start == -1 || end <= start {
			return nil, fmt.Errorf("%w: unable to locate dataset array", ErrInvalidDataset)
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
		}
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a list of records, got %T", ErrInvalidDataset, raw)
	}

	records := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			records = append(records, m)
		}
	}
	return records, nil
}

// BuildIndexFromJSON 解析并构建索引
func BuildIndexFromJSON(data []byte) (*Index, error) {
	records, err := DecodeDataset(data)
	if err != nil {
		return nil, err
	}
	return BuildIndex(records), nil
}

// BuildIndex 构建索引。数据质量问题只会导致字段降级或记录被过滤，不会报错
func BuildIndex(records []map[string]any) *Index {
	idx := &Index{
		exact:    make(map[string]exactHit),
		acronyms: make(map[string]bool),
	}
	vocab := make(map[string]bool)

	for i, raw := range records {
		venue := normalizeVenue(raw)
		if venue == nil {
			log.Debug().Int("record", i).Msg("dropping venue without usable names")
			continue
		}

		var entries []model.AliasEntry
		seenNormalized := make(map[string]bool, len(venue.Aliases))
		for _, alias := range venue.Aliases {
			entry := NewAliasEntry(alias)
			if entry.Normalized == "" || seenNormalized[entry.Normalized] {
				continue
			}
			seenNormalized[entry.Normalized] = true
			entries = append(entries, entry)
		}
		if len(entries) == 0 {
			log.Debug().Int("record", i).Str("venue", venue.DisplayName).Msg("dropping venue with empty normalized aliases")
			continue
		}

		idx.venues = append(idx.venues, venue)
		for _, entry := range entries {
			// 先到先得，后面的冲突只保留在模糊列表里
			if _, exists := idx.exact[entry.Normalized]; !exists {
				idx.exact[entry.Normalized] = exactHit{venue: venue, alias: entry.Raw}
			}
			idx.candidates = append(idx.candidates, AliasCandidate{Venue: venue, Alias: entry})
			for _, tok := range entry.Tokens {
				vocab[tok] = true
			}
			for acr := range entry.Acronyms {
				idx.acronyms[acr] = true
			}
		}
	}

	idx.vocabulary = make([]string, 0, len(vocab))
	for tok := range vocab {
		idx.vocabulary = append(idx.vocabulary, tok)
	}
	sort.Strings(idx.vocabulary)

	log.Debug().
		Int("records", len(records)).
		Int("venues", len(idx.venues)).
		Int("aliases", len(idx.candidates)).
		Msg("venue index built")

	return idx
}

// NewAliasEntry 计算别名的标准化形式和token
func NewAliasEntry(alias string) model.AliasEntry {
	tokens, acronyms := utils.TokenizeDetailed(alias)
	return model.AliasEntry{
		Raw:        alias,
		Normalized: utils.Normalize(alias),
		Tokens:     tokens,
		Acronyms:   acronyms,
	}
}

// Venues 所有已索引的venue（按数据集顺序）
func (idx *Index) Venues() []*model.VenueRecord {
	return idx.venues
}

// Lookup 精确查找标准化文本，返回venue和产生该标准化形式的原始别名
func (idx *Index) Lookup(normalized string) (*model.VenueRecord, string, bool) {
	hit, ok := idx.exact[normalized]
	if !ok {
		return nil, "", false
	}
	return hit.venue, hit.alias, true
}

// Candidates 模糊匹配的别名列表
func (idx *Index) Candidates() []AliasCandidate {
	return idx.candidates
}

// Vocabulary 所有别名token（已排序去重）
func (idx *Index) Vocabulary() []string {
	return idx.vocabulary
}

// Acronyms 别名中出现过的缩写token
func (idx *Index) Acronyms() map[string]bool {
	return idx.acronyms
}

// Stats 索引统计
func (idx *Index) Stats() model.DatasetStats {
	return model.DatasetStats{
		Venues:    len(idx.venues),
		Aliases:   len(idx.candidates),
		ExactKeys: len(idx.exact),
	}
}

// normalizeVenue 按字段优先级把原始记录转换为VenueRecord，无任何名称时返回nil
func normalizeVenue(raw map[string]any) *model.VenueRecord {
	if raw == nil {
		return nil
	}

	var rv rawVenue
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &rv,
		WeaklyTypedInput: true,
		DecodeHook:       lenientStringSliceHook(),
	})
	if err == nil {
		err = decoder.Decode(raw)
	}
	if err != nil {
		// 部分字段解码失败时保留已解码的字段
		log.Debug().Err(err).Msg("venue record decoded with errors")
	}

	abbreviation := firstNonEmpty(rv.Abbrv, rv.Abbr, rv.Abbrev)
	officialName := firstNonEmpty(rv.OfficialName, rv.Name)

	var explicit []string
	for _, a := range rv.Aliases {
		if a = strings.TrimSpace(a); a != "" {
			explicit = append(explicit, a)
		}
	}

	aliases := dedupeStrings(append(explicit,
		strings.TrimSpace(rv.DisplayName),
		officialName,
		strings.TrimSpace(rv.Name),
		abbreviation,
		strings.TrimSpace(rv.AlternateName),
	))
	if len(aliases) == 0 {
		return nil
	}

	// 展示名必须能在精确索引中查到，标准化后为空的候选跳过
	chain := append([]string{rv.DisplayName, abbreviation, officialName}, explicit...)
	chain = append(chain, aliases...)
	displayName := firstNormalizable(chain...)
	if displayName == "" {
		displayName = model.UnnamedVenue
	}

	return &model.VenueRecord{
		Type:         resolveVenueType(rv.Type),
		DisplayName:  displayName,
		OfficialName: officialName,
		Aliases:      aliases,
		Rank:         firstNonEmpty(rv.Rank, rv.Class),
		Rating:       strings.TrimSpace(rv.Rating),
		Area:         strings.TrimSpace(rv.Area),
		Source:       strings.TrimSpace(rv.Source),
		SourceURL:    firstNonEmpty(rv.SourceURL, rv.SourceURLAlt),
		LastUpdated:  firstNonEmpty(rv.LastUpdated, rv.LastUpdated2),
		AccessNote:   strings.TrimSpace(rv.AccessNote),
	}
}

func resolveVenueType(s string) model.VenueType {
	switch model.VenueType(strings.ToLower(strings.TrimSpace(s))) {
	case model.VenueJournal:
		return model.VenueJournal
	default:
		return model.VenueConference
	}
}

// lenientStringSliceHook 别名列表中的非字符串元素直接丢弃，单个字符串视为单元素列表
func lenientStringSliceHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf([]string{}) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return []string{v}, nil
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok {
					out = append(out, s)
				}
			}
			return out, nil
		case nil:
			return []string{}, nil
		default:
			if from.Kind() != reflect.Slice {
				return []string{}, nil
			}
			return data, nil
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// firstNormalizable 第一个标准化后非空的值
func firstNormalizable(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" && utils.Normalize(v) != "" {
			return v
		}
	}
	return ""
}

// dedupeStrings 去掉空串和完全相同的字符串，保持首次出现顺序
func dedupeStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
