package model

// VenueType 会议或期刊
type VenueType string

const (
	VenueConference VenueType = "conference"
	VenueJournal    VenueType = "journal"
)

// UnnamedVenue 所有名称字段都缺失时的展示名
const UnnamedVenue = "Unnamed venue"

// VenueRecord 标准化后的会议/期刊记录（索引构建后只读）
type VenueRecord struct {
	Type         VenueType `json:"type"`
	DisplayName  string    `json:"display_name"`
	OfficialName string    `json:"official_name,omitempty"`
	Aliases      []string  `json:"aliases"`
	Rank         string    `json:"rank,omitempty"`
	Rating       string    `json:"rating,omitempty"`
	Area         string    `json:"area,omitempty"`
	Source       string    `json:"source,omitempty"`
	SourceURL    string    `json:"source_url,omitempty"`
	LastUpdated  string    `json:"last_updated,omitempty"`
	AccessNote   string    `json:"access_note,omitempty"`
}

// Key 合并同一venue的匹配结果时使用的标识
func (v *VenueRecord) Key() string {
	if v == nil {
		return ""
	}
	if v.DisplayName != "" {
		return v.DisplayName
	}
	return v.OfficialName
}

// AliasEntry 单个别名的派生数据
type AliasEntry struct {
	Raw        string          `json:"raw"`
	Normalized string          `json:"normalized"`
	Tokens     []string        `json:"tokens"`
	Acronyms   map[string]bool `json:"-"` // 原文中全大写的token
}

// IsAcronym 判断token在原始别名中是否为缩写
func (a AliasEntry) IsAcronym(token string) bool {
	return a.Acronyms[token]
}

// MatchMethod 匹配来源
type MatchMethod string

const (
	MethodExact            MatchMethod = "exact"
	MethodFuzzy            MatchMethod = "fuzzy"
	MethodFuzzyAlt         MatchMethod = "fuzzy-alt"
	MethodMetadataFallback MatchMethod = "metadata-fallback"
	MethodTitleFallback    MatchMethod = "title-fallback"
)

// ScoreBreakdown 模糊打分的各项指标
type ScoreBreakdown struct {
	Score          float64  `json:"score"`
	Overlap        []string `json:"overlap,omitempty"`
	SequenceScore  float64  `json:"sequence_score"`
	CoverageAlias  float64  `json:"coverage_alias"`
	CoverageTarget float64  `json:"coverage_target"`
}

// MatchResult 单个匹配结果
type MatchResult struct {
	Entry         *VenueRecord  `json:"entry"`
	Matched       string        `json:"matched"`
	Score         float64       `json:"score"`
	Method        MatchMethod   `json:"method"`
	SourceText    string        `json:"source_text,omitempty"`
	CitationVenue string        `json:"citation_venue,omitempty"`
	IsPrimary     bool          `json:"is_primary"`
	Alternatives  []MatchResult `json:"alternatives,omitempty"`
}

// Query 单个文本片段的匹配请求
type Query struct {
	Text          string      // 原始片段
	CitationVenue string      // 已清理的venue文本，非空时优先使用
	ExcludeTokens []string    // 通常来自论文标题
	Method        MatchMethod // 模糊匹配结果的标签，默认 fuzzy
}
