package model

// ScholarRecord 一条学术搜索结果（由页面解析器或调用方提供）
type ScholarRecord struct {
	ID        string   `json:"id,omitempty" validate:"omitempty,max=64"`
	Title     string   `json:"title"`
	Metadata  string   `json:"metadata,omitempty"`  // 作者 - venue, 年份 - 出版方
	Snippet   string   `json:"snippet,omitempty"`   // 摘要片段
	Citations []string `json:"citations,omitempty"` // 各引用格式文本（MLA/APA/...）
}

// Annotation 单条记录的标注结果
type Annotation struct {
	Record  ScholarRecord `json:"record"`
	Primary *MatchResult  `json:"primary,omitempty"`
	Matches []MatchResult `json:"matches"`
}

// DatasetStats 索引统计
type DatasetStats struct {
	Venues    int    `json:"venues"`
	Aliases   int    `json:"aliases"`
	ExactKeys int    `json:"exact_keys"`
	LastBuilt string `json:"last_built,omitempty"`
}

// AnnotationState 标注进度 - SSE每次输出这个完整结构
type AnnotationState struct {
	Status        string       `json:"status"` // "annotating" | "completed" | "error"
	RequestID     string       `json:"request_id,omitempty"`
	Overall       int          `json:"overall"` // 整体进度 0-100
	CurrentAction string       `json:"current_action"`
	Total         int          `json:"total"`
	Done          int          `json:"done"`
	Latest        *Annotation  `json:"latest,omitempty"`
	Annotations   []Annotation `json:"annotations,omitempty"` // 仅在完成时输出
	Error         string       `json:"error,omitempty"`
}

// NewAnnotationState 创建初始状态
func NewAnnotationState() *AnnotationState {
	return &AnnotationState{
		Status: "annotating",
	}
}
