package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ConferenceRanks 默认地址
const (
	DefaultConferenceRanksURL = "http://www.conferenceranks.com/"
	DefaultERAURL             = "https://www.conferenceranks.com/data/era2010.min.js"
	DefaultQualisURL          = "https://www.conferenceranks.com/data/qualis2012.min.js"
)

// DatasetScript 一个 data/*.js 数据脚本及其来源名称
type DatasetScript struct {
	URL    string
	Source string
}

// DefaultDatasetScripts ERA 2010 和 Qualis 2012 两个数据集
func DefaultDatasetScripts(eraURL, qualisURL string) []DatasetScript {
	var scripts []DatasetScript
	if eraURL != "" {
		scripts = append(scripts, DatasetScript{URL: eraURL, Source: "ERA 2010"})
	}
	if qualisURL != "" {
		scripts = append(scripts, DatasetScript{URL: qualisURL, Source: "Qualis 2012"})
	}
	return scripts
}

var datasetMetaRe = regexp.MustCompile(`(?s)function\s+setData([A-Za-z0-9_]+)\s*\(rank_data\)\s*\{\s*var\s+dataset\s*=\s*\{(.*?)\};`)
var (
	metaNameRe = regexp.MustCompile(`name\s*:\s*'([^']*)'`)
	metaYearRe = regexp.MustCompile(`year\s*:\s*([0-9]{4})`)
)

// ConferenceRanksSource 从 conferenceranks.com 获取会议排名数据
type ConferenceRanksSource struct {
	client  *http.Client
	baseURL string
	scripts []DatasetScript
	clock   clockwork.Clock
}

// ConferenceRanksOption 选项
type ConferenceRanksOption func(*ConferenceRanksSource)

// WithHTTPClient 替换HTTP客户端
func WithHTTPClient(client *http.Client) ConferenceRanksOption {
	return func(s *ConferenceRanksSource) {
		s.client = client
	}
}

// WithClock 替换时钟（last_updated 取当天日期）
func WithClock(clock clockwork.Clock) ConferenceRanksOption {
	return func(s *ConferenceRanksSource) {
		s.clock = clock
	}
}

// NewConferenceRanksSource 创建数据源
// scripts 为空时从首页发现数据脚本
func NewConferenceRanksSource(baseURL string, scripts []DatasetScript, opts ...ConferenceRanksOption) *ConferenceRanksSource {
	if baseURL == "" {
		baseURL = DefaultConferenceRanksURL
	}
	s := &ConferenceRanksSource{
		client:  newHTTPClient(),
		baseURL: baseURL,
		scripts: scripts,
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name 数据源名称
func (s *ConferenceRanksSource) Name() string {
	return "conferenceranks"
}

// Load 并行下载所有数据脚本，任意一个失败则整体失败
func (s *ConferenceRanksSource) Load(ctx context.Context) ([]map[string]any, error) {
	scripts := s.scripts
	if len(scripts) == 0 {
		discovered, err := s.DiscoverScripts(ctx)
		if err != nil {
			return nil, err
		}
		if len(discovered) == 0 {
			return nil, fmt.Errorf("no dataset scripts found on %s", s.baseURL)
		}
		scripts = discovered
	}

	today := s.clock.Now().Format(time.DateOnly)
	batches := make([][]map[string]any, len(scripts))

	g, gctx := errgroup.WithContext(ctx)
	for i, script := range scripts {
		g.Go(func() error {
			text, err := fetchText(gctx, s.client, script.URL)
			if err != nil {
				return fmt.Errorf("fetch dataset %s: %w", script.Source, err)
			}
			rows, err := ParseDatasetScript(text)
			if err != nil {
				return fmt.Errorf("parse dataset %s: %w", script.Source, err)
			}

			batch := make([]map[string]any, 0, len(rows))
			for _, row := range rows {
				if entry := NormalizeConferenceRanksRow(row, script.Source, today); entry != nil {
					batch = append(batch, entry)
				}
			}
			batches[i] = batch

			log.Info().Str("source", script.Source).Int("rows", len(batch)).Msg("conferenceranks dataset loaded")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []map[string]any
	for _, batch := range batches {
		records = append(records, batch...)
	}
	return records, nil
}

// DiscoverScripts 从首页找出所有 data/*.js 数据脚本
func (s *ConferenceRanksSource) DiscoverScripts(ctx context.Context) ([]DatasetScript, error) {
	html, err := fetchText(ctx, s.client, s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("fetch landing page: %w", err)
	}
	return ParseDatasetScripts(s.baseURL, html)
}

// ParseDatasetScripts 解析首页HTML中的数据脚本，按出现顺序去重
func ParseDatasetScripts(baseURL, html string) ([]DatasetScript, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse landing page: %w", err)
	}

	metas := parseDatasetMetadata(html)
	seen := make(map[string]bool)
	var scripts []DatasetScript

	doc.Find(`script[src^="data/"]`).Each(func(i int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if seen[src] {
			return
		}
		ref, err := url.Parse(src)
		if err != nil {
			return
		}
		seen[src] = true

		id := datasetID(src)
		scripts = append(scripts, DatasetScript{
			URL:    base.ResolveReference(ref).String(),
			Source: datasetSourceName(id, metas[id]),
		})
	})

	log.Debug().Int("scripts", len(scripts)).Msg("dataset scripts discovered")
	return scripts, nil
}

type datasetMeta struct {
	name string
	year string
}

// parseDatasetMetadata 从首页内联的 setData* 函数提取数据集名称和年份
func parseDatasetMetadata(html string) map[string]datasetMeta {
	metas := make(map[string]datasetMeta)
	for _, m := range datasetMetaRe.FindAllStringSubmatch(html, -1) {
		meta := datasetMeta{}
		if nm := metaNameRe.FindStringSubmatch(m[2]); nm != nil {
			meta.name = nm[1]
		}
		if ym := metaYearRe.FindStringSubmatch(m[2]); ym != nil {
			meta.year = ym[1]
		}
		metas[strings.ToLower(m[1])] = meta
	}
	return metas
}

// datasetID data/era2010.min.js -> era2010
func datasetID(src string) string {
	base := path.Base(src)
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	return strings.ToLower(base)
}

func datasetSourceName(id string, meta datasetMeta) string {
	label := meta.name
	if label == "" {
		label = strings.ToUpper(id)
	}
	if meta.year != "" {
		label = strings.TrimSpace(label + " " + meta.year)
	}
	return label
}

// ParseDatasetScript 截取脚本中第一个 [ 到最后一个 ] 之间的JSON数组
// 纯JSON数组同样适用
func ParseDatasetScript(text string) ([]any, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end <= start {
		return nil, ErrDatasetScript
	}

	var rows []any
	if err := json.Unmarshal([]byte(text[start:end+1]), &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatasetScript, err)
	}
	return rows, nil
}

// NormalizeConferenceRanksRow 把一行数据转换为统一记录
// 行可以是对象，也可以是 [name, abbrv, rank] 形式的数组；其它类型返回nil
func NormalizeConferenceRanksRow(row any, source, lastUpdated string) map[string]any {
	var name, abbrv, rank, alternate string
	var aliases []string

	switch v := row.(type) {
	case map[string]any:
		name = stringField(v, "name")
		abbrv = stringField(v, "abbrv", "abbrev")
		rank = stringField(v, "rank", "class")
		alternate = stringField(v, "alternate-name")
		if list, ok := v["aliases"].([]any); ok {
			for _, item := range list {
				if s, ok := item.(string); ok && s != "" {
					aliases = append(aliases, s)
				}
			}
		}
	case []any:
		name = positional(v, 0)
		abbrv = positional(v, 1)
		rank = positional(v, 2)
	default:
		return nil
	}

	for _, label := range []string{name, abbrv, alternate} {
		if label != "" && !slices.Contains(aliases, label) {
			aliases = append(aliases, label)
		}
	}

	return map[string]any{
		"type":         "conference",
		"name":         name,
		"abbrv":        abbrv,
		"aliases":      toAnySlice(aliases),
		"rank":         rank,
		"source":       source,
		"source_url":   DefaultConferenceRanksURL,
		"last_updated": lastUpdated,
	}
}

func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := scalarString(m[key]); s != "" {
			return s
		}
	}
	return ""
}

func positional(row []any, i int) string {
	if i >= len(row) {
		return ""
	}
	return scalarString(row[i])
}

func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64, bool, json.Number:
		return strings.TrimSpace(fmt.Sprint(val))
	default:
		return ""
	}
}

func toAnySlice(list []string) []any {
	out := make([]any, len(list))
	for i, s := range list {
		out[i] = s
	}
	return out
}
