package fetcher

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultScholarURL Google Scholar 地址
const DefaultScholarURL = "https://scholar.google.com"

// DefaultCitationWait 等待引用弹窗的上限
const DefaultCitationWait = 5 * time.Second

// ScholarCitationFetcher 获取单条搜索结果的引用格式
type ScholarCitationFetcher struct {
	client  *http.Client
	baseURL string
	wait    time.Duration
	parser  *ScholarParser
}

// NewScholarCitationFetcher 创建引用获取器，wait <= 0 时使用默认等待时间
func NewScholarCitationFetcher(baseURL string, wait time.Duration, client *http.Client) *ScholarCitationFetcher {
	if baseURL == "" {
		baseURL = DefaultScholarURL
	}
	if wait <= 0 {
		wait = DefaultCitationWait
	}
	if client == nil {
		client = newHTTPClient()
	}
	return &ScholarCitationFetcher{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		wait:    wait,
		parser:  NewScholarParser(),
	}
}

// citeURL 引用弹窗地址
func (f *ScholarCitationFetcher) citeURL(clusterID string) string {
	params := url.Values{}
	params.Set("q", "info:"+clusterID+":scholar.google.com/")
	params.Set("output", "cite")
	params.Set("scirp", "0")
	params.Set("hl", "en")
	return f.baseURL + "/scholar?" + params.Encode()
}

// FetchCitations 在等待上限内获取引用文本，失败时返回空列表
func (f *ScholarCitationFetcher) FetchCitations(ctx context.Context, clusterID string) []string {
	if clusterID == "" {
		return []string{}
	}

	ctx, cancel := context.WithTimeout(ctx, f.wait)
	defer cancel()

	html, err := fetchText(ctx, f.client, f.citeURL(clusterID))
	if err != nil {
		log.Debug().Err(err).Str("cid", clusterID).Msg("citation panel unavailable")
		return []string{}
	}

	citations, err := f.parser.ParseCitationPanel(html)
	if err != nil {
		log.Debug().Err(err).Str("cid", clusterID).Msg("citation panel unparsable")
		return []string{}
	}
	return citations
}
