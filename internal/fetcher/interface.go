package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrDatasetScript 数据集脚本中找不到记录数组
var ErrDatasetScript = errors.New("unable to locate dataset array")

// DatasetSource venue数据集来源
// Load 返回原始记录，字段变体由索引构建时统一处理
type DatasetSource interface {
	Load(ctx context.Context) ([]map[string]any, error)
	Name() string
}

// CitationFetcher 获取某条搜索结果的引用格式列表
// 失败或超时返回空列表，不返回错误
type CitationFetcher interface {
	FetchCitations(ctx context.Context, clusterID string) []string
}

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 13_5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
	}
}

// fetchText GET请求并返回响应正文
func fetchText(ctx context.Context, client *http.Client, reqURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", reqURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned status %d", reqURL, resp.StatusCode)
	}

	return string(body), nil
}
