package fetcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/spf13/afero"
)

// csvVenueRow conferenceranks_scraper 导出的CSV格式
type csvVenueRow struct {
	Name   string `csv:"name"`
	Abbrv  string `csv:"abbrv"`
	Rank   string `csv:"rank"`
	Source string `csv:"source"`
}

// FileSource 本地手工维护的数据集（.json / .js / .csv）
type FileSource struct {
	fs   afero.Fs
	path string
}

// NewFileSource 创建本地数据源
func NewFileSource(fs afero.Fs, path string) *FileSource {
	return &FileSource{fs: fs, path: path}
}

// Name 数据源名称
func (s *FileSource) Name() string {
	return "file:" + filepath.Base(s.path)
}

// Load 读取并解析文件
func (s *FileSource) Load(_ context.Context) ([]map[string]any, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(s.path), ".csv") {
		return parseCSVDataset(data)
	}

	rows, err := ParseDatasetScript(string(data))
	if err != nil {
		return nil, fmt.Errorf("dataset file %s: %w", s.path, err)
	}
	records := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		if m, ok := row.(map[string]any); ok {
			records = append(records, m)
		}
	}
	return records, nil
}

func parseCSVDataset(data []byte) ([]map[string]any, error) {
	var rows []*csvVenueRow
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse csv dataset: %w", err)
	}

	records := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		name := strings.TrimSpace(row.Name)
		abbrv := strings.TrimSpace(row.Abbrv)
		var aliases []any
		for _, label := range []string{name, abbrv} {
			if label != "" && (len(aliases) == 0 || aliases[0] != label) {
				aliases = append(aliases, label)
			}
		}
		records = append(records, map[string]any{
			"type":    "conference",
			"name":    name,
			"abbrv":   abbrv,
			"aliases": aliases,
			"rank":    strings.TrimSpace(row.Rank),
			"source":  strings.TrimSpace(row.Source),
		})
	}
	return records, nil
}
