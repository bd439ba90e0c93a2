package fetcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

type mergePart struct {
	source   DatasetSource
	optional bool
}

// MergedSource 按顺序合并多个数据源并按条目key去重（先到先得）
type MergedSource struct {
	parts []mergePart
}

// NewMergedSource 创建合并数据源，参数中的数据源都是必需的
func NewMergedSource(required ...DatasetSource) *MergedSource {
	m := &MergedSource{}
	for _, src := range required {
		m.parts = append(m.parts, mergePart{source: src})
	}
	return m
}

// WithOptional 追加可选数据源，加载失败时只记录警告
func (m *MergedSource) WithOptional(src DatasetSource) *MergedSource {
	m.parts = append(m.parts, mergePart{source: src, optional: true})
	return m
}

// Name 数据源名称
func (m *MergedSource) Name() string {
	names := make([]string, len(m.parts))
	for i, p := range m.parts {
		names[i] = p.source.Name()
	}
	return strings.Join(names, "+")
}

// Load 加载所有数据源
func (m *MergedSource) Load(ctx context.Context) ([]map[string]any, error) {
	var combined []map[string]any
	for _, p := range m.parts {
		records, err := p.source.Load(ctx)
		if err != nil {
			if p.optional {
				log.Warn().Err(err).Str("source", p.source.Name()).Msg("optional dataset source failed, skipping")
				continue
			}
			return nil, fmt.Errorf("dataset source %s: %w", p.source.Name(), err)
		}
		combined = append(combined, records...)
	}
	return DedupeEntries(combined), nil
}

// DedupeEntries 按 EntryKey 去重，没有key的条目全部保留
func DedupeEntries(records []map[string]any) []map[string]any {
	seen := make(map[string]bool, len(records))
	unique := make([]map[string]any, 0, len(records))
	for _, entry := range records {
		key := EntryKey(entry)
		if key == "" {
			unique = append(unique, entry)
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, entry)
	}
	return unique
}

// EntryKey 去重key：name -> officialName -> displayName -> abbrv，小写并合并空白
func EntryKey(entry map[string]any) string {
	for _, field := range []string{"name", "officialName", "displayName", "abbrv"} {
		if s, ok := entry[field].(string); ok && strings.TrimSpace(s) != "" {
			return strings.ToLower(strings.Join(strings.Fields(s), " "))
		}
	}
	return ""
}
