package service

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxVenueTailLength 超过这个长度的尾部文本视为引号切分失败
const MaxVenueTailLength = 150

var (
	quoteReplacer = strings.NewReplacer(
		"“", `"`, "”", `"`, "„", `"`, "‟", `"`,
		"«", `"`, "»", `"`, "″", `"`,
	)
	spaceReplacer = strings.NewReplacer("\u00a0", " ", "\u2009", " ", "\u202f", " ")

	arxivPreprintRe = regexp.MustCompile(`(?i)arxiv preprint`)
	arxivIDRe       = regexp.MustCompile(`(?i)arxiv[:\s]*(\d+\.\d+)`)

	// Scholar元数据行中venue片段的清理规则
	segmentArxivRe   = regexp.MustCompile(`(?i)\barxiv preprint\b.*$`)
	segmentVolumeRe  = regexp.MustCompile(`(?i)\b(vol|volume|no|pp)\.?\s.*$`)
	segmentParenRe   = regexp.MustCompile(`\(.*?\)`)
	segmentYearRe    = regexp.MustCompile(`\d{4}.*`)
	segmentSplitRe   = regexp.MustCompile(`[,;•|]`)
	metadataSplitter = " - "
)

// StripVenueSuffix 从引用文本中提取venue部分
// 典型格式: Author, A. "Title." Venue, Year.
// 取第二个引号之后的文本；没有闭合引号时取第一个引号之后；没有引号时取全文
func StripVenueSuffix(raw string) string {
	text := strings.TrimSpace(spaceReplacer.Replace(quoteReplacer.Replace(raw)))
	if text == "" {
		return ""
	}

	tail := text
	if first := strings.Index(text, `"`); first >= 0 {
		rest := text[first+1:]
		if second := strings.Index(rest, `"`); second >= 0 {
			tail = rest[second+1:]
		} else {
			tail = rest
		}
	}

	tail = strings.TrimLeftFunc(tail, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || r == '-' || r == '–' || r == '—'
	})
	tail = strings.TrimSpace(tail)

	// arXiv 只保留编号，避免卷号页码污染token
	if arxivPreprintRe.MatchString(tail) {
		if m := arxivIDRe.FindStringSubmatch(tail); len(m) > 1 {
			return "arXiv " + m[1]
		}
		return "arXiv"
	}

	if utf8.RuneCountInString(tail) > MaxVenueTailLength {
		return ""
	}
	return tail
}

// VenueCandidateFromSegment 清理Scholar元数据行中的单个片段
func VenueCandidateFromSegment(segment string) string {
	if segment == "" {
		return ""
	}
	clean := segmentArxivRe.ReplaceAllString(segment, "arxiv")
	clean = segmentVolumeRe.ReplaceAllString(clean, "")
	clean = segmentParenRe.ReplaceAllString(clean, "")
	clean = segmentYearRe.ReplaceAllString(clean, "")
	clean = segmentSplitRe.Split(clean, 2)[0]
	return strings.TrimSpace(clean)
}

// MetadataVenueCandidates 从元数据行（作者 - venue, 年份 - 出版方）提取venue候选
func MetadataVenueCandidates(line string) []string {
	line = strings.TrimSpace(spaceReplacer.Replace(line))
	if line == "" {
		return nil
	}

	var segments []string
	for _, part := range strings.Split(line, metadataSplitter) {
		if part = strings.TrimSpace(part); part != "" {
			segments = append(segments, part)
		}
	}
	if len(segments) < 2 {
		return nil
	}

	var candidates []string
	seen := make(map[string]bool)
	for _, segment := range segments[1:min(len(segments), 3)] {
		if c := VenueCandidateFromSegment(segment); c != "" && !seen[c] {
			seen[c] = true
			candidates = append(candidates, c)
		}
	}
	return candidates
}
