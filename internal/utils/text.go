package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinTokenLength 非缩写token的最小长度
const MinTokenLength = 3

// stopWords 分词时丢弃的常见虚词
var stopWords = map[string]bool{
	"and": true, "the": true, "of": true, "on": true, "in": true,
	"for": true, "with": true, "at": true, "by": true, "from": true,
	"to": true, "an": true, "as": true, "or": true,
}

// IsStopWord 判断是否为停用词（小写）
func IsStopWord(word string) bool {
	return stopWords[word]
}

// stripMarks NFD分解后去掉组合音标，保留大小写
func stripMarks(s string) string {
	// transform.Chain 有内部状态，每次调用都要新建
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if result, _, err := transform.String(t, s); err == nil {
		return result
	}
	return s
}

// Normalize 标准化文本：小写、去音标、非 [a-z0-9] 字符替换为空格、合并空白
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	folded := stripMarks(strings.ToLower(text))

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			// 空白和其它字符一律变成空格，后面统一合并
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokenizer 分词器
// KnownAcronyms 为空时只按原文大小写识别缩写；
// 非空时，小写形式在集合中的片段也视为缩写（用于已丢失大小写的输入）
type Tokenizer struct {
	KnownAcronyms map[string]bool
}

var defaultTokenizer = Tokenizer{}

// Tokenize 使用默认分词器分词
func Tokenize(text string) []string {
	tokens, _ := defaultTokenizer.TokenizeDetailed(text)
	return tokens
}

// TokenizeDetailed 使用默认分词器分词，同时返回缩写集合
func TokenizeDetailed(text string) ([]string, map[string]bool) {
	return defaultTokenizer.TokenizeDetailed(text)
}

// Tokenize 分词，只返回token
func (t Tokenizer) Tokenize(text string) []string {
	tokens, _ := t.TokenizeDetailed(text)
	return tokens
}

// TokenizeDetailed 分词
// 返回去重后的小写token（保持首次出现顺序）和其中被识别为缩写的token集合
func (t Tokenizer) TokenizeDetailed(text string) ([]string, map[string]bool) {
	if text == "" {
		return nil, nil
	}

	fragments := strings.FieldsFunc(stripMarks(text), func(r rune) bool {
		return !isASCIIAlnum(r)
	})

	var tokens []string
	var acronyms map[string]bool
	seen := make(map[string]bool, len(fragments))

	for _, frag := range fragments {
		lower := strings.ToLower(frag)
		acronym := isUpperAcronym(frag) || (t.KnownAcronyms[lower] && isLetters(lower) && len(lower) >= 2)

		if len(frag) < MinTokenLength && !acronym {
			continue
		}
		if isDigits(frag) || stopWords[lower] {
			continue
		}

		if acronym {
			if acronyms == nil {
				acronyms = make(map[string]bool)
			}
			acronyms[lower] = true
		}
		if seen[lower] {
			continue
		}
		seen[lower] = true
		tokens = append(tokens, lower)
	}

	return tokens, acronyms
}

// IsAcronym 判断片段是否为2个以上大写字母组成的缩写
func IsAcronym(fragment string) bool {
	return isUpperAcronym(fragment)
}

func isUpperAcronym(s string) bool {
	if len(s) < 2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

func isLetters(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// TokenSet 转换为集合
func TokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}
