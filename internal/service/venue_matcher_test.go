package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholar-rank-go/internal/model"
)

func newSeedMatcher(opts ...MatcherOption) *Matcher {
	return NewMatcher(BuildIndex(seedDataset()), opts...)
}

func TestMatchSnippetExact(t *testing.T) {
	m := newSeedMatcher()

	matches := m.MatchSnippet(model.Query{Text: "N.I.P.S."})
	assert.Empty(t, matches)

	matches = m.MatchSnippet(model.Query{Text: "  neurips "})
	require.NotEmpty(t, matches)
	assert.Equal(t, "NeurIPS", matches[0].Entry.DisplayName)
	assert.Equal(t, model.MethodExact, matches[0].Method)
	assert.Equal(t, "NeurIPS", matches[0].Matched)
	assert.Equal(t, 1.0, matches[0].Score)
}

func TestMatchSnippetNeurIPSCitation(t *testing.T) {
	m := newSeedMatcher()

	matches := m.MatchSnippet(model.Query{
		Text: "Advances in Neural Information Processing Systems 33 (2020), pp. 1877-1901",
	})
	require.NotEmpty(t, matches)

	primary := matches[0]
	assert.Equal(t, "NeurIPS", primary.Entry.DisplayName)
	assert.Equal(t, model.MethodFuzzy, primary.Method)
	assert.GreaterOrEqual(t, primary.Score, MinFuzzyScore)
	assert.Equal(t, "Advances in Neural Information Processing Systems", primary.Matched)
	assert.Equal(t, "Advances in Neural Information Processing Systems 33 (2020), pp. 1877-1901", primary.CitationVenue)

	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
}

func TestMatchSnippetJMLR(t *testing.T) {
	m := newSeedMatcher()

	matches := m.MatchSnippet(model.Query{Text: "Journal of Machine Learning Research, vol 12"})
	require.Len(t, matches, 1)
	assert.Equal(t, "JMLR", matches[0].Entry.DisplayName)
	assert.Equal(t, model.MethodFuzzy, matches[0].Method)
	assert.GreaterOrEqual(t, matches[0].Score, MinFuzzyScore)
}

func TestMatchSnippetArxivWithoutRecord(t *testing.T) {
	m := newSeedMatcher()

	text := "arXiv preprint arXiv:2005.14165"
	assert.Equal(t, "arXiv 2005.14165", StripVenueSuffix(text))
	assert.Empty(t, m.MatchSnippet(model.Query{Text: text}))
	assert.Empty(t, m.MatchRecord(model.ScholarRecord{Citations: []string{text}}))
}

func TestMatchSnippetCitationVenueOverride(t *testing.T) {
	m := newSeedMatcher()

	matches := m.MatchSnippet(model.Query{
		Text:          `Doe, J. "A paper about CVPR." Unrelated Workshop`,
		CitationVenue: "IEEE Conference on Computer Vision and Pattern Recognition",
	})
	require.NotEmpty(t, matches)
	assert.Equal(t, "CVPR", matches[0].Entry.DisplayName)
	assert.Equal(t, model.MethodExact, matches[0].Method)
}

func TestMatchSnippetEmptyInput(t *testing.T) {
	m := newSeedMatcher()

	assert.Empty(t, m.MatchSnippet(model.Query{}))
	assert.Empty(t, m.MatchSnippet(model.Query{Text: `"Only a title."`}))
	assert.Empty(t, m.MatchSnippet(model.Query{Text: "!!! ---"}))
}

func TestMatchSnippetExclusionKeepsOtherSignal(t *testing.T) {
	m := newSeedMatcher()

	// 标题token被去掉后，剩余token仍指向CVPR
	matches := m.MatchSnippet(model.Query{
		Text:          "Conference on Computer Vision and Pattern Recognition Learning",
		ExcludeTokens: []string{"learning"},
	})
	require.NotEmpty(t, matches)
	assert.Equal(t, "CVPR", matches[0].Entry.DisplayName)
	assert.Equal(t, model.MethodFuzzy, matches[0].Method)
}

func TestMatchSnippetExclusionOfAllTokensIsTagged(t *testing.T) {
	m := newSeedMatcher()

	matches := m.MatchSnippet(model.Query{
		Text:          "Neural Information Processing Systems",
		ExcludeTokens: []string{"neural", "information", "processing", "systems"},
	})
	for _, match := range matches {
		assert.Equal(t, model.MethodTitleFallback, match.Method)
	}
}

func TestMatchRecordTitleEqualToVenueName(t *testing.T) {
	m := newSeedMatcher()

	results := m.MatchRecord(model.ScholarRecord{
		Title:     "Neural Information Processing Systems",
		Citations: []string{"Neural Information Processing Systems"},
	})
	for _, r := range results {
		assert.NotEqual(t, model.MethodFuzzy, r.Method)
		assert.NotEqual(t, model.MethodExact, r.Method)
		assert.NotEqual(t, model.MethodFuzzyAlt, r.Method)
	}
}

func TestMatchRecordMetadataBeatsTitleOnlySnippet(t *testing.T) {
	m := newSeedMatcher()

	results := m.MatchRecord(model.ScholarRecord{
		Title:     "Neural Information Processing Systems",
		Citations: []string{"Neural Information Processing Systems"},
		Metadata:  "K He - Proceedings of the IEEE conference on computer vision and pattern recognition, 2016",
	})

	require.NotEmpty(t, results)
	assert.Equal(t, "CVPR", results[0].Entry.DisplayName)
	assert.Equal(t, model.MethodMetadataFallback, results[0].Method)
	for _, r := range results {
		assert.NotEqual(t, model.MethodTitleFallback, r.Method)
	}
}

func TestMatchRecordKeepsTitleOnlySnippetWithoutMetadataMatch(t *testing.T) {
	m := newSeedMatcher()

	results := m.MatchRecord(model.ScholarRecord{
		Title:     "Neural Information Processing Systems",
		Citations: []string{"Neural Information Processing Systems"},
		Metadata:  "J Doe - Unknown Press, 2021",
	})

	require.NotEmpty(t, results)
	assert.Equal(t, "NeurIPS", results[0].Entry.DisplayName)
	for _, r := range results {
		assert.Equal(t, model.MethodTitleFallback, r.Method)
	}
}

func TestMatchRecordMergesSnippets(t *testing.T) {
	m := newSeedMatcher()

	results := m.MatchRecord(model.ScholarRecord{
		Title: "Language models are few-shot learners",
		Citations: []string{
			`Brown, T. "Language models are few-shot learners." Conference on Neural Information Processing Systems, 2020.`,
			`Brown, T. (2020). Language models are few-shot learners. Advances in Neural Information Processing Systems, 33.`,
			`Brown, T. "Language models are few-shot learners." NeurIPS`,
		},
	})

	require.Len(t, results, 1)
	assert.Equal(t, "NeurIPS", results[0].Entry.DisplayName)
	assert.True(t, results[0].IsPrimary)
	// 三个片段同为满分，保留最先出现的
	assert.Equal(t, model.MethodFuzzy, results[0].Method)
	assert.Equal(t, 1.0, results[0].Score)
	assert.Equal(t, "Conference on Neural Information Processing Systems", results[0].Matched)
	assert.Empty(t, results[0].Alternatives)
}

func TestMatchRecordAlternateSnippetMethod(t *testing.T) {
	m := newSeedMatcher()

	results := m.MatchRecord(model.ScholarRecord{
		Title: "Some paper",
		Citations: []string{
			`Doe, J. "Some paper." Unknown Venue`,
			`Doe, J. "Some paper." Journal of Machine Learning Research 12`,
		},
	})

	require.NotEmpty(t, results)
	assert.Equal(t, "JMLR", results[0].Entry.DisplayName)
	assert.Equal(t, model.MethodFuzzyAlt, results[0].Method)
}

func TestMatchRecordAlternativesContract(t *testing.T) {
	m := newSeedMatcher()

	// 同时命中ICML和JMLR
	results := m.MatchRecord(model.ScholarRecord{
		Citations: []string{
			`Doe, J. "A." ICML`,
			`Doe, J. "A." Journal of Machine Learning Research`,
			`Doe, J. "A." CVPR Workshops`,
		},
	})

	require.Len(t, results, 3)
	primaries := 0
	for i, r := range results {
		if r.IsPrimary {
			primaries++
			assert.Equal(t, 0, i)
		}
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Score, r.Score)
		}
		require.Len(t, r.Alternatives, len(results)-1)
		for _, alt := range r.Alternatives {
			assert.NotEqual(t, r.Entry.Key(), alt.Entry.Key())
			assert.Empty(t, alt.Alternatives)
		}
	}
	assert.Equal(t, 1, primaries)
	assert.Equal(t, "ICML", results[0].Entry.DisplayName)
}

func TestMatchRecordMetadataFallback(t *testing.T) {
	m := newSeedMatcher()

	results := m.MatchRecord(model.ScholarRecord{
		Title:    "Deep residual learning for image recognition",
		Metadata: "K He, X Zhang, S Ren, J Sun - Proceedings of the IEEE conference on computer vision and pattern recognition, 2016 - openaccess.thecvf.com",
	})

	require.NotEmpty(t, results)
	assert.Equal(t, "CVPR", results[0].Entry.DisplayName)
	assert.Equal(t, model.MethodMetadataFallback, results[0].Method)
	assert.True(t, results[0].IsPrimary)
}

func TestMatchRecordTitleFallback(t *testing.T) {
	m := newSeedMatcher()

	results := m.MatchRecord(model.ScholarRecord{
		Title:     "Advances in Neural Information Processing Systems: a retrospective",
		Citations: []string{`Doe, J. "x." Unknown Press`},
		Metadata:  "J Doe - Unknown Press, 2021",
	})

	require.NotEmpty(t, results)
	assert.Equal(t, "NeurIPS", results[0].Entry.DisplayName)
	assert.Equal(t, model.MethodTitleFallback, results[0].Method)
}

func TestMatchRecordEmpty(t *testing.T) {
	m := newSeedMatcher()

	results := m.MatchRecord(model.ScholarRecord{})
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestMatchSnippetKnownAcronyms(t *testing.T) {
	// 已丢失大小写的输入：默认无法识别两字母缩写
	assert.Empty(t, newSeedMatcher().MatchSnippet(model.Query{Text: "mm 2021 workshop"}))

	matches := newSeedMatcher(WithKnownAcronyms()).MatchSnippet(model.Query{Text: "mm 2021 workshop"})
	require.NotEmpty(t, matches)
	assert.Equal(t, "ACM MM", matches[0].Entry.DisplayName)

	// 原文大写时两条路径结果一致
	upper := model.Query{Text: "MM 2021 workshop"}
	assert.Equal(t, newSeedMatcher().MatchSnippet(upper), newSeedMatcher(WithKnownAcronyms()).MatchSnippet(upper))
}

func TestMatchSnippetTypoTolerance(t *testing.T) {
	q := model.Query{Text: "Advnces in Neural Informaton Processing Sytems"}

	assert.Empty(t, newSeedMatcher().MatchSnippet(q))

	matches := newSeedMatcher(WithTypoTolerance(0.9)).MatchSnippet(q)
	require.NotEmpty(t, matches)
	assert.Equal(t, "NeurIPS", matches[0].Entry.DisplayName)
	assert.Equal(t, model.MethodFuzzy, matches[0].Method)
}

func TestMatcherDeterministicAndConcurrent(t *testing.T) {
	m := newSeedMatcher()
	record := model.ScholarRecord{
		Title: "A",
		Citations: []string{
			`Doe, J. "A." International Conference on Machine Learning, 2020`,
			`Doe, J. "A." Journal of Machine Learning Research`,
		},
	}
	want := m.MatchRecord(record)

	var wg sync.WaitGroup
	results := make([][]model.MatchResult, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.MatchRecord(record)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestMergeByVenueKeepsBest(t *testing.T) {
	a := &model.VenueRecord{DisplayName: "A"}
	b := &model.VenueRecord{DisplayName: "B"}

	merged := MergeByVenue([]model.MatchResult{
		{Entry: a, Score: 0.6, Matched: "first"},
		{Entry: b, Score: 0.7},
		{Entry: a, Score: 0.9, Matched: "best"},
		{Entry: a, Score: 0.9, Matched: "tie"},
	})

	require.Len(t, merged, 2)
	assert.Equal(t, "best", merged[0].Matched)
	assert.Equal(t, "B", merged[1].Entry.DisplayName)
}
