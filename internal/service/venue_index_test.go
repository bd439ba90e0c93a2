package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholar-rank-go/internal/model"
	"scholar-rank-go/internal/utils"
)

func TestBuildIndexSeedDataset(t *testing.T) {
	idx := BuildIndex(seedDataset())

	require.Len(t, idx.Venues(), 6)

	neurips := idx.Venues()[0]
	assert.Equal(t, model.VenueConference, neurips.Type)
	assert.Equal(t, "NeurIPS", neurips.DisplayName)
	assert.Equal(t, "A*", neurips.Rank)
	assert.Equal(t, "http://www.conferenceranks.com/", neurips.SourceURL)
	assert.Equal(t, []string{
		"NeurIPS",
		"NIPS",
		"Advances in Neural Information Processing Systems",
		"Conference on Neural Information Processing Systems",
	}, neurips.Aliases)

	assert.Equal(t, model.VenueJournal, idx.Venues()[2].Type)
}

func TestBuildIndexDisplayNameLookup(t *testing.T) {
	records := append(seedDataset(),
		map[string]any{"alternate-name": "Symposium on Widget Theory"},
		map[string]any{"displayName": "???", "name": "Foo Bar Conference"},
		map[string]any{"displayName": "--", "abbrv": "!!", "aliases": []any{"...", "Gadget Workshop"}},
	)
	idx := BuildIndex(records)
	require.Len(t, idx.Venues(), len(records))

	byName := make(map[string]bool)
	for _, venue := range idx.Venues() {
		byName[venue.DisplayName] = true
	}
	assert.True(t, byName["Symposium on Widget Theory"])
	assert.True(t, byName["Foo Bar Conference"])
	assert.True(t, byName["Gadget Workshop"])

	for _, venue := range idx.Venues() {
		got, _, ok := idx.Lookup(utils.Normalize(venue.DisplayName))
		require.True(t, ok, venue.DisplayName)
		assert.Same(t, venue, got)
	}
}

func TestBuildIndexFieldFallbacks(t *testing.T) {
	testCases := []struct {
		name         string
		record       map[string]any
		wantDisplay  string
		wantOfficial string
		wantType     model.VenueType
		wantRank     string
		wantAliases  []string
	}{
		{
			name:         "abbreviation before official name",
			record:       map[string]any{"name": "Very Large Data Bases", "abbrv": "VLDB", "class": "A"},
			wantDisplay:  "VLDB",
			wantOfficial: "Very Large Data Bases",
			wantType:     model.VenueConference,
			wantRank:     "A",
			wantAliases:  []string{"Very Large Data Bases", "VLDB"},
		},
		{
			name:         "official name only",
			record:       map[string]any{"officialName": "Operations Research", "type": "JOURNAL"},
			wantDisplay:  "Operations Research",
			wantOfficial: "Operations Research",
			wantType:     model.VenueJournal,
			wantAliases:  []string{"Operations Research"},
		},
		{
			name:        "first alias when nothing else",
			record:      map[string]any{"aliases": []any{"  ", "SIGIR", 42, nil, "SIGIR"}, "type": "workshop"},
			wantDisplay: "SIGIR",
			wantType:    model.VenueConference,
			wantAliases: []string{"SIGIR"},
		},
		{
			name:        "numeric rank and abbr variant",
			record:      map[string]any{"abbr": "KDD", "rank": 1.0, "source_url": "https://example.org", "last_updated": "2024-01-01"},
			wantDisplay: "KDD",
			wantType:    model.VenueConference,
			wantRank:    "1",
			wantAliases: []string{"KDD"},
		},
		{
			name:        "single string aliases and alternate name",
			record:      map[string]any{"abbrev": "STOC", "aliases": "Symposium on Theory of Computing", "alternate-name": "ACM STOC"},
			wantDisplay: "STOC",
			wantType:    model.VenueConference,
			wantAliases: []string{"Symposium on Theory of Computing", "STOC", "ACM STOC"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			idx := BuildIndex([]map[string]any{tc.record})
			require.Len(t, idx.Venues(), 1)
			v := idx.Venues()[0]
			assert.Equal(t, tc.wantDisplay, v.DisplayName)
			assert.Equal(t, tc.wantOfficial, v.OfficialName)
			assert.Equal(t, tc.wantType, v.Type)
			assert.Equal(t, tc.wantRank, v.Rank)
			assert.Equal(t, tc.wantAliases, v.Aliases)
		})
	}
}

func TestBuildIndexDropsUnusableRecords(t *testing.T) {
	idx := BuildIndex([]map[string]any{
		nil,
		{},
		{"rank": "A*", "source": "nowhere"},
		{"displayName": "—", "aliases": []any{"***"}},
		{"aliases": map[string]any{"not": "a list"}},
		{"displayName": "ICLR"},
	})

	require.Len(t, idx.Venues(), 1)
	assert.Equal(t, "ICLR", idx.Venues()[0].DisplayName)
}

func TestBuildIndexCollisionFirstWriterWins(t *testing.T) {
	idx := BuildIndex([]map[string]any{
		{"displayName": "ACL", "officialName": "Annual Meeting of the Association for Computational Linguistics"},
		{"displayName": "ACL Findings", "aliases": []any{"A.C.L."}},
	})

	venue, alias, ok := idx.Lookup("a c l")
	require.True(t, ok)
	assert.Equal(t, "ACL Findings", venue.DisplayName)
	assert.Equal(t, "A.C.L.", alias)

	idx = BuildIndex([]map[string]any{
		{"displayName": "ACL", "officialName": "Annual Meeting of the Association for Computational Linguistics"},
		{"displayName": "ACL Findings", "aliases": []any{"acl"}},
	})

	venue, alias, ok = idx.Lookup("acl")
	require.True(t, ok)
	assert.Equal(t, "ACL", venue.DisplayName)
	assert.Equal(t, "ACL", alias)

	var owners []string
	for _, c := range idx.Candidates() {
		if c.Alias.Normalized == "acl" {
			owners = append(owners, c.Venue.DisplayName)
		}
	}
	assert.Equal(t, []string{"ACL", "ACL Findings"}, owners)
}

func TestBuildIndexSkipsDuplicateNormalizedAliases(t *testing.T) {
	idx := BuildIndex([]map[string]any{
		{"displayName": "CVPR", "aliases": []any{"CVPR", "cvpr", "C.V.P.R"}},
	})

	var normalized []string
	for _, c := range idx.Candidates() {
		normalized = append(normalized, c.Alias.Normalized)
	}
	assert.Equal(t, []string{"cvpr", "c v p r"}, normalized)
	assert.Equal(t, model.DatasetStats{Venues: 1, Aliases: 2, ExactKeys: 2}, idx.Stats())
}

func TestBuildIndexVocabularyAndAcronyms(t *testing.T) {
	idx := BuildIndex(seedDataset())

	assert.Contains(t, idx.Vocabulary(), "neural")
	assert.IsIncreasing(t, idx.Vocabulary())
	assert.True(t, idx.Acronyms()["nips"])
	assert.True(t, idx.Acronyms()["mm"])
	assert.False(t, idx.Acronyms()["neurips"])
}

func TestDecodeDataset(t *testing.T) {
	records, err := DecodeDataset([]byte(`[{"displayName":"ICML"}, 3, "x", {"name":"VLDB"}]`))
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = DecodeDataset([]byte(`setDataEra2010([{"name":"Very Large Data Bases","abbrv":"VLDB","rank":"A"}]);`))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "VLDB", records[0]["abbrv"])

	for _, bad := range []string{`{"displayName":"ICML"}`, `null`, `not json`, `var x = ];[`} {
		_, err := DecodeDataset([]byte(bad))
		assert.ErrorIs(t, err, ErrInvalidDataset, bad)
	}
}

func TestBuildIndexFromJSON(t *testing.T) {
	idx, err := BuildIndexFromJSON([]byte(`[{"displayName":"ICLR","rank":"A*"}]`))
	require.NoError(t, err)
	assert.Len(t, idx.Venues(), 1)

	_, err = BuildIndexFromJSON([]byte(`{"displayName":"ICLR"}`))
	assert.ErrorIs(t, err, ErrInvalidDataset)
}
