package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleDocs is a small catalog shared by the store tests.
func sampleDocs() []Document {
	return []Document{
		{
			ID: "c1", Type: "component", Title: "Data Table",
			Description: "Sortable table with pagination",
			Framework:   "React", Category: "Data Display",
			Tags: []string{"table", "grid"}, Popularity: 90, IsFree: true,
		},
		{
			ID: "c2", Type: "component", Title: "Date Picker",
			Description: "Pick dates from a calendar",
			Framework:   "Vue", Category: "Forms",
			Tags: []string{"form", "calendar"}, Popularity: 50, IsPremium: true,
		},
		{
			ID: "d1", Type: "doc", Title: "Getting started with tables",
			Description: "How to render a data table",
			Popularity:  10,
		},
	}
}

func hitIDs(hits []Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.Doc.ID
	}
	return ids
}

func newTestLexical(t *testing.T) *LexicalIndex {
	t.Helper()
	idx, err := NewLexicalIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	require.NoError(t, idx.Index(context.Background(), sampleDocs()))
	return idx
}

func TestLexicalIndex_Search_RanksTitleMatchFirst(t *testing.T) {
	// Given: the sample catalog
	idx := newTestLexical(t)

	// When: searching a word in one title and another description
	hits, err := idx.Search(context.Background(), "table", Filter{}, 10)

	// Then: both match, the title match first
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "d1"}, hitIDs(hits))
	assert.Greater(t, hits[0].Score, 0.0)

	// And: the full document is attached
	assert.Equal(t, "React", hits[0].Doc.Framework)
}

func TestLexicalIndex_Search_MatchesIdentifierParts(t *testing.T) {
	idx := newTestLexical(t)

	hits, err := idx.Search(context.Background(), "DataTable", Filter{}, 10)

	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "c1", hits[0].Doc.ID)
}

func TestLexicalIndex_Search_HighlightsTitle(t *testing.T) {
	idx := newTestLexical(t)

	hits, err := idx.Search(context.Background(), "date picker", Filter{}, 10)

	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "c2", hits[0].Doc.ID)
	assert.Contains(t, hits[0].Highlight, "<mark>")
}

func TestLexicalIndex_Search_AppliesFilter(t *testing.T) {
	yes := true
	tests := []struct {
		name   string
		filter Filter
		expect []string
	}{
		{"type", Filter{Type: "doc"}, []string{"d1"}},
		{"framework case-insensitive", Filter{Framework: "react"}, []string{"c1"}},
		{"tag", Filter{Tags: []string{"grid"}}, []string{"c1"}},
		{"free", Filter{IsFree: &yes}, []string{"c1"}},
		{"no match", Filter{Framework: "svelte"}, []string{}},
	}

	idx := newTestLexical(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := idx.Search(context.Background(), "table", tt.filter, 10)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, hitIDs(hits))
		})
	}
}

func TestLexicalIndex_Search_EdgeCases(t *testing.T) {
	idx := newTestLexical(t)
	ctx := context.Background()

	hits, err := idx.Search(ctx, "   ", Filter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search(ctx, "table", Filter{}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	// stop words alone match nothing
	hits, err = idx.Search(ctx, "the and", Filter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search(ctx, "table", Filter{}, 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestLexicalIndex_Prefix(t *testing.T) {
	idx := newTestLexical(t)
	ctx := context.Background()

	// Given: a partial last word shared by two titles
	hits, err := idx.Prefix(ctx, "dat", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2"}, hitIDs(hits))

	// When: an earlier complete word narrows the match
	hits, err = idx.Prefix(ctx, "data ta", 10)

	// Then: only the title containing both matches
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, hitIDs(hits))

	hits, err = idx.Prefix(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLexicalIndex_IndexReplacesAndDeletes(t *testing.T) {
	idx := newTestLexical(t)
	ctx := context.Background()

	// Given: c1 re-indexed under a new title
	replaced := sampleDocs()[0]
	replaced.Title = "Spreadsheet Grid"
	replaced.Description = "Editable cells"
	require.NoError(t, idx.Index(ctx, []Document{replaced}))

	// Then: the old title no longer matches and the count is unchanged
	hits, err := idx.Search(ctx, "sortable", Filter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, 3, idx.Count())

	// When: deleting it
	require.NoError(t, idx.Delete(ctx, []string{"c1"}))

	// Then: it is gone
	hits, err = idx.Search(ctx, "spreadsheet", Filter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, 2, idx.Count())
	assert.ElementsMatch(t, []string{"c2", "d1"}, idx.IDs())
}

func TestLexicalIndex_Closed(t *testing.T) {
	idx, err := NewLexicalIndex()
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())

	_, err = idx.Search(context.Background(), "table", Filter{}, 10)
	assert.ErrorIs(t, err, ErrClosed)

	err = idx.Index(context.Background(), sampleDocs())
	assert.ErrorIs(t, err, ErrClosed)
}
