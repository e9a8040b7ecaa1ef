// Package integration exercises the full path from a catalog file through
// the stores, adapters and engine to the MCP tools.
package integration

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fusionsearch/internal/adapter"
	"github.com/Aman-CERP/fusionsearch/internal/catalog"
	"github.com/Aman-CERP/fusionsearch/internal/embed"
	"github.com/Aman-CERP/fusionsearch/internal/mcp"
	"github.com/Aman-CERP/fusionsearch/internal/search"
	"github.com/Aman-CERP/fusionsearch/internal/store"
	"github.com/Aman-CERP/fusionsearch/internal/telemetry"
)

const catalogYAML = `entities:
  - id: c1
    type: component
    title: Data Table
    description: Sortable data table with pagination
    framework: react
    tags: [table, grid]
    popularity: 90
    is_free: true
  - id: c2
    type: component
    title: Date Picker
    description: Pick a date from a calendar
    framework: vue
    popularity: 50
    is_premium: true
  - id: d1
    type: doc
    title: Table styling guide
    description: How to theme tables
    popularity: 10
`

// stack is the wired search path under test.
type stack struct {
	engine  *search.Engine
	indexer *catalog.Indexer
	catalog string
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	lexical, err := store.NewLexicalIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = lexical.Close() })

	vector, err := store.NewVectorIndex(embed.NewCachedEmbedder(embed.NewStaticEmbedder(64), 128), store.DefaultVectorConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = vector.Close() })

	relational, err := store.OpenRelational(ctx, store.RelationalConfig{
		Driver: store.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "catalog.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = relational.Close() })

	engine, err := search.NewEngine([]search.SourceAdapter{
		adapter.NewLexical(lexical),
		adapter.NewVector(vector),
		adapter.NewRelational(relational),
	},
		search.WithPrefixAdapter(adapter.NewPrefix(lexical)),
		search.WithSearchCache(search.NewMemoryStore[search.SearchResponse](64)),
		search.WithSuggestCache(search.NewMemoryStore[search.SuggestResponse](64)),
		search.WithMetrics(telemetry.NewMetrics()),
		search.WithLogger(logger),
	)
	require.NoError(t, err)

	indexer := catalog.NewIndexer(map[string]catalog.Sink{
		"lexical":    lexical,
		"vector":     vector,
		"relational": catalog.UpsertSink(relational),
	}, catalog.WithIndexLogger(logger))

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o644))
	res, err := indexer.LoadAndSync(ctx, path)
	require.NoError(t, err)
	require.Equal(t, 3, res.Indexed)

	return &stack{engine: engine, indexer: indexer, catalog: path}
}

func ids(resp *search.SearchResponse) []string {
	out := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, r.EntityID)
	}
	return out
}

func TestIntegration_KeywordSearch(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an indexed catalog
	s := newStack(t)

	// When: searching by keyword
	resp, err := s.engine.Search(context.Background(), search.RawRequest{Query: "table", Mode: "keyword"})

	// Then: both entities mentioning tables are found with payloads
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "d1"}, ids(resp))
	for _, r := range resp.Results {
		require.NotNil(t, r.Payload, r.EntityID)
		assert.Contains(t, r.Sources, search.SourceLexical)
	}
	assert.False(t, resp.Degraded)
}

func TestIntegration_HybridRespectsFilters(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an indexed catalog
	s := newStack(t)

	// When: searching hybrid restricted to vue
	resp, err := s.engine.Search(context.Background(), search.RawRequest{Query: "date picker", Framework: "vue"})

	// Then: only the vue component comes back, from both sources
	require.NoError(t, err)
	require.Equal(t, []string{"c2"}, ids(resp))
	assert.Equal(t, search.ModeHybrid, resp.SearchMode)
}

func TestIntegration_ScopeDocs(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an indexed catalog
	s := newStack(t)

	// When: searching docs only
	resp, err := s.engine.Search(context.Background(), search.RawRequest{Query: "table", Scope: "docs", Mode: "keyword"})

	// Then: components are excluded
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, ids(resp))
}

func TestIntegration_RepeatIsCached(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an indexed catalog and one search already answered
	s := newStack(t)
	req := search.RawRequest{Query: "table", Mode: "keyword"}
	first, err := s.engine.Search(context.Background(), req)
	require.NoError(t, err)

	// When: the same search runs again
	second, err := s.engine.Search(context.Background(), req)

	// Then: it is served from cache with the same ranking
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, ids(first), ids(second))
}

func TestIntegration_ResyncRemovesEntities(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an indexed catalog
	s := newStack(t)

	// When: d1 is dropped from the catalog and it is synced again
	trimmed := `- id: c1
  type: component
  title: Data Table
  popularity: 90
`
	require.NoError(t, os.WriteFile(s.catalog, []byte(trimmed), 0o644))
	res, err := s.indexer.LoadAndSync(context.Background(), s.catalog)
	require.NoError(t, err)

	// Then: two entities were removed and d1 is no longer found
	assert.Equal(t, 2, res.Removed)
	resp, err := s.engine.Search(context.Background(), search.RawRequest{Query: "styling", Mode: "keyword"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestIntegration_Suggest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an indexed catalog
	s := newStack(t)

	// When: completing "dat"
	resp, err := s.engine.Suggest(context.Background(), search.SuggestRequest{Query: "dat"})

	// Then: both titles starting with the prefix are suggested
	require.NoError(t, err)
	got := make([]string, 0, len(resp.Suggestions))
	for _, sg := range resp.Suggestions {
		got = append(got, sg.EntityID)
	}
	assert.ElementsMatch(t, []string{"c1", "c2"}, got)
}

func TestIntegration_MCPTools(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an MCP server over the stack
	s := newStack(t)
	server, err := mcp.NewServer(s.engine)
	require.NoError(t, err)
	ctx := context.Background()

	// When: calling search and then query_stats
	text, err := server.CallTool(ctx, mcp.ToolSearch, map[string]any{"query": "data table", "mode": "keyword"})
	require.NoError(t, err)
	stats, err := server.CallTool(ctx, mcp.ToolStats, map[string]any{})
	require.NoError(t, err)

	// Then: results are rendered and the query is counted
	assert.Contains(t, text, "Data Table")
	assert.Contains(t, text, "`c1`")
	assert.Contains(t, stats, "**Queries:** 1")
	assert.Contains(t, stats, "table")
}
