package mcp

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aman-CERP/fusionsearch/internal/errors"
	"github.com/Aman-CERP/fusionsearch/internal/search"
	"github.com/Aman-CERP/fusionsearch/internal/telemetry"
)

// mockEngine implements Engine for testing.
type mockEngine struct {
	SearchFn  func(ctx context.Context, raw search.RawRequest) (*search.SearchResponse, error)
	SuggestFn func(ctx context.Context, raw search.SuggestRequest) (*search.SuggestResponse, error)
	StatsFn   func() *telemetry.QueryStatsSnapshot

	lastSearch search.RawRequest
}

func (m *mockEngine) Search(ctx context.Context, raw search.RawRequest) (*search.SearchResponse, error) {
	m.lastSearch = raw
	if m.SearchFn != nil {
		return m.SearchFn(ctx, raw)
	}
	return &search.SearchResponse{Results: []search.FusedResult{}, SearchMode: search.ModeHybrid}, nil
}

func (m *mockEngine) Suggest(ctx context.Context, raw search.SuggestRequest) (*search.SuggestResponse, error) {
	if m.SuggestFn != nil {
		return m.SuggestFn(ctx, raw)
	}
	return &search.SuggestResponse{Suggestions: []search.Suggestion{}}, nil
}

func (m *mockEngine) Stats() *telemetry.QueryStatsSnapshot {
	if m.StatsFn != nil {
		return m.StatsFn()
	}
	return &telemetry.QueryStatsSnapshot{}
}

func newTestServer(t *testing.T, engine Engine) *Server {
	t.Helper()
	s, err := NewServer(engine, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return s
}

func TestNewServer_RequiresEngine(t *testing.T) {
	// Given: no engine
	// When: creating a server
	s, err := NewServer(nil)

	// Then: creation fails
	require.Error(t, err)
	assert.Nil(t, s)
}

func TestServer_ListTools(t *testing.T) {
	// Given: a server
	s := newTestServer(t, &mockEngine{})

	// When: listing tools
	names := make([]string, 0, 3)
	for _, tool := range s.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}

	// Then: search, suggest and stats are registered
	assert.Equal(t, []string{ToolSearch, ToolSuggest, ToolStats}, names)
	assert.NotNil(t, s.MCPServer())
}

func TestServer_CallTool_Search(t *testing.T) {
	// Given: an engine returning one result
	engine := &mockEngine{
		SearchFn: func(_ context.Context, _ search.RawRequest) (*search.SearchResponse, error) {
			return sampleResponse(), nil
		},
	}
	s := newTestServer(t, engine)

	// When: calling search with filters
	text, err := s.CallTool(context.Background(), ToolSearch, map[string]any{
		"query":     "data table",
		"scope":     "components",
		"mode":      "keyword",
		"framework": "React",
		"tags":      []any{"table"},
		"is_free":   true,
		"limit":     float64(5),
		"page":      float64(1),
	})

	// Then: arguments reach the engine unchanged
	require.NoError(t, err)
	got := engine.lastSearch
	assert.Equal(t, "data table", got.Query)
	assert.Equal(t, "components", got.Scope)
	assert.Equal(t, "keyword", got.Mode)
	assert.Equal(t, "React", got.Framework)
	assert.Equal(t, []string{"table"}, got.Tags)
	require.NotNil(t, got.IsFree)
	assert.True(t, *got.IsFree)
	assert.Nil(t, got.IsPremium)
	assert.Equal(t, 5, got.Limit)
	assert.Equal(t, 1, got.Page)

	// Then: the markdown rendering is returned
	assert.Contains(t, text, `## Search Results for "data table"`)
	assert.Contains(t, text, "Data Table")
}

func TestServer_CallTool_SearchValidation(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing query", map[string]any{}},
		{"whitespace query", map[string]any{"query": "   "}},
		{"wrong type", map[string]any{"query": "x", "limit": "ten"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a server with an engine that must not be called
			engine := &mockEngine{
				SearchFn: func(context.Context, search.RawRequest) (*search.SearchResponse, error) {
					t.Fatal("engine called for invalid input")
					return nil, nil
				},
			}
			s := newTestServer(t, engine)

			// When: calling search
			_, err := s.CallTool(context.Background(), ToolSearch, tt.args)

			// Then: an invalid params error is returned
			mcpErr := MapError(err)
			require.NotNil(t, mcpErr)
			assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
		})
	}
}

func TestServer_CallTool_SearchEngineErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"bad mode", apperrors.InvalidParameter("mode", "mode must be keyword, semantic or hybrid"), ErrCodeInvalidParams},
		{"all sources down", apperrors.AllSourcesUnavailable(nil), ErrCodeUnavailable},
		{"internal", apperrors.InternalError("fusion failed", nil), ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: an engine that fails
			engine := &mockEngine{
				SearchFn: func(context.Context, search.RawRequest) (*search.SearchResponse, error) {
					return nil, tt.err
				},
			}
			s := newTestServer(t, engine)

			// When: calling search
			_, err := s.CallTool(context.Background(), ToolSearch, map[string]any{"query": "table"})

			// Then: the error is mapped to an MCP error
			var mcpErr *MCPError
			require.ErrorAs(t, err, &mcpErr)
			assert.Equal(t, tt.wantCode, mcpErr.Code)
		})
	}
}

func TestServer_CallTool_Suggest(t *testing.T) {
	// Given: an engine with suggestions
	var got search.SuggestRequest
	engine := &mockEngine{
		SuggestFn: func(_ context.Context, raw search.SuggestRequest) (*search.SuggestResponse, error) {
			got = raw
			return &search.SuggestResponse{Suggestions: []search.Suggestion{
				{EntityID: "c1", Text: "Data Table", Type: search.TypeComponent, Score: 1},
			}}, nil
		},
	}
	s := newTestServer(t, engine)

	// When: calling suggest
	text, err := s.CallTool(context.Background(), ToolSuggest, map[string]any{"query": "dat", "limit": float64(3)})

	// Then: the request is forwarded and rendered
	require.NoError(t, err)
	assert.Equal(t, search.SuggestRequest{Query: "dat", Limit: 3}, got)
	assert.Contains(t, text, "- Data Table (component, `c1`)")
}

func TestServer_CallTool_Stats(t *testing.T) {
	// Given: an engine with recorded stats
	engine := &mockEngine{
		StatsFn: func() *telemetry.QueryStatsSnapshot {
			return &telemetry.QueryStatsSnapshot{TotalQueries: 2, CacheHits: 1}
		},
	}
	s := newTestServer(t, engine)

	// When: calling the stats tool
	text, err := s.CallTool(context.Background(), ToolStats, nil)

	// Then: the stats are rendered
	require.NoError(t, err)
	assert.Contains(t, text, "**Cache hit rate:** 50.0%")
}

func TestServer_CallTool_UnknownTool(t *testing.T) {
	// Given: a server
	s := newTestServer(t, &mockEngine{})

	// When: calling an unknown tool
	_, err := s.CallTool(context.Background(), "reindex", nil)

	// Then: method not found is returned
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
}

func TestServer_SearchHandler_StructuredOutput(t *testing.T) {
	// Given: an engine returning a degraded response
	engine := &mockEngine{
		SearchFn: func(context.Context, search.RawRequest) (*search.SearchResponse, error) {
			resp := sampleResponse()
			resp.Degraded = true
			return resp, nil
		},
	}
	s := newTestServer(t, engine)

	// When: invoking the SDK handler
	result, out, err := s.mcpSearchHandler(context.Background(), nil, SearchInput{Query: "table"})

	// Then: both text and structured output are returned
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	assert.True(t, out.Degraded)
	assert.Equal(t, "hybrid", out.SearchMode)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "c1", out.Results[0].EntityID)
	assert.Equal(t, "Data Table", out.Results[0].Title)
	assert.Equal(t, []string{"lexical", "vector"}, out.Results[0].Sources)
	assert.Equal(t, "found by relational search", out.Results[1].MatchReason)
}

func TestServer_StatsHandler(t *testing.T) {
	// Given: an engine with an empty snapshot
	s := newTestServer(t, &mockEngine{
		StatsFn: func() *telemetry.QueryStatsSnapshot { return nil },
	})

	// When: invoking the stats handler
	_, out, err := s.mcpStatsHandler(context.Background(), nil, StatsInput{})

	// Then: empty collections are returned instead of nil
	require.NoError(t, err)
	assert.Zero(t, out.TotalQueries)
	assert.NotNil(t, out.ModeCounts)
	assert.NotNil(t, out.TopTerms)
}

func TestServer_Serve_UnknownTransport(t *testing.T) {
	// Given: a server
	s := newTestServer(t, &mockEngine{})

	// When: serving an unsupported transport
	err := s.Serve(context.Background(), "sse", "")

	// Then: an error names the supported transports
	assert.ErrorContains(t, err, "supported: stdio, http")
}

func TestServer_Serve_HTTPStopsOnCancel(t *testing.T) {
	// Given: a server on an ephemeral port
	s := newTestServer(t, &mockEngine{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, TransportHTTP, "127.0.0.1:0") }()

	// When: the context is canceled
	cancel()

	// Then: Serve returns without error
	assert.NoError(t, <-done)
}
