package mcp

import (
	"time"

	"github.com/Aman-CERP/fusionsearch/internal/search"
	"github.com/Aman-CERP/fusionsearch/internal/telemetry"
)

// Tool names.
const (
	ToolSearch  = "search"
	ToolSuggest = "suggest"
	ToolStats   = "query_stats"
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query         string   `json:"query" jsonschema:"the search query, 1 to 200 characters"`
	Scope         string   `json:"scope,omitempty" jsonschema:"restrict results: all, components, docs or resources"`
	Mode          string   `json:"mode,omitempty" jsonschema:"keyword, semantic or hybrid (default hybrid)"`
	Framework     string   `json:"framework,omitempty" jsonschema:"only entities for this framework"`
	Category      string   `json:"category,omitempty" jsonschema:"only entities in this category"`
	Tags          []string `json:"tags,omitempty" jsonschema:"entities must carry every listed tag"`
	IsFree        *bool    `json:"is_free,omitempty" jsonschema:"filter on the free flag"`
	IsPremium     *bool    `json:"is_premium,omitempty" jsonschema:"filter on the premium flag"`
	HasTypeScript *bool    `json:"has_typescript,omitempty" jsonschema:"filter on TypeScript support"`
	Limit         int      `json:"limit,omitempty" jsonschema:"results per page, 1 to 100, default 20"`
	Page          int      `json:"page,omitempty" jsonschema:"zero-based page number; only the top 500 results can be paged through"`
}

// rawRequest converts the tool input to an engine request.
func (in SearchInput) rawRequest() search.RawRequest {
	return search.RawRequest{
		Query:         in.Query,
		Scope:         in.Scope,
		Mode:          in.Mode,
		Framework:     in.Framework,
		Category:      in.Category,
		Tags:          in.Tags,
		IsFree:        in.IsFree,
		IsPremium:     in.IsPremium,
		HasTypeScript: in.HasTypeScript,
		Limit:         in.Limit,
		Page:          in.Page,
	}
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results          []SearchResultOutput `json:"results" jsonschema:"fused results, best first"`
	TotalResults     int                  `json:"total_results" jsonschema:"results across all pages, at most 500"`
	SearchMode       string               `json:"search_mode" jsonschema:"the mode that produced the ranking"`
	Degraded         bool                 `json:"degraded" jsonschema:"true if a source did not answer"`
	Cached           bool                 `json:"cached"`
	ProcessingTimeMs int64                `json:"processing_time_ms"`
}

// SearchResultOutput is one ranked entity.
type SearchResultOutput struct {
	EntityID    string   `json:"entity_id"`
	Title       string   `json:"title,omitempty"`
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Framework   string   `json:"framework,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Score       float64  `json:"score" jsonschema:"blended relevance score between 0 and 1"`
	Sources     []string `json:"sources" jsonschema:"sources that found this entity"`
	Highlight   string   `json:"highlight,omitempty" jsonschema:"matched text with <mark> tags"`
	MatchReason string   `json:"match_reason,omitempty"`
}

// ToSearchOutput converts an engine response to the tool output.
func ToSearchOutput(resp *search.SearchResponse) SearchOutput {
	out := SearchOutput{
		Results:          make([]SearchResultOutput, 0, len(resp.Results)),
		TotalResults:     resp.TotalResults,
		SearchMode:       string(resp.SearchMode),
		Degraded:         resp.Degraded,
		Cached:           resp.Cached,
		ProcessingTimeMs: resp.ProcessingTimeMs,
	}
	for _, r := range resp.Results {
		item := SearchResultOutput{
			EntityID:    r.EntityID,
			Score:       r.BlendedScore,
			Sources:     make([]string, len(r.Sources)),
			Highlight:   r.Highlight,
			MatchReason: MatchReason(r),
		}
		for i, s := range r.Sources {
			item.Sources[i] = string(s)
		}
		if p := r.Payload; p != nil {
			item.Title = p.Title
			item.Type = p.Type
			item.Description = p.Description
			item.Framework = p.Framework
			item.Category = p.Category
			item.Tags = p.Tags
		}
		out.Results = append(out.Results, item)
	}
	return out
}

// SuggestInput defines the input schema for the suggest tool.
type SuggestInput struct {
	Query string `json:"query" jsonschema:"the typed prefix"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum suggestions, default 8"`
}

// SuggestOutput defines the output schema for the suggest tool.
type SuggestOutput struct {
	Suggestions []SuggestionOutput `json:"suggestions"`
	Degraded    bool               `json:"degraded"`
	Cached      bool               `json:"cached"`
}

// SuggestionOutput is one typeahead completion.
type SuggestionOutput struct {
	EntityID string  `json:"entity_id"`
	Text     string  `json:"text"`
	Type     string  `json:"type,omitempty"`
	Score    float64 `json:"score"`
}

// ToSuggestOutput converts an engine response to the tool output.
func ToSuggestOutput(resp *search.SuggestResponse) SuggestOutput {
	out := SuggestOutput{
		Suggestions: make([]SuggestionOutput, len(resp.Suggestions)),
		Degraded:    resp.Degraded,
		Cached:      resp.Cached,
	}
	for i, s := range resp.Suggestions {
		out.Suggestions[i] = SuggestionOutput(s)
	}
	return out
}

// StatsInput defines the input schema for the query_stats tool (no parameters).
type StatsInput struct{}

// StatsOutput defines the output schema for the query_stats tool.
type StatsOutput struct {
	TotalQueries      int64            `json:"total_queries"`
	ModeCounts        map[string]int64 `json:"mode_counts"`
	CacheHitRate      float64          `json:"cache_hit_rate" jsonschema:"fraction of queries served from cache"`
	DegradedRate      float64          `json:"degraded_rate" jsonschema:"fraction of queries missing a source"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	ZeroResultQueries []string         `json:"zero_result_queries"`
	TopTerms          []TermOutput     `json:"top_terms"`
	Latency           map[string]int64 `json:"latency" jsonschema:"query counts per latency bucket"`
	Since             string           `json:"since" jsonschema:"RFC3339 start of the stats window"`
}

// TermOutput is a query term and its frequency.
type TermOutput struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// ToStatsOutput converts a stats snapshot to the tool output.
func ToStatsOutput(snap *telemetry.QueryStatsSnapshot) StatsOutput {
	out := StatsOutput{
		ModeCounts:        map[string]int64{},
		ZeroResultQueries: []string{},
		TopTerms:          []TermOutput{},
		Latency:           map[string]int64{},
	}
	if snap == nil {
		return out
	}
	out.TotalQueries = snap.TotalQueries
	out.CacheHitRate = snap.CacheHitRate()
	out.DegradedRate = snap.DegradedRate()
	out.ZeroResultCount = snap.ZeroResultCount
	out.Since = snap.Since.Format(time.RFC3339)
	for m, n := range snap.ModeCounts {
		out.ModeCounts[m] = n
	}
	out.ZeroResultQueries = append(out.ZeroResultQueries, snap.ZeroResultQueries...)
	for _, tc := range snap.TopTerms {
		out.TopTerms = append(out.TopTerms, TermOutput(tc))
	}
	for b, n := range snap.LatencyDistribution {
		out.Latency[string(b)] = n
	}
	return out
}
