// Package search fans a catalog query out to lexical, vector and relational
// sources, fuses their scores into one deterministic ranking and caches the
// answer keyed on the normalized request.
package search

import (
	"context"
	"time"
)

// Searcher answers full searches and typeahead suggestions.
type Searcher interface {
	// Search normalizes raw, serves it from cache or fans it out, and returns the fused page.
	Search(ctx context.Context, raw RawRequest) (*SearchResponse, error)

	// Suggest answers a prefix query from the lexical source.
	Suggest(ctx context.Context, raw SuggestRequest) (*SuggestResponse, error)
}

// Mode selects which sources a request consults.
type Mode string

const (
	ModeKeyword  Mode = "keyword"
	ModeSemantic Mode = "semantic"
	ModeHybrid   Mode = "hybrid"
)

// Scope restricts results to one entity type.
type Scope string

const (
	ScopeAll        Scope = "all"
	ScopeComponents Scope = "components"
	ScopeDocs       Scope = "docs"
	ScopeResources  Scope = "resources"
)

// Entity types stored in Payload.Type.
const (
	TypeComponent = "component"
	TypeDoc       = "doc"
	TypeResource  = "resource"
)

// EntityType returns the payload type a scope selects, or "" for ScopeAll.
func (s Scope) EntityType() string {
	switch s {
	case ScopeComponents:
		return TypeComponent
	case ScopeDocs:
		return TypeDoc
	case ScopeResources:
		return TypeResource
	default:
		return ""
	}
}

// SourceKind identifies a backend.
type SourceKind string

const (
	SourceLexical    SourceKind = "lexical"
	SourceVector     SourceKind = "vector"
	SourceRelational SourceKind = "relational"
)

// sourceRank orders sources wherever a stable order is needed.
func sourceRank(k SourceKind) int {
	switch k {
	case SourceLexical:
		return 0
	case SourceVector:
		return 1
	case SourceRelational:
		return 2
	default:
		return 3
	}
}

// Filters are the structured constraints of a request.
// Nil flags mean "don't care".
type Filters struct {
	Framework     string   `json:"framework,omitempty"`
	Category      string   `json:"category,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	IsFree        *bool    `json:"is_free,omitempty"`
	IsPremium     *bool    `json:"is_premium,omitempty"`
	HasTypeScript *bool    `json:"has_typescript,omitempty"`
}

// RawRequest is a search request as received from a caller, before validation.
type RawRequest struct {
	Query         string
	Scope         string
	Mode          string
	Framework     string
	Category      string
	Tags          []string
	IsFree        *bool
	IsPremium     *bool
	HasTypeScript *bool
	Limit         int
	Page          int
}

// SearchRequest is a validated, canonical request. Build one with Normalizer.
type SearchRequest struct {
	Query   string  `json:"query"`
	Scope   Scope   `json:"scope"`
	Mode    Mode    `json:"mode"`
	Filters Filters `json:"filters"`
	Limit   int     `json:"limit"`
	Page    int     `json:"page"`
}

// Payload is the display snapshot of an entity.
type Payload struct {
	Title         string   `json:"title"`
	Type          string   `json:"type"`
	Description   string   `json:"description,omitempty"`
	Framework     string   `json:"framework,omitempty"`
	Category      string   `json:"category,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Popularity    float64  `json:"popularity,omitempty"`
	IsFree        bool     `json:"is_free"`
	IsPremium     bool     `json:"is_premium"`
	HasTypeScript bool     `json:"has_typescript"`
}

// completeness counts populated display fields.
func (p *Payload) completeness() int {
	if p == nil {
		return -1
	}
	n := 0
	for _, s := range []string{p.Title, p.Type, p.Description, p.Framework, p.Category} {
		if s != "" {
			n++
		}
	}
	if len(p.Tags) > 0 {
		n++
	}
	if p.Popularity != 0 {
		n++
	}
	return n
}

// SourceHit is one source's opinion about one entity.
// RawScore is only comparable with hits from the same source.
type SourceHit struct {
	EntityID  string
	RawScore  float64
	Source    SourceKind
	Highlight string
	Payload   *Payload
}

// FusedResult is one entity in the final ranking.
type FusedResult struct {
	EntityID string `json:"entity_id"`

	// NormalizedScore is the best per-source normalized score (0..1).
	NormalizedScore float64 `json:"normalized_score"`

	// NormalizedScores holds the 0..1 score from each contributing source.
	NormalizedScores map[SourceKind]float64 `json:"normalized_scores"`

	// BlendedScore is the weighted mean of NormalizedScores and the ranking key.
	BlendedScore float64 `json:"blended_score"`

	// Sources lists contributing sources in lexical, vector, relational order.
	Sources []SourceKind `json:"sources"`

	Highlight string   `json:"highlight,omitempty"`
	Payload   *Payload `json:"payload,omitempty"`
}

// SourceReport describes one adapter call. Error text is never included.
type SourceReport struct {
	Source    SourceKind `json:"source"`
	Hits      int        `json:"hits"`
	LatencyMs int64      `json:"latency_ms"`
	TimedOut  bool       `json:"timed_out,omitempty"`
	Failed    bool       `json:"failed,omitempty"`
}

// SearchResponse is the answer to one search. It is never mutated once built.
type SearchResponse struct {
	Results          []FusedResult  `json:"results"`
	// TotalResults counts fused results across pages. Each source supplies
	// at most MaxResultWindow candidates, which bounds it and the reachable pages.
	TotalResults     int            `json:"total_results"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
	Degraded         bool           `json:"degraded"`
	SearchMode       Mode           `json:"search_mode"`
	Cached           bool           `json:"cached"`
	Sources          []SourceReport `json:"sources,omitempty"`
}

// SuggestRequest is a typeahead request.
type SuggestRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// Suggestion is one typeahead completion.
type Suggestion struct {
	EntityID string  `json:"entity_id"`
	Text     string  `json:"text"`
	Type     string  `json:"type,omitempty"`
	Score    float64 `json:"score"`
}

// SuggestResponse is the answer to one typeahead request.
type SuggestResponse struct {
	Suggestions      []Suggestion `json:"suggestions"`
	ProcessingTimeMs int64        `json:"processing_time_ms"`
	Degraded         bool         `json:"degraded"`
	Cached           bool         `json:"cached"`
}

// Weights configures how much each source contributes in hybrid mode.
// Keyword and semantic modes always weight their single source at 1.0.
type Weights struct {
	Lexical    float64
	Vector     float64
	Relational float64
}

// DefaultWeights returns equal lexical/vector weights and a low relational weight.
func DefaultWeights() Weights {
	return Weights{
		Lexical:    0.5,
		Vector:     0.5,
		Relational: 0.3,
	}
}

// TTLPolicy maps requests to cache lifetimes.
type TTLPolicy struct {
	General time.Duration
	Docs    time.Duration
	Suggest time.Duration
}

// DefaultTTLPolicy returns 5m general, 10m docs and 5m suggestions.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		General: 5 * time.Minute,
		Docs:    10 * time.Minute,
		Suggest: 5 * time.Minute,
	}
}

// ForRequest returns the TTL for a full search request.
func (p TTLPolicy) ForRequest(req SearchRequest) time.Duration {
	if req.Scope == ScopeDocs {
		return p.Docs
	}
	return p.General
}

// EngineConfig configures the search engine.
type EngineConfig struct {
	// Deadline is the shared fan-out budget (default: 800ms).
	Deadline time.Duration

	// SuggestDeadline is the budget for the prefix adapter (default: 200ms).
	SuggestDeadline time.Duration

	// Weights are the hybrid-mode fusion weights.
	Weights Weights

	// DefaultLimit applies when a request leaves limit unset (default: 20).
	DefaultLimit int

	// SuggestLimit applies when a suggestion request leaves limit unset (default: 8).
	SuggestLimit int

	// TTL is the cache lifetime policy.
	TTL TTLPolicy
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		Deadline:        800 * time.Millisecond,
		SuggestDeadline: 200 * time.Millisecond,
		Weights:         DefaultWeights(),
		DefaultLimit:    DefaultLimit,
		SuggestLimit:    DefaultSuggestLimit,
		TTL:             DefaultTTLPolicy(),
	}
}
