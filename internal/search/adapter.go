package search

import (
	"context"
	"slices"
	"time"
)

// SourceAdapter is the contract every backend implements.
//
// Search must return within deadline. When it cannot, it returns an
// ErrAdapterTimeout error instead of answering late. Adapters own their
// connection pooling and retries; the engine treats them as stateless.
type SourceAdapter interface {
	// Kind identifies the backend.
	Kind() SourceKind

	// Search returns the backend's hits for req, best first.
	Search(ctx context.Context, req SearchRequest, deadline time.Duration) ([]SourceHit, error)
}

// FilterFunc reports whether a payload satisfies a constraint.
type FilterFunc func(p *Payload) bool

// MatchFilters reports whether p satisfies the scope and every filter in req.
// Adapters whose backend cannot filter natively apply it to their hits.
func MatchFilters(req SearchRequest, p *Payload) bool {
	for _, f := range buildFilters(req) {
		if !f(p) {
			return false
		}
	}
	return true
}

// HasFilters reports whether req constrains anything beyond the query.
func HasFilters(req SearchRequest) bool {
	return len(buildFilters(req)) > 0
}

// buildFilters creates one filter per constraint. Filters use AND logic.
func buildFilters(req SearchRequest) []FilterFunc {
	var filters []FilterFunc

	if t := req.Scope.EntityType(); t != "" {
		filters = append(filters, func(p *Payload) bool { return p.Type == t })
	}
	f := req.Filters
	if f.Framework != "" {
		filters = append(filters, func(p *Payload) bool { return foldField(p.Framework) == f.Framework })
	}
	if f.Category != "" {
		filters = append(filters, func(p *Payload) bool { return foldField(p.Category) == f.Category })
	}
	if len(f.Tags) > 0 {
		filters = append(filters, tagsFilter(f.Tags))
	}
	if f.IsFree != nil {
		want := *f.IsFree
		filters = append(filters, func(p *Payload) bool { return p.IsFree == want })
	}
	if f.IsPremium != nil {
		want := *f.IsPremium
		filters = append(filters, func(p *Payload) bool { return p.IsPremium == want })
	}
	if f.HasTypeScript != nil {
		want := *f.HasTypeScript
		filters = append(filters, func(p *Payload) bool { return p.HasTypeScript == want })
	}

	// a hit without payload cannot be checked and is rejected by any filter
	for i, fn := range filters {
		filters[i] = func(p *Payload) bool { return p != nil && fn(p) }
	}
	return filters
}

// tagsFilter requires every wanted tag to be present.
func tagsFilter(want []string) FilterFunc {
	return func(p *Payload) bool {
		have := make([]string, len(p.Tags))
		for i, t := range p.Tags {
			have[i] = foldField(t)
		}
		for _, w := range want {
			if !slices.Contains(have, w) {
				return false
			}
		}
		return true
	}
}
