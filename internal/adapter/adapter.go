// Package adapter connects the reference stores to the search engine. Each
// adapter maps one backend's documents into search hits, honours the
// per-call deadline and reports overruns as timeouts.
package adapter

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/Aman-CERP/fusionsearch/internal/errors"
	"github.com/Aman-CERP/fusionsearch/internal/search"
	"github.com/Aman-CERP/fusionsearch/internal/store"
)

// MaxCandidates caps how many hits one adapter returns for a request.
const MaxCandidates = search.MaxResultWindow

// FilteredSearcher is a backend that filters natively.
type FilteredSearcher interface {
	Search(ctx context.Context, text string, filter store.Filter, limit int) ([]store.Hit, error)
}

// candidates returns how many hits a source must supply for req's page to
// be complete after fusion.
func candidates(req search.SearchRequest) int {
	limit := req.Limit
	if limit < 1 {
		limit = search.DefaultLimit
	}
	if req.Page >= MaxCandidates/limit {
		return MaxCandidates
	}
	return min((req.Page+1)*limit, MaxCandidates)
}

// filterOf translates a request's scope and filters for the stores.
func filterOf(req search.SearchRequest) store.Filter {
	f := req.Filters
	return store.Filter{
		Type:          req.Scope.EntityType(),
		Framework:     f.Framework,
		Category:      f.Category,
		Tags:          f.Tags,
		IsFree:        f.IsFree,
		IsPremium:     f.IsPremium,
		HasTypeScript: f.HasTypeScript,
	}
}

// payloadOf builds the display snapshot of d.
func payloadOf(d *store.Document) *search.Payload {
	return &search.Payload{
		Title:         d.Title,
		Type:          d.Type,
		Description:   d.Description,
		Framework:     d.Framework,
		Category:      d.Category,
		Tags:          d.Tags,
		Popularity:    d.Popularity,
		IsFree:        d.IsFree,
		IsPremium:     d.IsPremium,
		HasTypeScript: d.HasTypeScript,
	}
}

// toSourceHits converts store hits, keeping their order.
func toSourceHits(kind search.SourceKind, hits []store.Hit) []search.SourceHit {
	out := make([]search.SourceHit, 0, len(hits))
	for i := range hits {
		out = append(out, search.SourceHit{
			EntityID:  hits[i].Doc.ID,
			RawScore:  hits[i].Score,
			Source:    kind,
			Highlight: hits[i].Highlight,
			Payload:   payloadOf(&hits[i].Doc),
		})
	}
	return out
}

// withDeadline bounds ctx by deadline. A non-positive deadline leaves ctx
// unbounded.
func withDeadline(ctx context.Context, deadline time.Duration) (context.Context, context.CancelFunc) {
	if deadline <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, deadline)
}

// classify turns a backend error into a timeout when the call overran.
func classify(ctx context.Context, source string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.AdapterTimeout(source, err)
	}
	return err
}
