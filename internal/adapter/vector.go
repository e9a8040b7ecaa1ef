package adapter

import (
	"context"
	"time"

	"github.com/Aman-CERP/fusionsearch/internal/search"
	"github.com/Aman-CERP/fusionsearch/internal/store"
)

// filteredOverfetch multiplies the neighbour count when filters will
// discard some of them.
const filteredOverfetch = 4

// NearestSearcher is a backend that ranks by similarity and cannot filter.
type NearestSearcher interface {
	Search(ctx context.Context, text string, k int) ([]store.Hit, error)
}

// Vector serves semantic matches from a nearest-neighbour index, applying
// the request's filters to the neighbours it gets back.
type Vector struct {
	index NearestSearcher
}

// NewVector creates a vector source over index.
func NewVector(index NearestSearcher) *Vector {
	return &Vector{index: index}
}

// Kind implements search.SourceAdapter.
func (v *Vector) Kind() search.SourceKind { return search.SourceVector }

// Search implements search.SourceAdapter.
func (v *Vector) Search(ctx context.Context, req search.SearchRequest, deadline time.Duration) ([]search.SourceHit, error) {
	ctx, cancel := withDeadline(ctx, deadline)
	defer cancel()

	want := candidates(req)
	k := want
	filtered := search.HasFilters(req)
	if filtered {
		k = min(want*filteredOverfetch, MaxCandidates*filteredOverfetch)
	}

	hits, err := v.index.Search(ctx, req.Query, k)
	if err != nil {
		return nil, classify(ctx, string(search.SourceVector), err)
	}
	// the index cannot observe cancellation mid-walk
	if err := ctx.Err(); err != nil {
		return nil, classify(ctx, string(search.SourceVector), err)
	}

	out := toSourceHits(search.SourceVector, hits)
	if filtered {
		kept := out[:0]
		for _, h := range out {
			if search.MatchFilters(req, h.Payload) {
				kept = append(kept, h)
			}
		}
		out = kept
	}
	if len(out) > want {
		out = out[:want]
	}
	return out, nil
}
