package adapter

import (
	"context"
	"time"

	"github.com/Aman-CERP/fusionsearch/internal/search"
)

// Relational serves substring matches from the SQL catalog. The engine
// consults it only when the lexical and vector sources find nothing.
type Relational struct {
	db FilteredSearcher
}

// NewRelational creates a relational source over db.
func NewRelational(db FilteredSearcher) *Relational {
	return &Relational{db: db}
}

// Kind implements search.SourceAdapter.
func (r *Relational) Kind() search.SourceKind { return search.SourceRelational }

// Search implements search.SourceAdapter.
func (r *Relational) Search(ctx context.Context, req search.SearchRequest, deadline time.Duration) ([]search.SourceHit, error) {
	ctx, cancel := withDeadline(ctx, deadline)
	defer cancel()

	hits, err := r.db.Search(ctx, req.Query, filterOf(req), candidates(req))
	if err != nil {
		return nil, classify(ctx, string(search.SourceRelational), err)
	}
	return toSourceHits(search.SourceRelational, hits), nil
}
