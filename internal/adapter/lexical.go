package adapter

import (
	"context"
	"time"

	"github.com/Aman-CERP/fusionsearch/internal/search"
)

// Lexical serves full-text matches from a filtering text index.
type Lexical struct {
	index FilteredSearcher
}

// NewLexical creates a lexical source over index.
func NewLexical(index FilteredSearcher) *Lexical {
	return &Lexical{index: index}
}

// Kind implements search.SourceAdapter.
func (l *Lexical) Kind() search.SourceKind { return search.SourceLexical }

// Search implements search.SourceAdapter.
func (l *Lexical) Search(ctx context.Context, req search.SearchRequest, deadline time.Duration) ([]search.SourceHit, error) {
	ctx, cancel := withDeadline(ctx, deadline)
	defer cancel()

	hits, err := l.index.Search(ctx, req.Query, filterOf(req), candidates(req))
	if err != nil {
		return nil, classify(ctx, string(search.SourceLexical), err)
	}
	return toSourceHits(search.SourceLexical, hits), nil
}
