package adapter

import (
	"context"
	"time"

	"github.com/Aman-CERP/fusionsearch/internal/search"
	"github.com/Aman-CERP/fusionsearch/internal/store"
)

// PrefixSearcher is a backend that completes partial words.
type PrefixSearcher interface {
	Prefix(ctx context.Context, text string, limit int) ([]store.Hit, error)
}

// Prefix answers typeahead requests from title prefixes.
type Prefix struct {
	index PrefixSearcher
}

// NewPrefix creates a suggestion source over index.
func NewPrefix(index PrefixSearcher) *Prefix {
	return &Prefix{index: index}
}

// Prefix implements search.PrefixAdapter. It returns up to twice the
// requested limit so the engine can deduplicate and still fill the page.
func (p *Prefix) Prefix(ctx context.Context, req search.SuggestRequest, deadline time.Duration) ([]search.Suggestion, error) {
	ctx, cancel := withDeadline(ctx, deadline)
	defer cancel()

	limit := req.Limit
	if limit < 1 {
		limit = search.DefaultSuggestLimit
	}

	hits, err := p.index.Prefix(ctx, req.Query, limit*2)
	if err != nil {
		return nil, classify(ctx, "prefix", err)
	}

	out := make([]search.Suggestion, 0, len(hits))
	for _, h := range hits {
		out = append(out, search.Suggestion{
			EntityID: h.Doc.ID,
			Text:     h.Doc.Title,
			Type:     h.Doc.Type,
			Score:    h.Score,
		})
	}
	return out, nil
}
