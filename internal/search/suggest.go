package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/Aman-CERP/fusionsearch/internal/errors"
	"github.com/Aman-CERP/fusionsearch/internal/telemetry"
)

// prefixSource labels the suggestion adapter in logs and metrics.
const prefixSource = "prefix"

// PrefixAdapter answers typeahead queries from the lexical index.
// Like SourceAdapter it must return within deadline.
type PrefixAdapter interface {
	Prefix(ctx context.Context, req SuggestRequest, deadline time.Duration) ([]Suggestion, error)
}

// Suggest answers a typeahead request.
//
// Queries shorter than MinSuggestLength get an empty answer without any
// backend call. Adapter failure yields an empty, degraded answer rather
// than an error; only an overlong query is rejected.
func (e *Engine) Suggest(ctx context.Context, raw SuggestRequest) (*SuggestResponse, error) {
	start := time.Now()

	req, ok, err := e.normalizer.NormalizeSuggestion(raw)
	if err != nil {
		e.finish(EndpointSuggest, prefixSource, start, nil, err)
		return nil, err
	}
	if !ok {
		return &SuggestResponse{
			Suggestions:      []Suggestion{},
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		}, nil
	}

	key, err := RequestKey(EndpointSuggest, req)
	if err != nil {
		err = apperrors.InternalError("failed to build cache key", err)
		e.finish(EndpointSuggest, prefixSource, start, nil, err)
		return nil, err
	}

	resp, hit, err := e.suggestCache.GetOrCompute(ctx, key, e.config.TTL.Suggest,
		func(ctx context.Context) (SuggestResponse, error) {
			return e.suggest(ctx, req), nil
		})
	if err != nil {
		e.finish(EndpointSuggest, prefixSource, start, nil, err)
		return nil, err
	}

	resp.Cached = hit
	resp.ProcessingTimeMs = time.Since(start).Milliseconds()

	e.finish(EndpointSuggest, prefixSource, start, &telemetry.QueryEvent{
		Query:       req.Query,
		Mode:        prefixSource,
		ResultCount: len(resp.Suggestions),
		Degraded:    resp.Degraded,
		Cached:      hit,
	}, nil)
	return &resp, nil
}

// suggest makes the single prefix call and shapes its answer.
func (e *Engine) suggest(ctx context.Context, req SuggestRequest) SuggestResponse {
	degraded := SuggestResponse{Suggestions: []Suggestion{}, Degraded: true}

	if e.prefix == nil {
		e.logger.Warn("suggest_failed",
			slog.String("query", req.Query),
			slog.String("error", "no prefix adapter configured"))
		return degraded
	}

	start := time.Now()
	raw, err := e.callPrefix(ctx, req)
	elapsed := time.Since(start)

	outcome := telemetry.OutcomeOK
	switch {
	case errors.Is(err, apperrors.ErrAdapterTimeout):
		outcome = telemetry.OutcomeTimeout
	case err != nil:
		outcome = telemetry.OutcomeError
	}
	e.metrics.ObserveAdapter(prefixSource, outcome, elapsed)

	if err != nil {
		e.logger.Warn("suggest_failed",
			slog.String("query", req.Query),
			slog.String("outcome", outcome),
			slog.Duration("latency", elapsed),
			slog.String("error", err.Error()))
		return degraded
	}

	return SuggestResponse{Suggestions: dedupeSuggestions(raw, req.Limit)}
}

// callPrefix runs the prefix adapter against the suggestion deadline and
// abandons it when the deadline passes.
func (e *Engine) callPrefix(ctx context.Context, req SuggestRequest) ([]Suggestion, error) {
	deadline := e.config.SuggestDeadline
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	type result struct {
		suggestions []Suggestion
		err         error
	}
	ch := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: apperrors.AdapterError(prefixSource, fmt.Errorf("panic: %v", r))}
			}
		}()
		s, err := e.prefix.Prefix(ctx, req, deadline)
		ch <- result{suggestions: s, err: err}
	}()

	select {
	case r := <-ch:
		switch {
		case r.err == nil:
			return r.suggestions, nil
		case errors.Is(r.err, apperrors.ErrAdapterTimeout), errors.Is(r.err, context.DeadlineExceeded):
			return nil, apperrors.AdapterTimeout(prefixSource, r.err)
		default:
			return nil, apperrors.AdapterError(prefixSource, r.err)
		}
	case <-ctx.Done():
		return nil, apperrors.AdapterTimeout(prefixSource, ctx.Err())
	}
}

// dedupeSuggestions keeps the first suggestion per entity, in adapter order,
// up to limit.
func dedupeSuggestions(in []Suggestion, limit int) []Suggestion {
	out := make([]Suggestion, 0, min(len(in), limit))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if len(out) == limit {
			break
		}
		id := s.EntityID
		if id == "" {
			id = "text:" + s.Text
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, s)
	}
	return out
}
