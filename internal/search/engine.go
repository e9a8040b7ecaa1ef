package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	apperrors "github.com/Aman-CERP/fusionsearch/internal/errors"
	"github.com/Aman-CERP/fusionsearch/internal/telemetry"
)

// Engine answers searches and suggestions over a set of source adapters.
type Engine struct {
	coordinator  *Coordinator
	normalizer   Normalizer
	config       EngineConfig
	prefix       PrefixAdapter
	searchStore  CacheStore[SearchResponse]
	suggestStore CacheStore[SuggestResponse]
	searchCache  *Cache[SearchResponse]
	suggestCache *Cache[SuggestResponse]
	metrics      *telemetry.Metrics
	stats        *telemetry.QueryStats
	logger       *slog.Logger
}

// Ensure Engine implements Searcher interface.
var _ Searcher = (*Engine)(nil)

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithConfig replaces the default engine configuration.
// Zero fields keep their defaults.
func WithConfig(cfg EngineConfig) EngineOption {
	return func(e *Engine) {
		def := DefaultConfig()
		if cfg.Deadline <= 0 {
			cfg.Deadline = def.Deadline
		}
		if cfg.SuggestDeadline <= 0 {
			cfg.SuggestDeadline = def.SuggestDeadline
		}
		if cfg.Weights == (Weights{}) {
			cfg.Weights = def.Weights
		}
		if cfg.TTL == (TTLPolicy{}) {
			cfg.TTL = def.TTL
		}
		e.config = cfg
	}
}

// WithSearchCache sets the store for full search responses.
// Without it every search is computed.
func WithSearchCache(store CacheStore[SearchResponse]) EngineOption {
	return func(e *Engine) {
		e.searchStore = store
	}
}

// WithSuggestCache sets the store for suggestion responses.
func WithSuggestCache(store CacheStore[SuggestResponse]) EngineOption {
	return func(e *Engine) {
		e.suggestStore = store
	}
}

// WithPrefixAdapter sets the adapter that answers suggestions.
func WithPrefixAdapter(p PrefixAdapter) EngineOption {
	return func(e *Engine) {
		e.prefix = p
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *telemetry.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithStats sets the in-memory query stats collector.
func WithStats(s *telemetry.QueryStats) EngineOption {
	return func(e *Engine) {
		e.stats = s
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine over adapters. At most one adapter per
// source kind is allowed.
func NewEngine(adapters []SourceAdapter, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	coordinator, err := NewCoordinator(adapters, e.config.Deadline, e.logger, e.metrics)
	if err != nil {
		return nil, fmt.Errorf("create coordinator: %w", err)
	}
	e.coordinator = coordinator
	e.normalizer = NewNormalizer(e.config.DefaultLimit, e.config.SuggestLimit)

	if e.stats == nil {
		e.stats = telemetry.NewQueryStats(telemetry.DefaultQueryStatsConfig())
	}

	// Degraded answers are served but not stored, so a recovered source
	// shows up on the next request instead of after the TTL.
	e.searchCache = NewCache(e.searchStore, EndpointSearch, e.logger, e.metrics).
		SkipWhen(func(r SearchResponse) bool { return r.Degraded })
	e.suggestCache = NewCache(e.suggestStore, EndpointSuggest, e.logger, e.metrics).
		SkipWhen(func(r SuggestResponse) bool { return r.Degraded })

	return e, nil
}

// Config returns the effective engine configuration.
func (e *Engine) Config() EngineConfig {
	return e.config
}

// Search normalizes raw, answers it from cache when possible and otherwise
// fans it out, fuses the hits and returns the requested page.
//
// Errors are InvalidParameter for a bad request and AllSourcesUnavailable
// when no required source answered. Partial failure sets Degraded instead.
func (e *Engine) Search(ctx context.Context, raw RawRequest) (*SearchResponse, error) {
	start := time.Now()

	req, err := e.normalizer.Normalize(raw)
	if err != nil {
		e.finish(EndpointSearch, raw.Mode, start, nil, err)
		return nil, err
	}

	e.logger.Debug("search_started",
		slog.String("query", req.Query),
		slog.String("mode", string(req.Mode)),
		slog.String("scope", string(req.Scope)),
		slog.Int("limit", req.Limit),
		slog.Int("page", req.Page))

	key, err := RequestKey(EndpointSearch, req)
	if err != nil {
		err = apperrors.InternalError("failed to build cache key", err)
		e.finish(EndpointSearch, string(req.Mode), start, nil, err)
		return nil, err
	}

	resp, hit, err := e.searchCache.GetOrCompute(ctx, key, e.config.TTL.ForRequest(req),
		func(ctx context.Context) (SearchResponse, error) {
			return e.compute(ctx, req)
		})
	if err != nil {
		e.finish(EndpointSearch, string(req.Mode), start, nil, err)
		return nil, err
	}

	resp.Cached = hit
	resp.ProcessingTimeMs = time.Since(start).Milliseconds()

	e.finish(EndpointSearch, string(req.Mode), start, &telemetry.QueryEvent{
		Query:       req.Query,
		Mode:        string(resp.SearchMode),
		ResultCount: resp.TotalResults,
		Degraded:    resp.Degraded,
		Cached:      hit,
	}, nil)
	return &resp, nil
}

// compute runs the uncached search path.
func (e *Engine) compute(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	g, err := e.coordinator.Gather(ctx, req)
	if err != nil {
		return SearchResponse{}, err
	}

	fused, err := Fuse(g.Hits, g.EffectiveMode, e.config.Weights)
	if err != nil {
		return SearchResponse{}, apperrors.InternalError("fusion failed", err)
	}

	return SearchResponse{
		Results:      slices.Clone(Paginate(fused, req.Limit, req.Page)),
		TotalResults: len(fused),
		Degraded:     g.Degraded,
		SearchMode:   g.EffectiveMode,
		Sources:      g.Reports,
	}, nil
}

// Stats returns a snapshot of the in-memory query stats.
func (e *Engine) Stats() *telemetry.QueryStatsSnapshot {
	return e.stats.Snapshot()
}

// finish logs, counts and records one request. event is nil on failure.
func (e *Engine) finish(endpoint, mode string, start time.Time, event *telemetry.QueryEvent, err error) {
	elapsed := time.Since(start)
	if mode == "" {
		mode = string(ModeHybrid)
	}

	if err != nil {
		outcome := outcomeOf(err)
		e.metrics.ObserveRequest(endpoint, mode, outcome, false, elapsed)

		attrs := []any{
			slog.String("endpoint", endpoint),
			slog.String("mode", mode),
			slog.String("outcome", outcome),
			slog.Duration("latency", elapsed),
		}
		attrs = append(attrs, apperrors.LogAttrs(err)...)
		if outcome == telemetry.OutcomeInvalid {
			e.logger.Debug("request_rejected", attrs...)
		} else {
			e.logger.Warn("request_failed", attrs...)
		}
		return
	}

	e.metrics.ObserveRequest(endpoint, mode, telemetry.OutcomeOK, event.Degraded, elapsed)
	event.Latency = elapsed
	event.Timestamp = start
	e.stats.Record(*event)

	e.logger.Info(endpoint+"_completed",
		slog.String("query", event.Query),
		slog.String("mode", event.Mode),
		slog.Int("results", event.ResultCount),
		slog.Bool("degraded", event.Degraded),
		slog.Bool("cached", event.Cached),
		slog.Duration("latency", elapsed))
}

// outcomeOf maps an error to a metrics outcome label.
func outcomeOf(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrInvalidParameter):
		return telemetry.OutcomeInvalid
	case errors.Is(err, apperrors.ErrAllSourcesUnavailable):
		return telemetry.OutcomeUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return telemetry.OutcomeTimeout
	default:
		return telemetry.OutcomeError
	}
}
