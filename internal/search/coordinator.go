package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	apperrors "github.com/Aman-CERP/fusionsearch/internal/errors"
	"github.com/Aman-CERP/fusionsearch/internal/telemetry"
)

// fallbackReserve sets the part of the deadline (1/fallbackReserve) that a
// semantic request keeps back for the keyword fallback.
const fallbackReserve = 4

// errNotRegistered marks a required source that has no adapter.
var errNotRegistered = errors.New("no adapter registered")

// Gathered is the outcome of one fan-out.
type Gathered struct {
	// Hits holds the hits of every source that answered, keyed by kind.
	// Failed sources are absent; a source that answered with nothing maps
	// to an empty slice.
	Hits map[SourceKind][]SourceHit

	// Degraded is set when any consulted source failed or timed out.
	Degraded bool

	// EffectiveMode is the mode the hits were produced under. It differs
	// from the requested mode when semantic falls back to keyword.
	EffectiveMode Mode

	// Reports describes each adapter call in source order.
	Reports []SourceReport
}

// outcome is one adapter call's result.
type outcome struct {
	kind     SourceKind
	hits     []SourceHit
	err      error
	timedOut bool
	latency  time.Duration
}

// Coordinator fans a request out to the adapters its mode needs under one
// shared deadline.
type Coordinator struct {
	adapters map[SourceKind]SourceAdapter
	deadline time.Duration
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

// NewCoordinator indexes adapters by kind. It fails on a nil or duplicate
// adapter and when no adapter is given.
func NewCoordinator(adapters []SourceAdapter, deadline time.Duration, logger *slog.Logger, metrics *telemetry.Metrics) (*Coordinator, error) {
	if len(adapters) == 0 {
		return nil, fmt.Errorf("%w: at least one source adapter is required", apperrors.ErrNilDependency)
	}
	byKind := make(map[SourceKind]SourceAdapter, len(adapters))
	for i, a := range adapters {
		if a == nil {
			return nil, fmt.Errorf("%w: adapter %d is nil", apperrors.ErrNilDependency, i)
		}
		if _, dup := byKind[a.Kind()]; dup {
			return nil, fmt.Errorf("duplicate adapter for source %q", a.Kind())
		}
		byKind[a.Kind()] = a
	}
	if deadline <= 0 {
		deadline = DefaultConfig().Deadline
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		adapters: byKind,
		deadline: deadline,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Has reports whether an adapter for kind is registered.
func (c *Coordinator) Has(kind SourceKind) bool {
	_, ok := c.adapters[kind]
	return ok
}

// Gather consults the sources req.Mode needs.
//
// keyword asks lexical. semantic asks vector and falls back to lexical when
// vector fails; vector gets three quarters of the deadline so a timeout
// still leaves the fallback time to answer. hybrid asks lexical and vector in parallel and asks
// relational only when both came back empty. Failed sources are dropped
// and mark the result degraded. When every required source fails Gather
// returns an AllSourcesUnavailable error. A source that has not answered
// by the deadline is abandoned, never awaited.
func (c *Coordinator) Gather(ctx context.Context, req SearchRequest) (*Gathered, error) {
	dctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	g := &Gathered{
		Hits:          make(map[SourceKind][]SourceHit, 3),
		EffectiveMode: req.Mode,
	}
	var failures []error

	record := func(outs []outcome) (answered int) {
		for _, o := range outs {
			g.Reports = append(g.Reports, SourceReport{
				Source:    o.kind,
				Hits:      len(o.hits),
				LatencyMs: o.latency.Milliseconds(),
				TimedOut:  o.timedOut,
				Failed:    o.err != nil && !o.timedOut,
			})
			if o.err != nil {
				g.Degraded = true
				failures = append(failures, o.err)
				continue
			}
			g.Hits[o.kind] = o.hits
			answered++
		}
		return answered
	}

	switch req.Mode {
	case ModeKeyword:
		record(c.run(dctx, req, SourceLexical))

	case ModeSemantic:
		// vector may not spend the share of the budget the fallback needs
		vctx, vcancel := context.WithTimeout(dctx, c.deadline-c.deadline/fallbackReserve)
		answered := record(c.run(vctx, req, SourceVector))
		vcancel()
		if answered == 0 {
			c.logger.Warn("semantic_fallback",
				slog.String("query", req.Query),
				slog.String("fallback", string(ModeKeyword)))
			g.EffectiveMode = ModeKeyword
			record(c.run(dctx, req, SourceLexical))
		}

	default:
		record(c.run(dctx, req, SourceLexical, SourceVector))
		if len(g.Hits) > 0 && len(g.Hits[SourceLexical])+len(g.Hits[SourceVector]) == 0 && c.Has(SourceRelational) {
			record(c.run(dctx, req, SourceRelational))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(g.Hits) == 0 {
		return nil, apperrors.AllSourcesUnavailable(errors.Join(failures...))
	}

	sort.SliceStable(g.Reports, func(i, j int) bool {
		return sourceRank(g.Reports[i].Source) < sourceRank(g.Reports[j].Source)
	})
	return g, nil
}

// run calls the adapters for kinds concurrently and collects their outcomes
// until all have answered or ctx is done, in kinds order.
func (c *Coordinator) run(ctx context.Context, req SearchRequest, kinds ...SourceKind) []outcome {
	done := make(map[SourceKind]outcome, len(kinds))
	results := make(chan outcome, len(kinds))
	started := time.Now()

	pending := 0
	for _, k := range kinds {
		a, ok := c.adapters[k]
		if !ok {
			done[k] = outcome{kind: k, err: apperrors.AdapterError(string(k), errNotRegistered)}
			continue
		}
		pending++
		go c.call(ctx, a, req, results)
	}

collect:
	for pending > 0 {
		select {
		case o := <-results:
			done[o.kind] = o
			pending--
		case <-ctx.Done():
			for _, k := range kinds {
				if _, ok := done[k]; !ok {
					done[k] = outcome{
						kind:     k,
						err:      apperrors.AdapterTimeout(string(k), ctx.Err()),
						timedOut: true,
						latency:  time.Since(started),
					}
				}
			}
			break collect
		}
	}

	outs := make([]outcome, 0, len(kinds))
	for _, k := range kinds {
		o := done[k]
		c.observe(req, o)
		outs = append(outs, o)
	}
	return outs
}

// call runs one adapter and always delivers exactly one outcome. results is
// buffered so a call that outlives the deadline never blocks.
func (c *Coordinator) call(ctx context.Context, a SourceAdapter, req SearchRequest, results chan<- outcome) {
	kind := a.Kind()
	start := time.Now()
	o := outcome{kind: kind}

	defer func() {
		if r := recover(); r != nil {
			o.hits = nil
			o.err = apperrors.AdapterError(string(kind), fmt.Errorf("panic: %v", r))
		}
		o.latency = time.Since(start)
		results <- o
	}()

	remaining := c.deadline
	if dl, ok := ctx.Deadline(); ok {
		remaining = time.Until(dl)
	}
	if remaining <= 0 {
		o.err = apperrors.AdapterTimeout(string(kind), context.DeadlineExceeded)
		o.timedOut = true
		return
	}

	hits, err := a.Search(ctx, req, remaining)
	switch {
	case err == nil:
		if hits == nil {
			hits = []SourceHit{}
		}
		o.hits = hits
	case errors.Is(err, apperrors.ErrAdapterTimeout), errors.Is(err, context.DeadlineExceeded):
		o.err = apperrors.AdapterTimeout(string(kind), err)
		o.timedOut = true
	default:
		o.err = apperrors.AdapterError(string(kind), err)
	}
}

// observe logs and counts one outcome.
func (c *Coordinator) observe(req SearchRequest, o outcome) {
	result := telemetry.OutcomeOK
	switch {
	case o.timedOut:
		result = telemetry.OutcomeTimeout
	case o.err != nil:
		result = telemetry.OutcomeError
	}
	c.metrics.ObserveAdapter(string(o.kind), result, o.latency)

	if o.err == nil {
		c.logger.Debug("adapter_completed",
			slog.String("source", string(o.kind)),
			slog.Int("hits", len(o.hits)),
			slog.Duration("latency", o.latency))
		return
	}
	c.logger.Warn("adapter_failed",
		slog.String("source", string(o.kind)),
		slog.String("mode", string(req.Mode)),
		slog.Bool("timed_out", o.timedOut),
		slog.Duration("latency", o.latency),
		slog.String("error", o.err.Error()))
}
