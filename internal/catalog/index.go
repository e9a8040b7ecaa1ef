package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/Aman-CERP/fusionsearch/internal/errors"
	"github.com/Aman-CERP/fusionsearch/internal/store"
)

// DefaultBatchSize is how many documents one sink call receives.
const DefaultBatchSize = 256

// Sink is a store that accepts catalog documents.
type Sink interface {
	Index(ctx context.Context, docs []store.Document) error
	Delete(ctx context.Context, ids []string) error
}

// Upserter is a store that writes with upsert semantics.
type Upserter interface {
	Upsert(ctx context.Context, docs []store.Document) error
	Delete(ctx context.Context, ids []string) error
}

// UpsertSink adapts an Upserter such as store.RelationalStore to Sink.
func UpsertSink(u Upserter) Sink {
	return upsertSink{u}
}

type upsertSink struct{ Upserter }

func (s upsertSink) Index(ctx context.Context, docs []store.Document) error {
	return s.Upsert(ctx, docs)
}

// SyncResult summarizes one Sync.
type SyncResult struct {
	Indexed  int
	Removed  int
	Duration time.Duration
}

// Indexer writes the catalog to every sink in parallel and removes entities
// that disappeared since the previous sync.
type Indexer struct {
	mu        sync.Mutex
	sinks     map[string]Sink
	known     map[string]struct{}
	batchSize int
	logger    *slog.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithBatchSize sets the documents per sink call.
func WithBatchSize(n int) IndexerOption {
	return func(ix *Indexer) {
		if n > 0 {
			ix.batchSize = n
		}
	}
}

// WithIndexLogger sets the logger.
func WithIndexLogger(logger *slog.Logger) IndexerOption {
	return func(ix *Indexer) {
		if logger != nil {
			ix.logger = logger
		}
	}
}

// NewIndexer creates an indexer over named sinks.
func NewIndexer(sinks map[string]Sink, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		sinks:     sinks,
		known:     make(map[string]struct{}),
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Sync makes every sink hold exactly docs. Sinks run concurrently; the
// first failure cancels the others and the previous state is kept as the
// baseline for the next attempt.
func (ix *Indexer) Sync(ctx context.Context, docs []store.Document) (SyncResult, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	start := time.Now()

	current := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		current[d.ID] = struct{}{}
	}
	var removed []string
	for id := range ix.known {
		if _, ok := current[id]; !ok {
			removed = append(removed, id)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for name, sink := range ix.sinks {
		g.Go(func() error {
			if err := sink.Delete(gctx, removed); err != nil {
				return fmt.Errorf("%s: delete: %w", name, err)
			}
			for i := 0; i < len(docs); i += ix.batchSize {
				end := min(i+ix.batchSize, len(docs))
				if err := sink.Index(gctx, docs[i:end]); err != nil {
					return fmt.Errorf("%s: index: %w", name, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		ix.logger.Error("catalog_sync_failed", slog.String("error", err.Error()))
		return SyncResult{}, apperrors.New(apperrors.ErrCodeIndexFailed, err.Error(), err)
	}

	ix.known = current
	result := SyncResult{
		Indexed:  len(docs),
		Removed:  len(removed),
		Duration: time.Since(start),
	}
	ix.logger.Info("catalog_synced",
		slog.Int("indexed", result.Indexed),
		slog.Int("removed", result.Removed),
		slog.Int("sinks", len(ix.sinks)),
		slog.Duration("duration", result.Duration))
	return result, nil
}

// LoadAndSync loads the catalog at path and syncs it.
func (ix *Indexer) LoadAndSync(ctx context.Context, path string) (SyncResult, error) {
	docs, err := Load(path)
	if err != nil {
		return SyncResult{}, err
	}
	return ix.Sync(ctx, docs)
}
