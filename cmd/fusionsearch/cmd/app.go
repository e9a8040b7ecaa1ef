package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Aman-CERP/fusionsearch/internal/adapter"
	"github.com/Aman-CERP/fusionsearch/internal/catalog"
	"github.com/Aman-CERP/fusionsearch/internal/config"
	"github.com/Aman-CERP/fusionsearch/internal/embed"
	"github.com/Aman-CERP/fusionsearch/internal/search"
	"github.com/Aman-CERP/fusionsearch/internal/store"
	"github.com/Aman-CERP/fusionsearch/internal/telemetry"
)

// embedCacheSize bounds the query embedding cache.
const embedCacheSize = 4096

// app is the wired search stack behind every command.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	engine  *search.Engine
	indexer *catalog.Indexer
	metrics *telemetry.Metrics

	lexical    *store.LexicalIndex
	vector     *store.VectorIndex
	relational *store.RelationalStore
	redis      *redis.Client
}

// newApp builds stores, adapters, caches and the engine from cfg, then
// indexes the configured catalog.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &app{cfg: cfg, logger: logger, metrics: telemetry.NewMetrics()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if a.lexical, err = store.NewLexicalIndex(); err != nil {
		return nil, err
	}

	embedder := embed.NewCachedEmbedder(embed.NewStaticEmbedder(cfg.Sources.EmbeddingDimensions), embedCacheSize)
	if a.vector, err = store.NewVectorIndex(embedder, store.DefaultVectorConfig()); err != nil {
		return nil, err
	}

	dsn := cfg.Sources.RelationalDSN
	if dsn == "" {
		dsn = ":memory:"
	}
	a.relational, err = store.OpenRelational(ctx, store.RelationalConfig{
		Driver: strings.ToLower(cfg.Sources.RelationalDriver),
		DSN:    dsn,
	}, logger)
	if err != nil {
		return nil, err
	}

	breaker := adapter.BreakerConfig{
		FailureThreshold: uint32(cfg.Sources.Breaker.MaxFailures),
		OpenTimeout:      config.Duration(cfg.Sources.Breaker.OpenTimeout, 30*time.Second),
	}
	sources := []search.SourceAdapter{
		adapter.NewLexical(a.lexical),
		adapter.NewVector(a.vector),
		adapter.NewRelational(a.relational),
	}
	var prefix search.PrefixAdapter = adapter.NewPrefix(a.lexical)
	if breaker.FailureThreshold > 0 {
		for i, s := range sources {
			sources[i] = adapter.NewBreaker(s, breaker, logger)
		}
		prefix = adapter.NewPrefixBreaker(prefix, breaker, logger)
	}

	opts := []search.EngineOption{
		search.WithConfig(engineConfig(cfg)),
		search.WithPrefixAdapter(prefix),
		search.WithMetrics(a.metrics),
		search.WithLogger(logger),
	}
	opts = append(opts, a.cacheOptions()...)

	if a.engine, err = search.NewEngine(sources, opts...); err != nil {
		return nil, err
	}

	a.indexer = catalog.NewIndexer(map[string]catalog.Sink{
		"lexical":    a.lexical,
		"vector":     a.vector,
		"relational": catalog.UpsertSink(a.relational),
	}, catalog.WithIndexLogger(logger))

	if cfg.Sources.Catalog != "" {
		if _, err = a.indexer.LoadAndSync(ctx, cfg.Sources.Catalog); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// cacheOptions selects the response cache backend.
func (a *app) cacheOptions() []search.EngineOption {
	cc := a.cfg.Cache
	switch strings.ToLower(cc.Backend) {
	case "redis":
		a.redis = store.NewRedisClient(store.RedisConfig{
			Addr:     cc.Redis.Addr,
			Password: cc.Redis.Password,
			DB:       cc.Redis.DB,
			Prefix:   cc.Redis.KeyPrefix,
			Timeout:  config.Duration(cc.Redis.Timeout, 50*time.Millisecond),
		})
		return []search.EngineOption{
			search.WithSearchCache(store.NewRedisStore[search.SearchResponse](a.redis, cc.Redis.KeyPrefix)),
			search.WithSuggestCache(store.NewRedisStore[search.SuggestResponse](a.redis, cc.Redis.KeyPrefix)),
		}
	case "none":
		return nil
	default:
		return []search.EngineOption{
			search.WithSearchCache(search.NewMemoryStore[search.SearchResponse](cc.Size)),
			search.WithSuggestCache(search.NewMemoryStore[search.SuggestResponse](cc.Size)),
		}
	}
}

// engineConfig maps the file configuration onto the engine.
func engineConfig(cfg *config.Config) search.EngineConfig {
	def := search.DefaultConfig()
	return search.EngineConfig{
		Deadline:        config.Duration(cfg.Search.Deadline, def.Deadline),
		SuggestDeadline: config.Duration(cfg.Search.SuggestDeadline, def.SuggestDeadline),
		Weights: search.Weights{
			Lexical:    cfg.Search.LexicalWeight,
			Vector:     cfg.Search.VectorWeight,
			Relational: cfg.Search.RelationalWeight,
		},
		DefaultLimit: cfg.Search.DefaultLimit,
		SuggestLimit: cfg.Search.SuggestLimit,
		TTL: search.TTLPolicy{
			General: config.Duration(cfg.Cache.TTLGeneral, def.TTL.General),
			Docs:    config.Duration(cfg.Cache.TTLDocs, def.TTL.Docs),
			Suggest: config.Duration(cfg.Cache.TTLSuggest, def.TTL.Suggest),
		},
	}
}

// Close releases every store. It is safe on a partially built app.
func (a *app) Close() error {
	var errs []error
	if a.lexical != nil {
		errs = append(errs, a.lexical.Close())
	}
	if a.vector != nil {
		errs = append(errs, a.vector.Close())
	}
	if a.relational != nil {
		errs = append(errs, a.relational.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to close stores: %w", err)
	}
	return nil
}
