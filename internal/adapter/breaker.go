package adapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	apperrors "github.com/Aman-CERP/fusionsearch/internal/errors"
	"github.com/Aman-CERP/fusionsearch/internal/search"
)

// BreakerConfig configures a circuit breaker around one backend.
type BreakerConfig struct {
	// FailureThreshold is the run of consecutive failures that opens the
	// circuit (default: 5).
	FailureThreshold uint32

	// OpenTimeout is how long the circuit stays open before one trial call
	// (default: 30s).
	OpenTimeout time.Duration
}

// DefaultBreakerConfig returns the default breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

func newCircuit(name string, cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker {
	defaults := DefaultBreakerConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaults.OpenTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit_state_changed",
				slog.String("source", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
		// a caller giving up says nothing about the backend
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

// execute runs fn through cb, converting a rejected call into an adapter error.
func execute[T any](cb *gobreaker.CircuitBreaker, source string, fn func() (T, error)) (T, error) {
	var zero T
	out, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, apperrors.AdapterError(source, err)
	}
	if err != nil {
		return zero, err
	}
	return out.(T), nil
}

// Breaker fails fast for a source adapter that keeps failing.
type Breaker struct {
	inner search.SourceAdapter
	cb    *gobreaker.CircuitBreaker
}

// NewBreaker wraps inner in a circuit breaker.
func NewBreaker(inner search.SourceAdapter, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	return &Breaker{
		inner: inner,
		cb:    newCircuit(string(inner.Kind()), cfg, logger),
	}
}

// Kind implements search.SourceAdapter.
func (b *Breaker) Kind() search.SourceKind { return b.inner.Kind() }

// Search implements search.SourceAdapter.
func (b *Breaker) Search(ctx context.Context, req search.SearchRequest, deadline time.Duration) ([]search.SourceHit, error) {
	return execute(b.cb, string(b.inner.Kind()), func() ([]search.SourceHit, error) {
		return b.inner.Search(ctx, req, deadline)
	})
}

// State reports the circuit state: "closed", "half-open" or "open".
func (b *Breaker) State() string { return b.cb.State().String() }

// PrefixBreaker fails fast for a suggestion adapter that keeps failing.
type PrefixBreaker struct {
	inner search.PrefixAdapter
	cb    *gobreaker.CircuitBreaker
}

// NewPrefixBreaker wraps inner in a circuit breaker.
func NewPrefixBreaker(inner search.PrefixAdapter, cfg BreakerConfig, logger *slog.Logger) *PrefixBreaker {
	return &PrefixBreaker{
		inner: inner,
		cb:    newCircuit("prefix", cfg, logger),
	}
}

// Prefix implements search.PrefixAdapter.
func (b *PrefixBreaker) Prefix(ctx context.Context, req search.SuggestRequest, deadline time.Duration) ([]search.Suggestion, error) {
	return execute(b.cb, "prefix", func() ([]search.Suggestion, error) {
		return b.inner.Prefix(ctx, req, deadline)
	})
}

// State reports the circuit state.
func (b *PrefixBreaker) State() string { return b.cb.State().String() }
