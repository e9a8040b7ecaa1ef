package search

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aman-CERP/fusionsearch/internal/errors"
)

// --- Test Helpers ---

// fakeAdapter returns canned hits after an optional delay.
type fakeAdapter struct {
	kind  SourceKind
	hits  []SourceHit
	err   error
	delay time.Duration
	panic bool
	calls atomic.Int32
}

func (f *fakeAdapter) Kind() SourceKind { return f.kind }

func (f *fakeAdapter) Search(ctx context.Context, _ SearchRequest, _ time.Duration) ([]SourceHit, error) {
	f.calls.Add(1)
	if f.panic {
		panic("backend exploded")
	}
	if f.delay > 0 {
		// Ignores ctx on purpose to model an adapter that answers late.
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func newFake(kind SourceKind, pairs ...any) *fakeAdapter {
	return &fakeAdapter{kind: kind, hits: hitsOf(kind, pairs...)}
}

func failing(kind SourceKind) *fakeAdapter {
	return &fakeAdapter{kind: kind, err: errors.New("connection refused: 10.0.0.7:9200")}
}

func hybridRequest() SearchRequest {
	return SearchRequest{Query: "data table", Scope: ScopeAll, Mode: ModeHybrid, Limit: 20}
}

func newTestCoordinator(t *testing.T, deadline time.Duration, adapters ...SourceAdapter) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(adapters, deadline, nil, nil)
	require.NoError(t, err)
	return c
}

// --- Construction ---

func TestNewCoordinator_Validation(t *testing.T) {
	_, err := NewCoordinator(nil, time.Second, nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrNilDependency)

	_, err = NewCoordinator([]SourceAdapter{nil}, time.Second, nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrNilDependency)

	_, err = NewCoordinator([]SourceAdapter{newFake(SourceLexical), newFake(SourceLexical)}, time.Second, nil, nil)
	assert.Error(t, err)
}

// --- Mode routing ---

func TestGather_KeywordUsesLexicalOnly(t *testing.T) {
	// Given: lexical and vector adapters
	lex := newFake(SourceLexical, "A", 1.0)
	vec := newFake(SourceVector, "B", 1.0)
	c := newTestCoordinator(t, time.Second, lex, vec)

	// When: gathering in keyword mode
	req := hybridRequest()
	req.Mode = ModeKeyword
	g, err := c.Gather(context.Background(), req)

	// Then: only lexical is consulted
	require.NoError(t, err)
	assert.Equal(t, int32(1), lex.calls.Load())
	assert.Equal(t, int32(0), vec.calls.Load())
	assert.False(t, g.Degraded)
	assert.Equal(t, ModeKeyword, g.EffectiveMode)
	assert.Contains(t, g.Hits, SourceLexical)
	assert.NotContains(t, g.Hits, SourceVector)
}

func TestGather_SemanticFallsBackToKeyword(t *testing.T) {
	// Given: a failing vector adapter and a healthy lexical one
	lex := newFake(SourceLexical, "A", 1.0)
	c := newTestCoordinator(t, time.Second, lex, failing(SourceVector))

	// When: gathering in semantic mode
	req := hybridRequest()
	req.Mode = ModeSemantic
	g, err := c.Gather(context.Background(), req)

	// Then: lexical answers, mode degrades to keyword
	require.NoError(t, err)
	assert.True(t, g.Degraded)
	assert.Equal(t, ModeKeyword, g.EffectiveMode)
	assert.Len(t, g.Hits[SourceLexical], 1)
	require.Len(t, g.Reports, 2)
	assert.Equal(t, SourceLexical, g.Reports[0].Source)
	assert.True(t, g.Reports[1].Failed)
}

func TestGather_SemanticFallsBackWhenVectorTimesOut(t *testing.T) {
	// Given: a vector adapter slower than the whole deadline
	lex := newFake(SourceLexical, "A", 1.0)
	vec := newFake(SourceVector, "B", 1.0)
	vec.delay = 500 * time.Millisecond
	c := newTestCoordinator(t, 100*time.Millisecond, lex, vec)

	// When: gathering in semantic mode
	req := hybridRequest()
	req.Mode = ModeSemantic
	start := time.Now()
	g, err := c.Gather(context.Background(), req)

	// Then: the keyword fallback still answers within the deadline
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 300*time.Millisecond)
	assert.Equal(t, int32(1), lex.calls.Load())
	assert.True(t, g.Degraded)
	assert.Equal(t, ModeKeyword, g.EffectiveMode)
	assert.Len(t, g.Hits[SourceLexical], 1)
	require.Len(t, g.Reports, 2)
	assert.True(t, g.Reports[1].TimedOut)
}

func TestGather_SemanticHealthyDoesNotTouchLexical(t *testing.T) {
	lex := newFake(SourceLexical, "A", 1.0)
	vec := newFake(SourceVector, "B", 0.8)
	c := newTestCoordinator(t, time.Second, lex, vec)

	req := hybridRequest()
	req.Mode = ModeSemantic
	g, err := c.Gather(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, int32(0), lex.calls.Load())
	assert.Equal(t, ModeSemantic, g.EffectiveMode)
	assert.False(t, g.Degraded)
}

func TestGather_HybridVectorDown(t *testing.T) {
	// Given: vector fails, lexical succeeds
	c := newTestCoordinator(t, time.Second, newFake(SourceLexical, "A", 2.0, "B", 1.0), failing(SourceVector))

	// When: gathering in hybrid mode
	g, err := c.Gather(context.Background(), hybridRequest())

	// Then: degraded with lexical hits only
	require.NoError(t, err)
	assert.True(t, g.Degraded)
	assert.Equal(t, ModeHybrid, g.EffectiveMode)
	assert.Len(t, g.Hits[SourceLexical], 2)
	assert.NotContains(t, g.Hits, SourceVector)
}

func TestGather_HybridBothDown(t *testing.T) {
	// Given: both primary sources fail and relational is healthy
	rel := newFake(SourceRelational, "R", 1.0)
	c := newTestCoordinator(t, time.Second, failing(SourceLexical), failing(SourceVector), rel)

	// When: gathering
	_, err := c.Gather(context.Background(), hybridRequest())

	// Then: AllSourcesUnavailable, relational is not tried, no backend text leaks
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAllSourcesUnavailable)
	assert.True(t, apperrors.IsRetryable(err))
	assert.NotContains(t, apperrors.FormatForUser(err), "10.0.0.7")
	assert.Equal(t, int32(0), rel.calls.Load())
}

func TestGather_HybridRelationalFallback(t *testing.T) {
	tests := []struct {
		name        string
		lexical     *fakeAdapter
		vector      *fakeAdapter
		wantCalled  bool
		wantDegrade bool
	}{
		{"both empty", newFake(SourceLexical), newFake(SourceVector), true, false},
		{"one failed one empty", failing(SourceLexical), newFake(SourceVector), true, true},
		{"lexical has hits", newFake(SourceLexical, "A", 1.0), newFake(SourceVector), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel := newFake(SourceRelational, "R", 1.0)
			c := newTestCoordinator(t, time.Second, tt.lexical, tt.vector, rel)

			g, err := c.Gather(context.Background(), hybridRequest())

			require.NoError(t, err)
			assert.Equal(t, tt.wantCalled, rel.calls.Load() == 1)
			assert.Equal(t, tt.wantDegrade, g.Degraded)
			if tt.wantCalled {
				assert.Len(t, g.Hits[SourceRelational], 1)
			}
		})
	}
}

func TestGather_MissingRelationalIsSkipped(t *testing.T) {
	c := newTestCoordinator(t, time.Second, newFake(SourceLexical), newFake(SourceVector))

	g, err := c.Gather(context.Background(), hybridRequest())

	require.NoError(t, err)
	assert.False(t, g.Degraded)
	assert.Len(t, g.Reports, 2)
}

func TestGather_MissingRequiredAdapterCountsAsFailed(t *testing.T) {
	// Given: only a vector adapter
	c := newTestCoordinator(t, time.Second, newFake(SourceVector, "B", 1.0))

	// When: keyword search
	req := hybridRequest()
	req.Mode = ModeKeyword
	_, err := c.Gather(context.Background(), req)

	// Then: nothing can answer
	assert.ErrorIs(t, err, apperrors.ErrAllSourcesUnavailable)

	// When: hybrid search
	g, err := c.Gather(context.Background(), hybridRequest())

	// Then: vector answers alone, degraded
	require.NoError(t, err)
	assert.True(t, g.Degraded)
}

// --- Deadline ---

func TestGather_SlowAdapterIsAbandoned(t *testing.T) {
	// Given: a vector adapter that answers long after the deadline
	slow := &fakeAdapter{kind: SourceVector, hits: hitsOf(SourceVector, "late", 1.0), delay: 500 * time.Millisecond}
	c := newTestCoordinator(t, 50*time.Millisecond, newFake(SourceLexical, "A", 1.0), slow)

	// When: gathering
	start := time.Now()
	g, err := c.Gather(context.Background(), hybridRequest())
	elapsed := time.Since(start)

	// Then: returns near the deadline, degraded, without the late hits
	require.NoError(t, err)
	assert.Less(t, elapsed, 300*time.Millisecond)
	assert.True(t, g.Degraded)
	assert.NotContains(t, g.Hits, SourceVector)
	require.Len(t, g.Reports, 2)
	assert.True(t, g.Reports[1].TimedOut)
}

func TestGather_AllTimeOut(t *testing.T) {
	slowLex := &fakeAdapter{kind: SourceLexical, delay: 300 * time.Millisecond}
	slowVec := &fakeAdapter{kind: SourceVector, delay: 300 * time.Millisecond}
	c := newTestCoordinator(t, 30*time.Millisecond, slowLex, slowVec)

	_, err := c.Gather(context.Background(), hybridRequest())

	assert.ErrorIs(t, err, apperrors.ErrAllSourcesUnavailable)
}

func TestGather_PanickingAdapterIsContained(t *testing.T) {
	boom := &fakeAdapter{kind: SourceVector, panic: true}
	c := newTestCoordinator(t, time.Second, newFake(SourceLexical, "A", 1.0), boom)

	g, err := c.Gather(context.Background(), hybridRequest())

	require.NoError(t, err)
	assert.True(t, g.Degraded)
	assert.True(t, g.Reports[1].Failed)
}

func TestGather_CallerCancellation(t *testing.T) {
	c := newTestCoordinator(t, time.Second, &fakeAdapter{kind: SourceLexical, delay: 200 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := hybridRequest()
	req.Mode = ModeKeyword
	_, err := c.Gather(ctx, req)

	assert.ErrorIs(t, err, context.Canceled)
}
