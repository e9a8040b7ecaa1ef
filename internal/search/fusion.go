package search

import (
	"errors"
	"sort"
)

// ErrNoSources is returned by Fuse when no source was consulted at all.
var ErrNoSources = errors.New("no sources to fuse")

// sourceState is one source's normalized view of its hits.
type sourceState struct {
	kind   SourceKind
	weight float64
	best   map[string]SourceHit
	norm   map[string]float64
}

// WeightsFor returns the effective weight of each source for mode.
//
// Keyword and semantic modes weight their single source at 1.0. Hybrid uses
// the configured lexical and vector weights. Relational hits only count when
// lexical and vector returned nothing.
func WeightsFor(mode Mode, configured Weights, hits map[SourceKind][]SourceHit) map[SourceKind]float64 {
	primary := len(hits[SourceLexical]) + len(hits[SourceVector])

	w := make(map[SourceKind]float64, 3)
	switch mode {
	case ModeKeyword:
		w[SourceLexical] = 1.0
	case ModeSemantic:
		w[SourceVector] = 1.0
	default:
		w[SourceLexical] = configured.Lexical
		w[SourceVector] = configured.Vector
	}
	if primary == 0 {
		w[SourceRelational] = configured.Relational
	}
	return w
}

// Fuse merges per-source hits into one ranked list with one result per entity.
//
// Each source's scores are min-max scaled to [0,1] independently. An entity's
// blended score is the weighted mean of its normalized scores over the
// sources that returned it. Sources with zero weight for mode are ignored.
// Results are ordered by blended score, then popularity, then highlight
// presence, then entity id.
func Fuse(hits map[SourceKind][]SourceHit, mode Mode, weights Weights) ([]FusedResult, error) {
	if len(hits) == 0 {
		return nil, ErrNoSources
	}

	effective := WeightsFor(mode, weights, hits)

	kinds := make([]SourceKind, 0, len(hits))
	for k := range hits {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		return sourceRank(kinds[i]) < sourceRank(kinds[j])
	})

	states := make([]sourceState, 0, len(kinds))
	for _, k := range kinds {
		w := effective[k]
		if w <= 0 || len(hits[k]) == 0 {
			continue
		}
		states = append(states, normalizeSource(k, w, hits[k]))
	}

	byID := make(map[string]*FusedResult)
	weightSum := make(map[string]float64)
	order := make([]string, 0)

	for _, st := range states {
		for id, n := range st.norm {
			r, ok := byID[id]
			if !ok {
				r = &FusedResult{
					EntityID:         id,
					NormalizedScores: make(map[SourceKind]float64, len(states)),
				}
				byID[id] = r
				order = append(order, id)
			}
			hit := st.best[id]
			r.NormalizedScores[st.kind] = n
			r.Sources = append(r.Sources, st.kind)
			r.BlendedScore += st.weight * n
			weightSum[id] += st.weight
			if n > r.NormalizedScore {
				r.NormalizedScore = n
			}
			mergeDisplay(r, hit)
		}
	}

	results := make([]FusedResult, 0, len(order))
	for _, id := range order {
		r := byID[id]
		if sum := weightSum[id]; sum > 0 {
			r.BlendedScore /= sum
		}
		results = append(results, *r)
	}

	sort.Slice(results, func(i, j int) bool {
		return less(&results[i], &results[j])
	})
	return results, nil
}

// normalizeSource keeps the best raw score per entity and min-max scales it.
func normalizeSource(kind SourceKind, weight float64, hits []SourceHit) sourceState {
	st := sourceState{
		kind:   kind,
		weight: weight,
		best:   make(map[string]SourceHit, len(hits)),
		norm:   make(map[string]float64, len(hits)),
	}
	for _, h := range hits {
		if h.EntityID == "" {
			continue
		}
		h.Source = kind
		if prev, ok := st.best[h.EntityID]; !ok || h.RawScore > prev.RawScore {
			st.best[h.EntityID] = h
		}
	}
	if len(st.best) == 0 {
		return st
	}

	lo, hi := 0.0, 0.0
	first := true
	for _, h := range st.best {
		if first {
			lo, hi = h.RawScore, h.RawScore
			first = false
			continue
		}
		lo = min(lo, h.RawScore)
		hi = max(hi, h.RawScore)
	}

	for id, h := range st.best {
		if hi == lo {
			st.norm[id] = 1.0
			continue
		}
		st.norm[id] = (h.RawScore - lo) / (hi - lo)
	}
	return st
}

// mergeDisplay folds a source hit's highlight and payload into r.
// Sources are visited lexical first, so the lexical highlight wins and
// payload ties keep the earlier source.
func mergeDisplay(r *FusedResult, hit SourceHit) {
	if r.Highlight == "" && hit.Highlight != "" {
		r.Highlight = hit.Highlight
	}
	if hit.Payload != nil && hit.Payload.completeness() > r.Payload.completeness() {
		r.Payload = hit.Payload
	}
}

// less implements the deterministic result order.
//
// Priority:
//  1. Higher blended score
//  2. Higher popularity
//  3. Highlight present
//  4. Lexicographically smaller entity id
func less(a, b *FusedResult) bool {
	if a.BlendedScore != b.BlendedScore {
		return a.BlendedScore > b.BlendedScore
	}
	if pa, pb := popularity(a), popularity(b); pa != pb {
		return pa > pb
	}
	if ha, hb := a.Highlight != "", b.Highlight != ""; ha != hb {
		return ha
	}
	return a.EntityID < b.EntityID
}

func popularity(r *FusedResult) float64 {
	if r.Payload == nil {
		return 0
	}
	return r.Payload.Popularity
}

// Paginate returns the page-th window of limit results.
// A page past the end yields an empty, non-nil slice.
func Paginate(results []FusedResult, limit, page int) []FusedResult {
	if limit < 1 {
		limit = DefaultLimit
	}
	if page < 0 {
		page = 0
	}
	if page >= (len(results)+limit-1)/limit {
		return []FusedResult{}
	}
	start := page * limit
	end := min(start+limit, len(results))
	return results[start:end]
}
