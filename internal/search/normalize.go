package search

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"

	apperrors "github.com/Aman-CERP/fusionsearch/internal/errors"
)

// Request bounds.
const (
	MaxQueryLength      = 200
	MinSuggestLength    = 2
	DefaultLimit        = 20
	MaxLimit            = 100
	DefaultSuggestLimit = 8
	MaxSuggestLimit     = 20

	// MaxResultWindow is how deep into a ranking pages can reach. Sources
	// supply at most this many candidates, so later pages are empty.
	MaxResultWindow = 500
)

// Normalizer validates and canonicalizes requests so that equivalent
// requests produce identical cache keys.
type Normalizer struct {
	DefaultLimit int
	SuggestLimit int
}

// NewNormalizer returns a Normalizer with the given defaults, falling back
// to DefaultLimit and DefaultSuggestLimit when they are out of range.
func NewNormalizer(defaultLimit, suggestLimit int) Normalizer {
	if defaultLimit < 1 || defaultLimit > MaxLimit {
		defaultLimit = DefaultLimit
	}
	if suggestLimit < 1 || suggestLimit > MaxSuggestLimit {
		suggestLimit = DefaultSuggestLimit
	}
	return Normalizer{DefaultLimit: defaultLimit, SuggestLimit: suggestLimit}
}

// Normalize turns raw into a canonical SearchRequest.
// It fails with an InvalidParameter error for an empty or overlong query
// and for unknown scope or mode values.
func (n Normalizer) Normalize(raw RawRequest) (SearchRequest, error) {
	query := foldQuery(raw.Query)
	if query == "" {
		return SearchRequest{}, apperrors.InvalidParameter("query", "query must not be empty")
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return SearchRequest{}, apperrors.InvalidParameter("query",
			fmt.Sprintf("query must be at most %d characters", MaxQueryLength))
	}

	scope, err := parseScope(raw.Scope)
	if err != nil {
		return SearchRequest{}, err
	}
	mode, err := ParseMode(raw.Mode)
	if err != nil {
		return SearchRequest{}, err
	}

	limit := clamp(raw.Limit, n.DefaultLimit, MaxLimit)
	return SearchRequest{
		Query: query,
		Scope: scope,
		Mode:  mode,
		Filters: Filters{
			Framework:     foldField(raw.Framework),
			Category:      foldField(raw.Category),
			Tags:          canonicalTags(raw.Tags),
			IsFree:        raw.IsFree,
			IsPremium:     raw.IsPremium,
			HasTypeScript: raw.HasTypeScript,
		},
		Limit: limit,
		Page:  min(max(raw.Page, 0), MaxResultWindow/limit),
	}, nil
}

// NormalizeSuggestion canonicalizes a typeahead request.
// ok is false when the query is shorter than MinSuggestLength; the caller
// answers with no suggestions rather than an error.
func (n Normalizer) NormalizeSuggestion(raw SuggestRequest) (req SuggestRequest, ok bool, err error) {
	query := foldQuery(raw.Query)
	length := utf8.RuneCountInString(query)
	if length < MinSuggestLength {
		return SuggestRequest{Query: query}, false, nil
	}
	if length > MaxQueryLength {
		return SuggestRequest{}, false, apperrors.InvalidParameter("query",
			fmt.Sprintf("query must be at most %d characters", MaxQueryLength))
	}
	return SuggestRequest{
		Query: query,
		Limit: clamp(raw.Limit, n.SuggestLimit, MaxSuggestLimit),
	}, true, nil
}

// ParseMode parses a mode name; "" means hybrid.
func ParseMode(s string) (Mode, error) {
	switch Mode(foldField(s)) {
	case "":
		return ModeHybrid, nil
	case ModeKeyword:
		return ModeKeyword, nil
	case ModeSemantic:
		return ModeSemantic, nil
	case ModeHybrid:
		return ModeHybrid, nil
	default:
		return "", apperrors.InvalidParameter("mode",
			fmt.Sprintf("unknown mode %q (expected keyword, semantic or hybrid)", s))
	}
}

func parseScope(s string) (Scope, error) {
	switch Scope(foldField(s)) {
	case "":
		return ScopeAll, nil
	case ScopeAll:
		return ScopeAll, nil
	case ScopeComponents:
		return ScopeComponents, nil
	case ScopeDocs:
		return ScopeDocs, nil
	case ScopeResources:
		return ScopeResources, nil
	default:
		return "", apperrors.InvalidParameter("scope",
			fmt.Sprintf("unknown scope %q (expected all, components, docs or resources)", s))
	}
}

// foldQuery trims, case-folds and collapses internal whitespace.
func foldQuery(s string) string {
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}

func foldField(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// canonicalTags folds, sorts and deduplicates tags, dropping blanks.
func canonicalTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = foldField(t); t != "" {
			out = append(out, t)
		}
	}
	sort.Strings(out)

	deduped := out[:0]
	for _, t := range out {
		if len(deduped) == 0 || t != deduped[len(deduped)-1] {
			deduped = append(deduped, t)
		}
	}
	if len(deduped) == 0 {
		return nil
	}
	return deduped
}

// clamp maps 0 to def and everything else into [1, hi].
func clamp(v, def, hi int) int {
	switch {
	case v == 0:
		return def
	case v < 1:
		return 1
	case v > hi:
		return hi
	default:
		return v
	}
}
