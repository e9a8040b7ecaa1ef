package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search/highlight/highlighter/html"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	// CatalogTokenizerName is the identifier-aware tokenizer for catalog text.
	CatalogTokenizerName = "catalog_tokenizer"

	// CatalogStopFilterName drops DefaultStopWords.
	CatalogStopFilterName = "catalog_stop"

	// CatalogAnalyzerName analyzes prose fields.
	CatalogAnalyzerName = "catalog_analyzer"

	// FacetAnalyzerName indexes a whole field value, lowercased, as one term.
	FacetAnalyzerName = "facet_analyzer"
)

// Field boosts for lexical ranking.
const (
	titleBoost       = 3.0
	tagsBoost        = 2.0
	descriptionBoost = 1.5
)

func init() {
	_ = registry.RegisterTokenizer(CatalogTokenizerName, catalogTokenizerConstructor)
	_ = registry.RegisterTokenFilter(CatalogStopFilterName, catalogStopFilterConstructor)
}

// LexicalIndex is an in-memory bleve index over catalog documents.
type LexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	docs   map[string]Document
	closed bool
}

// NewLexicalIndex creates an empty in-memory index.
func NewLexicalIndex() (*LexicalIndex, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &LexicalIndex{
		index: idx,
		docs:  make(map[string]Document),
	}, nil
}

// createIndexMapping maps prose fields to the catalog analyzer and facet
// fields to single lowercase terms.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(CatalogAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": CatalogTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			CatalogStopFilterName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add catalog analyzer: %w", err)
	}

	err = indexMapping.AddCustomAnalyzer(FacetAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add facet analyzer: %w", err)
	}

	prose := func() *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = CatalogAnalyzerName
		f.Store = true
		f.IncludeTermVectors = true
		return f
	}
	facet := func() *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = FacetAnalyzerName
		f.Store = false
		f.IncludeTermVectors = false
		return f
	}

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("title", prose())
	doc.AddFieldMappingsAt("description", prose())
	doc.AddFieldMappingsAt("content", prose())
	doc.AddFieldMappingsAt("tags_text", prose())
	doc.AddFieldMappingsAt("type", facet())
	doc.AddFieldMappingsAt("framework", facet())
	doc.AddFieldMappingsAt("category", facet())
	doc.AddFieldMappingsAt("tags", facet())
	doc.AddFieldMappingsAt("popularity", bleve.NewNumericFieldMapping())
	doc.AddFieldMappingsAt("is_free", bleve.NewBooleanFieldMapping())
	doc.AddFieldMappingsAt("is_premium", bleve.NewBooleanFieldMapping())
	doc.AddFieldMappingsAt("has_typescript", bleve.NewBooleanFieldMapping())

	indexMapping.DefaultMapping = doc
	indexMapping.DefaultAnalyzer = CatalogAnalyzerName
	return indexMapping, nil
}

// bleveFields is the indexed form of a document.
func bleveFields(d *Document) map[string]interface{} {
	return map[string]interface{}{
		"title":          d.Title,
		"description":    d.Description,
		"content":        d.Content,
		"tags_text":      strings.Join(d.Tags, " "),
		"type":           d.Type,
		"framework":      d.Framework,
		"category":       d.Category,
		"tags":           d.Tags,
		"popularity":     d.Popularity,
		"is_free":        d.IsFree,
		"is_premium":     d.IsPremium,
		"has_typescript": d.HasTypeScript,
	}
}

// Index adds or replaces documents.
func (l *LexicalIndex) Index(_ context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}

	batch := l.index.NewBatch()
	for i := range docs {
		if err := batch.Index(docs[i].ID, bleveFields(&docs[i])); err != nil {
			return fmt.Errorf("failed to index document %s: %w", docs[i].ID, err)
		}
	}
	if err := l.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	for _, d := range docs {
		l.docs[d.ID] = d
	}
	return nil
}

// Delete removes documents by id.
func (l *LexicalIndex) Delete(_ context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}

	batch := l.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := l.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	for _, id := range ids {
		delete(l.docs, id)
	}
	return nil
}

// IDs returns the ids of all indexed documents.
func (l *LexicalIndex) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.docs))
	for id := range l.docs {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of indexed documents.
func (l *LexicalIndex) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.docs)
}

// Search returns documents matching text under filter, best first.
// Title matches are highlighted with <mark> tags.
func (l *LexicalIndex) Search(ctx context.Context, text string, filter Filter, limit int) ([]Hit, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, ErrClosed
	}
	if strings.TrimSpace(text) == "" || limit <= 0 {
		return []Hit{}, nil
	}

	fields := []struct {
		name  string
		boost float64
	}{
		{"title", titleBoost},
		{"tags_text", tagsBoost},
		{"description", descriptionBoost},
		{"content", 1.0},
	}
	matches := make([]query.Query, 0, len(fields))
	for _, f := range fields {
		m := bleve.NewMatchQuery(text)
		m.SetField(f.name)
		m.SetBoost(f.boost)
		matches = append(matches, m)
	}

	q := withFilter(bleve.NewDisjunctionQuery(matches...), filter)

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.SortBy([]string{"-_score", "_id"})
	req.Highlight = bleve.NewHighlightWithStyle(html.Name)
	req.Highlight.AddField("title")
	req.Highlight.AddField("description")

	return l.run(ctx, req)
}

// Prefix returns documents whose title has a word starting with the last
// word of text and contains every earlier word. Results are ordered by
// score, then popularity.
func (l *LexicalIndex) Prefix(ctx context.Context, text string, limit int) ([]Hit, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, ErrClosed
	}

	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 || limit <= 0 {
		return []Hit{}, nil
	}

	last := words[len(words)-1]
	prefix := bleve.NewPrefixQuery(last)
	prefix.SetField("title")

	var q query.Query = prefix
	if len(words) > 1 {
		head := bleve.NewMatchQuery(strings.Join(words[:len(words)-1], " "))
		head.SetField("title")
		head.SetOperator(query.MatchQueryOperatorAnd)
		q = bleve.NewConjunctionQuery(head, prefix)
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.SortBy([]string{"-_score", "-popularity", "_id"})

	return l.run(ctx, req)
}

func (l *LexicalIndex) run(ctx context.Context, req *bleve.SearchRequest) ([]Hit, error) {
	result, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, h := range result.Hits {
		doc, ok := l.docs[h.ID]
		if !ok {
			continue
		}
		hit := Hit{Doc: doc, Score: h.Score}
		for _, field := range []string{"title", "description"} {
			if frags := h.Fragments[field]; len(frags) > 0 && strings.Contains(frags[0], "<mark>") {
				hit.Highlight = frags[0]
				break
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// withFilter narrows q with one term or bool query per filter field.
func withFilter(q query.Query, f Filter) query.Query {
	conjuncts := []query.Query{q}

	term := func(field, value string) {
		if value == "" {
			return
		}
		t := bleve.NewTermQuery(strings.ToLower(value))
		t.SetField(field)
		conjuncts = append(conjuncts, t)
	}
	flag := func(field string, value *bool) {
		if value == nil {
			return
		}
		b := bleve.NewBoolFieldQuery(*value)
		b.SetField(field)
		conjuncts = append(conjuncts, b)
	}

	term("type", f.Type)
	term("framework", f.Framework)
	term("category", f.Category)
	for _, tag := range f.Tags {
		term("tags", tag)
	}
	flag("is_free", f.IsFree)
	flag("is_premium", f.IsPremium)
	flag("has_typescript", f.HasTypeScript)

	if len(conjuncts) == 1 {
		return q
	}
	return bleve.NewConjunctionQuery(conjuncts...)
}

// Close closes the index.
func (l *LexicalIndex) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.index.Close()
}

// catalogTokenizerConstructor creates the catalog tokenizer for bleve.
func catalogTokenizerConstructor(_ map[string]interface{}, _ *registry.Cache) (analysis.Tokenizer, error) {
	return &catalogTokenizer{}, nil
}

// catalogTokenizer implements analysis.Tokenizer with identifier splitting.
type catalogTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *catalogTokenizer) Tokenize(input []byte) analysis.TokenStream {
	spans := tokenSpans(string(input))
	result := make(analysis.TokenStream, 0, len(spans))
	for i, s := range spans {
		result = append(result, &analysis.Token{
			Term:     []byte(s.term),
			Start:    s.start,
			End:      s.end,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
	}
	return result
}

// catalogStopFilterConstructor creates the stop word filter for bleve.
func catalogStopFilterConstructor(_ map[string]interface{}, _ *registry.Cache) (analysis.TokenFilter, error) {
	return &catalogStopFilter{stopWords: BuildStopWordMap(DefaultStopWords)}, nil
}

// catalogStopFilter implements analysis.TokenFilter.
type catalogStopFilter struct {
	stopWords map[string]struct{}
}

// Filter implements analysis.TokenFilter.
func (f *catalogStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		if _, isStop := f.stopWords[strings.ToLower(string(token.Term))]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
