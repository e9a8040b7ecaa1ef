// Package store holds the reference backends behind the source adapters:
// a bleve lexical index, an HNSW vector index, a SQL relational table and a
// Redis response cache.
package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrClosed is returned by any store used after Close.
var ErrClosed = errors.New("store is closed")

// Document is one catalog entity as the stores index it.
type Document struct {
	ID            string   `json:"id" yaml:"id"`
	Type          string   `json:"type" yaml:"type"`
	Title         string   `json:"title" yaml:"title"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
	Content       string   `json:"content,omitempty" yaml:"content,omitempty"`
	Framework     string   `json:"framework,omitempty" yaml:"framework,omitempty"`
	Category      string   `json:"category,omitempty" yaml:"category,omitempty"`
	Tags          []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Popularity    float64  `json:"popularity,omitempty" yaml:"popularity,omitempty"`
	IsFree        bool     `json:"is_free,omitempty" yaml:"is_free,omitempty"`
	IsPremium     bool     `json:"is_premium,omitempty" yaml:"is_premium,omitempty"`
	HasTypeScript bool     `json:"has_typescript,omitempty" yaml:"has_typescript,omitempty"`
}

// Text is the document's searchable prose, used for embedding.
func (d *Document) Text() string {
	parts := make([]string, 0, 4)
	for _, s := range []string{d.Title, d.Description, strings.Join(d.Tags, " "), d.Content} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// Filter narrows a query to matching documents. Empty fields match anything.
// String values are compared case-insensitively; every tag must be present.
type Filter struct {
	Type          string
	Framework     string
	Category      string
	Tags          []string
	IsFree        *bool
	IsPremium     *bool
	HasTypeScript *bool
}

// Match reports whether d satisfies f.
func (f Filter) Match(d *Document) bool {
	if f.Type != "" && !strings.EqualFold(d.Type, f.Type) {
		return false
	}
	if f.Framework != "" && !strings.EqualFold(d.Framework, f.Framework) {
		return false
	}
	if f.Category != "" && !strings.EqualFold(d.Category, f.Category) {
		return false
	}
	for _, want := range f.Tags {
		found := false
		for _, have := range d.Tags {
			if strings.EqualFold(have, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.IsFree != nil && d.IsFree != *f.IsFree {
		return false
	}
	if f.IsPremium != nil && d.IsPremium != *f.IsPremium {
		return false
	}
	if f.HasTypeScript != nil && d.HasTypeScript != *f.HasTypeScript {
		return false
	}
	return true
}

// Hit is one scored document. Scores are only comparable within one store.
type Hit struct {
	Doc       Document
	Score     float64
	Highlight string
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (rebuild the vector index)", e.Expected, e.Got)
}
