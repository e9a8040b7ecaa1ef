// Package catalog loads entity files into the stores and keeps them in
// sync when the files change.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Aman-CERP/fusionsearch/internal/errors"
	"github.com/Aman-CERP/fusionsearch/internal/store"
)

// Entity types a catalog may contain.
var validTypes = []string{"component", "doc", "resource"}

// file is the document shape of one catalog file. A bare list of entities
// is accepted too.
type file struct {
	Entities []store.Document `json:"entities" yaml:"entities"`
}

// IsCatalogFile reports whether path has a catalog extension.
func IsCatalogFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// Load reads the catalog at path. A directory is read file by file in name
// order; files without a catalog extension are skipped. The result is
// validated as a whole.
func Load(path string) ([]store.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCatalogNotFound, "catalog not found: "+path, err).
			WithSuggestion("Set sources.catalog or pass --catalog")
	}

	var files []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog directory: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() && IsCatalogFile(e.Name()) {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
	} else {
		files = []string{path}
	}

	var docs []store.Document
	for _, f := range files {
		loaded, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		docs = append(docs, loaded...)
	}

	if err := Validate(docs); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCatalogInvalid, err.Error(), err)
	}
	return docs, nil
}

// LoadFile parses one YAML or JSON catalog file.
func LoadFile(path string) ([]store.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	docs, err := Parse(data)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCatalogInvalid, "failed to parse "+path, err)
	}
	return docs, nil
}

// Parse decodes catalog data, either JSON or YAML.
func Parse(data []byte) ([]store.Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	unmarshal := yaml.Unmarshal
	if json.Valid(trimmed) {
		unmarshal = json.Unmarshal
	}

	var docs []store.Document
	if trimmed[0] == '[' || trimmed[0] == '-' {
		if err := unmarshal(trimmed, &docs); err != nil {
			return nil, err
		}
	} else {
		var f file
		if err := unmarshal(trimmed, &f); err != nil {
			return nil, err
		}
		docs = f.Entities
	}

	for i := range docs {
		normalize(&docs[i])
	}
	return docs, nil
}

// normalize trims fields and drops blank or repeated tags.
func normalize(d *store.Document) {
	d.ID = strings.TrimSpace(d.ID)
	d.Type = strings.ToLower(strings.TrimSpace(d.Type))
	d.Title = strings.TrimSpace(d.Title)
	d.Framework = strings.TrimSpace(d.Framework)
	d.Category = strings.TrimSpace(d.Category)

	tags := d.Tags[:0:0]
	for _, t := range d.Tags {
		t = strings.TrimSpace(t)
		if t != "" && !slices.Contains(tags, t) {
			tags = append(tags, t)
		}
	}
	d.Tags = tags
}

// Validate checks that every entity has an id, a title and a known type,
// that popularity is not negative and that ids are unique.
func Validate(docs []store.Document) error {
	seen := make(map[string]int, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("entity %d: id is required", i)
		}
		if prev, ok := seen[d.ID]; ok {
			return fmt.Errorf("entity %d: duplicate id %q (first at %d)", i, d.ID, prev)
		}
		seen[d.ID] = i

		if d.Title == "" {
			return fmt.Errorf("entity %q: title is required", d.ID)
		}
		if !slices.Contains(validTypes, d.Type) {
			return fmt.Errorf("entity %q: type must be one of %s", d.ID, strings.Join(validTypes, ", "))
		}
		if d.Popularity < 0 {
			return fmt.Errorf("entity %q: popularity must not be negative", d.ID)
		}
	}
	return nil
}
