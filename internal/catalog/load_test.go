package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aman-CERP/fusionsearch/internal/errors"
)

const yamlCatalog = `entities:
  - id: c1
    type: component
    title: Data Table
    description: Sortable table with pagination
    framework: React
    tags: [table, " grid ", table, ""]
    popularity: 90
    is_free: true
  - id: d1
    type: Doc
    title: Getting started
`

const jsonCatalog = `[
	{"id": "r1", "type": "resource", "title": "Icon pack", "is_premium": true, "popularity": 5}
]`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParse_YAMLDocument(t *testing.T) {
	// When: parsing a YAML catalog with an entities key
	docs, err := Parse([]byte(yamlCatalog))

	// Then: fields are decoded and normalized
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Data Table", docs[0].Title)
	assert.Equal(t, []string{"table", "grid"}, docs[0].Tags)
	assert.Equal(t, 90.0, docs[0].Popularity)
	assert.True(t, docs[0].IsFree)
	assert.Equal(t, "doc", docs[1].Type)
}

func TestParse_JSONList(t *testing.T) {
	docs, err := Parse([]byte(jsonCatalog))

	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "r1", docs[0].ID)
	assert.True(t, docs[0].IsPremium)
	assert.Equal(t, 5.0, docs[0].Popularity)
}

func TestParse_EmptyAndInvalid(t *testing.T) {
	docs, err := Parse([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = Parse([]byte("entities: [unclosed"))
	assert.Error(t, err)
}

func TestLoad_DirectoryMergesFilesInOrder(t *testing.T) {
	// Given: a directory with two catalog files and an unrelated file
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", yamlCatalog)
	writeFile(t, dir, "b.json", jsonCatalog)
	writeFile(t, dir, "README.md", "not a catalog")

	// When: loading the directory
	docs, err := Load(dir)

	// Then: entities from both files are returned
	require.NoError(t, err)
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	assert.Equal(t, []string{"c1", "d1", "r1"}, ids)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "catalog not found")
	assert.Equal(t, apperrors.ErrCodeCatalogNotFound, apperrors.GetCode(err))

	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", yamlCatalog)
	writeFile(t, dir, "b.yaml", yamlCatalog)
	_, err = Load(dir)
	assert.ErrorContains(t, err, "duplicate id")
	assert.Equal(t, apperrors.ErrCodeCatalogInvalid, apperrors.GetCode(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing id", `[{"type": "doc", "title": "x"}]`, "id is required"},
		{"missing title", `[{"id": "a", "type": "doc"}]`, "title is required"},
		{"unknown type", `[{"id": "a", "type": "video", "title": "x"}]`, "type must be one of"},
		{"negative popularity", `[{"id": "a", "type": "doc", "title": "x", "popularity": -1}]`, "popularity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := Parse([]byte(tt.content))
			require.NoError(t, err)
			assert.ErrorContains(t, Validate(docs), tt.wantErr)
		})
	}
}

func TestIsCatalogFile(t *testing.T) {
	assert.True(t, IsCatalogFile("catalog.YAML"))
	assert.True(t, IsCatalogFile("x.yml"))
	assert.True(t, IsCatalogFile("x.json"))
	assert.False(t, IsCatalogFile("x.md"))
}
