package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aman-CERP/fusionsearch/internal/errors"
	"github.com/Aman-CERP/fusionsearch/internal/search"
)

const testCatalog = `entities:
  - id: c1
    type: component
    title: Data Table
    description: Sortable data table with pagination
    framework: react
    tags: [table, grid]
    popularity: 90
    is_free: true
  - id: c2
    type: component
    title: Date Picker
    description: Pick a date from a calendar
    framework: vue
    popularity: 50
    is_premium: true
  - id: d1
    type: doc
    title: Installation guide
    description: How to install the library
    popularity: 10
`

// testEnv isolates a command run from user config and state.
type testEnv struct {
	config  string
	catalog string
}

func newTestEnv(t *testing.T, extraConfig string) testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))

	env := testEnv{
		config:  filepath.Join(dir, "fusionsearch.yaml"),
		catalog: filepath.Join(dir, "catalog.yaml"),
	}
	require.NoError(t, os.WriteFile(env.config, []byte("version: 1\n"+extraConfig), 0o644))
	require.NoError(t, os.WriteFile(env.catalog, []byte(testCatalog), 0o644))
	return env
}

// run executes the root command and returns stdout.
func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(args, "--config", e.config, "--catalog", e.catalog))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSearchCmd_KeywordJSON(t *testing.T) {
	// Given: a catalog on disk
	env := newTestEnv(t, "")

	// When: searching in keyword mode
	out, err := env.run(t, "search", "data", "table", "--mode", "keyword", "--json")

	// Then: the best title match comes first
	require.NoError(t, err)
	var resp search.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "c1", resp.Results[0].EntityID)
	assert.Equal(t, search.ModeKeyword, resp.SearchMode)
	assert.False(t, resp.Degraded)
}

func TestSearchCmd_Filters(t *testing.T) {
	// Given: a catalog with one premium entity
	env := newTestEnv(t, "")

	// When: searching with --premium
	out, err := env.run(t, "search", "date", "--premium", "--json")

	// Then: only premium entities are returned
	require.NoError(t, err)
	var resp search.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		require.NotNil(t, r.Payload)
		assert.True(t, r.Payload.IsPremium, r.EntityID)
	}
}

func TestSearchCmd_FlagsOnlyWhenChanged(t *testing.T) {
	// Given: a search command with --free=false given and --premium absent
	cmd := newSearchCmd(&globalOptions{})
	require.NoError(t, cmd.ParseFlags([]string{"--free=false", "--tag", "a", "--tag", "b"}))

	var opts searchOptions
	opts.free, _ = cmd.Flags().GetBool("free")
	opts.tags, _ = cmd.Flags().GetStringSlice("tag")

	// When: building the request
	raw := opts.rawRequest(cmd, "q")

	// Then: only the given flag becomes a filter
	require.NotNil(t, raw.IsFree)
	assert.False(t, *raw.IsFree)
	assert.Nil(t, raw.IsPremium)
	assert.Equal(t, []string{"a", "b"}, raw.Tags)
}

func TestSearchCmd_InvalidMode(t *testing.T) {
	// Given: a catalog on disk
	env := newTestEnv(t, "")

	// When: searching with an unknown mode
	_, err := env.run(t, "search", "table", "--mode", "fuzzy")

	// Then: an invalid parameter error is returned
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidParameter, apperrors.GetCode(err))
}

func TestSearchCmd_CacheBackends(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{"none", "cache:\n  backend: none\n"},
		{"unreachable redis is bypassed", "cache:\n  backend: redis\n  redis:\n    addr: 127.0.0.1:1\n    timeout: 20ms\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a cache backend other than memory
			env := newTestEnv(t, tt.config)

			// When: searching
			out, err := env.run(t, "search", "table", "--mode", "keyword", "--json")

			// Then: the search still succeeds uncached
			require.NoError(t, err)
			var resp search.SearchResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.NotEmpty(t, resp.Results)
			assert.False(t, resp.Cached)
		})
	}
}

func TestSuggestCmd(t *testing.T) {
	// Given: a catalog on disk
	env := newTestEnv(t, "")

	// When: asking for suggestions
	out, err := env.run(t, "suggest", "dat", "--json")

	// Then: both titles starting with "dat" are suggested
	require.NoError(t, err)
	var resp search.SuggestResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	ids := make([]string, 0, len(resp.Suggestions))
	for _, s := range resp.Suggestions {
		ids = append(ids, s.EntityID)
	}
	assert.ElementsMatch(t, []string{"c1", "c2"}, ids)
}

func TestValidateCmd(t *testing.T) {
	// Given: a catalog on disk
	env := newTestEnv(t, "")

	// When: validating it
	out, err := env.run(t, "validate", "--json")

	// Then: entities are counted by type
	require.NoError(t, err)
	var res validateResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 3, res.Entities)
	assert.Equal(t, map[string]int{"component": 2, "doc": 1}, res.ByType)
}

func TestValidateCmd_InvalidCatalog(t *testing.T) {
	// Given: a catalog with a missing title
	env := newTestEnv(t, "")
	require.NoError(t, os.WriteFile(env.catalog, []byte("- id: x\n  type: doc\n"), 0o644))

	// When: validating it
	_, err := env.run(t, "validate")

	// Then: the catalog is rejected
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeCatalogInvalid, apperrors.GetCode(err))
}

func TestConfigShow_Defaults(t *testing.T) {
	// Given: an isolated environment
	env := newTestEnv(t, "")

	// When: showing defaults as JSON
	out, err := env.run(t, "config", "show", "--defaults", "--json")

	// Then: default sections are present
	require.NoError(t, err)
	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Contains(t, cfg, "search")
	assert.Contains(t, cfg, "cache")
}

func TestConfigInit_WritesUserConfig(t *testing.T) {
	// Given: an isolated environment without user config
	env := newTestEnv(t, "")

	// When: running config init twice, the second time with --force
	_, err := env.run(t, "config", "init")
	require.NoError(t, err)
	_, err = env.run(t, "config", "init", "--force")
	require.NoError(t, err)

	// Then: the config and one backup exist
	path := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "fusionsearch", "config.yaml")
	assert.FileExists(t, path)
	backups, err := filepath.Glob(path + ".bak.*")
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	// Given: --config pointing at a missing file
	opts := &globalOptions{configPath: filepath.Join(t.TempDir(), "missing.yaml")}

	// When: loading configuration
	_, err := opts.loadConfig()

	// Then: the error says the config was not found
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeConfigNotFound, apperrors.GetCode(err))
}
