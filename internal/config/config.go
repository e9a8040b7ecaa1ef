package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/fusionsearch/internal/logging"
)

// ProjectFileName is the per-directory configuration file.
const ProjectFileName = ".fusionsearch.yaml"

// Config is the complete fusionsearch configuration.
type Config struct {
	Version int            `yaml:"version" json:"version"`
	Search  SearchConfig   `yaml:"search" json:"search"`
	Cache   CacheConfig    `yaml:"cache" json:"cache"`
	Sources SourcesConfig  `yaml:"sources" json:"sources"`
	Server  ServerConfig   `yaml:"server" json:"server"`
	Logging logging.Config `yaml:"logging" json:"logging"`
}

// SearchConfig configures fan-out deadlines and fusion weights.
// Weights can be tuned per user, per project, or with
// FUSIONSEARCH_LEXICAL_WEIGHT / FUSIONSEARCH_VECTOR_WEIGHT.
type SearchConfig struct {
	// Deadline is the shared budget for one fan-out (e.g. "800ms").
	Deadline string `yaml:"deadline" json:"deadline"`

	// SuggestDeadline is the budget for the typeahead adapter call.
	SuggestDeadline string `yaml:"suggest_deadline" json:"suggest_deadline"`

	// LexicalWeight is the hybrid-mode weight of the lexical source.
	LexicalWeight float64 `yaml:"lexical_weight" json:"lexical_weight"`

	// VectorWeight is the hybrid-mode weight of the vector source.
	VectorWeight float64 `yaml:"vector_weight" json:"vector_weight"`

	// RelationalWeight applies only when lexical and vector found nothing.
	RelationalWeight float64 `yaml:"relational_weight" json:"relational_weight"`

	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
	SuggestLimit int `yaml:"suggest_limit" json:"suggest_limit"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	// Backend is "memory", "redis" or "none".
	Backend string `yaml:"backend" json:"backend"`

	// Size is the entry capacity of the in-process cache.
	Size int `yaml:"size" json:"size"`

	TTLGeneral string `yaml:"ttl_general" json:"ttl_general"`
	TTLDocs    string `yaml:"ttl_docs" json:"ttl_docs"`
	TTLSuggest string `yaml:"ttl_suggest" json:"ttl_suggest"`

	Redis RedisConfig `yaml:"redis" json:"redis"`
}

// RedisConfig configures the shared cache backend.
type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password,omitempty" json:"-"`
	DB        int    `yaml:"db" json:"db"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
	// Timeout bounds each cache round trip so a slow Redis is bypassed quickly.
	Timeout string `yaml:"timeout" json:"timeout"`
}

// SourcesConfig configures the bundled source adapters.
type SourcesConfig struct {
	// Catalog is a YAML or JSON file of entities to index.
	Catalog string `yaml:"catalog" json:"catalog"`

	// RelationalDriver is "sqlite" or "postgres".
	RelationalDriver string `yaml:"relational_driver" json:"relational_driver"`

	// RelationalDSN is the database to query. Empty means an in-memory
	// SQLite database seeded from the catalog.
	RelationalDSN string `yaml:"relational_dsn,omitempty" json:"-"`

	EmbeddingDimensions int `yaml:"embedding_dimensions" json:"embedding_dimensions"`

	Breaker BreakerConfig `yaml:"breaker" json:"breaker"`
}

// BreakerConfig configures the per-adapter circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the consecutive failures that open the breaker. 0 disables it.
	MaxFailures int    `yaml:"max_failures" json:"max_failures"`
	OpenTimeout string `yaml:"open_timeout" json:"open_timeout"`
}

// ServerConfig configures `fusionsearch serve`.
type ServerConfig struct {
	// Transport is "stdio" or "http".
	Transport string `yaml:"transport" json:"transport"`
	Addr      string `yaml:"addr" json:"addr"`

	// MetricsAddr serves Prometheus /metrics when set.
	MetricsAddr string `yaml:"metrics_addr,omitempty" json:"metrics_addr,omitempty"`
}

// NewConfig returns a Config with defaults applied.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Search: SearchConfig{
			Deadline:         "800ms",
			SuggestDeadline:  "200ms",
			LexicalWeight:    0.5,
			VectorWeight:     0.5,
			RelationalWeight: 0.3,
			DefaultLimit:     20,
			SuggestLimit:     8,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			Size:       1000,
			TTLGeneral: "5m",
			TTLDocs:    "10m",
			TTLSuggest: "5m",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "fusionsearch:",
				Timeout:   "50ms",
			},
		},
		Sources: SourcesConfig{
			RelationalDriver:    "sqlite",
			EmbeddingDimensions: 256,
			Breaker: BreakerConfig{
				MaxFailures: 5,
				OpenTimeout: "30s",
			},
		},
		Server: ServerConfig{
			Transport: "stdio",
			Addr:      "127.0.0.1:8765",
		},
		Logging: logging.DefaultConfig(),
	}
}

// GetUserConfigPath returns the user configuration file.
// It follows the XDG Base Directory layout:
//   - $XDG_CONFIG_HOME/fusionsearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/fusionsearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fusionsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "fusionsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "fusionsearch", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	_, err := os.Stat(GetUserConfigPath())
	return err == nil
}

// Load loads configuration for the given directory.
// Sources apply in increasing precedence:
//  1. Defaults
//  2. User config (~/.config/fusionsearch/config.yaml)
//  3. Project config (.fusionsearch.yaml in dir)
//  4. Environment variables (FUSIONSEARCH_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if UserConfigExists() {
		if err := cfg.loadYAML(GetUserConfigPath()); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	projectPath := filepath.Join(dir, ProjectFileName)
	if _, err := os.Stat(projectPath); err == nil {
		if err := cfg.loadYAML(projectPath); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile loads defaults overlaid with one explicit file and the environment.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	s, o := &c.Search, other.Search
	setString(&s.Deadline, o.Deadline)
	setString(&s.SuggestDeadline, o.SuggestDeadline)
	setFloat(&s.LexicalWeight, o.LexicalWeight)
	setFloat(&s.VectorWeight, o.VectorWeight)
	setFloat(&s.RelationalWeight, o.RelationalWeight)
	setInt(&s.DefaultLimit, o.DefaultLimit)
	setInt(&s.SuggestLimit, o.SuggestLimit)

	cc, oc := &c.Cache, other.Cache
	setString(&cc.Backend, oc.Backend)
	setInt(&cc.Size, oc.Size)
	setString(&cc.TTLGeneral, oc.TTLGeneral)
	setString(&cc.TTLDocs, oc.TTLDocs)
	setString(&cc.TTLSuggest, oc.TTLSuggest)
	setString(&cc.Redis.Addr, oc.Redis.Addr)
	setString(&cc.Redis.Password, oc.Redis.Password)
	setInt(&cc.Redis.DB, oc.Redis.DB)
	setString(&cc.Redis.KeyPrefix, oc.Redis.KeyPrefix)
	setString(&cc.Redis.Timeout, oc.Redis.Timeout)

	sc, so := &c.Sources, other.Sources
	setString(&sc.Catalog, so.Catalog)
	setString(&sc.RelationalDriver, so.RelationalDriver)
	setString(&sc.RelationalDSN, so.RelationalDSN)
	setInt(&sc.EmbeddingDimensions, so.EmbeddingDimensions)
	setInt(&sc.Breaker.MaxFailures, so.Breaker.MaxFailures)
	setString(&sc.Breaker.OpenTimeout, so.Breaker.OpenTimeout)

	setString(&c.Server.Transport, other.Server.Transport)
	setString(&c.Server.Addr, other.Server.Addr)
	setString(&c.Server.MetricsAddr, other.Server.MetricsAddr)

	lc, ol := &c.Logging, other.Logging
	setString(&lc.Level, ol.Level)
	setString(&lc.FilePath, ol.FilePath)
	setInt(&lc.MaxSizeMB, ol.MaxSizeMB)
	setInt(&lc.MaxFiles, ol.MaxFiles)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

// applyEnvOverrides applies FUSIONSEARCH_* environment variable overrides.
// Weights may be set to an explicit zero here, unlike in YAML.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FUSIONSEARCH_DEADLINE"); v != "" {
		c.Search.Deadline = v
	}
	if v := os.Getenv("FUSIONSEARCH_LEXICAL_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.LexicalWeight = w
		}
	}
	if v := os.Getenv("FUSIONSEARCH_VECTOR_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.VectorWeight = w
		}
	}
	if v := os.Getenv("FUSIONSEARCH_CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("FUSIONSEARCH_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Cache.Size = n
		}
	}
	if v := os.Getenv("FUSIONSEARCH_REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("FUSIONSEARCH_REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
	if v := os.Getenv("FUSIONSEARCH_CATALOG"); v != "" {
		c.Sources.Catalog = v
	}
	if v := os.Getenv("FUSIONSEARCH_RELATIONAL_DRIVER"); v != "" {
		c.Sources.RelationalDriver = v
	}
	if v := os.Getenv("FUSIONSEARCH_RELATIONAL_DSN"); v != "" {
		c.Sources.RelationalDSN = v
	}
	if v := os.Getenv("FUSIONSEARCH_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("FUSIONSEARCH_METRICS_ADDR"); v != "" {
		c.Server.MetricsAddr = v
	}
	if v := os.Getenv("FUSIONSEARCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	durations := []struct {
		name, value string
	}{
		{"search.deadline", c.Search.Deadline},
		{"search.suggest_deadline", c.Search.SuggestDeadline},
		{"cache.ttl_general", c.Cache.TTLGeneral},
		{"cache.ttl_docs", c.Cache.TTLDocs},
		{"cache.ttl_suggest", c.Cache.TTLSuggest},
		{"cache.redis.timeout", c.Cache.Redis.Timeout},
		{"sources.breaker.open_timeout", c.Sources.Breaker.OpenTimeout},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%s must be a duration, got %q", d.name, d.value)
		}
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}

	weights := []struct {
		name  string
		value float64
	}{
		{"search.lexical_weight", c.Search.LexicalWeight},
		{"search.vector_weight", c.Search.VectorWeight},
		{"search.relational_weight", c.Search.RelationalWeight},
	}
	for _, w := range weights {
		if w.value < 0 || w.value > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %f", w.name, w.value)
		}
	}
	if c.Search.LexicalWeight+c.Search.VectorWeight == 0 {
		return fmt.Errorf("search.lexical_weight and search.vector_weight cannot both be zero")
	}

	if c.Search.DefaultLimit < 1 || c.Search.DefaultLimit > 100 {
		return fmt.Errorf("search.default_limit must be between 1 and 100, got %d", c.Search.DefaultLimit)
	}
	if c.Search.SuggestLimit < 1 || c.Search.SuggestLimit > 20 {
		return fmt.Errorf("search.suggest_limit must be between 1 and 20, got %d", c.Search.SuggestLimit)
	}

	switch strings.ToLower(c.Cache.Backend) {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("cache.backend must be 'memory', 'redis' or 'none', got %s", c.Cache.Backend)
	}
	if c.Cache.Size < 1 {
		return fmt.Errorf("cache.size must be positive, got %d", c.Cache.Size)
	}

	switch strings.ToLower(c.Sources.RelationalDriver) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("sources.relational_driver must be 'sqlite' or 'postgres', got %s", c.Sources.RelationalDriver)
	}
	if c.Sources.RelationalDriver == "postgres" && c.Sources.RelationalDSN == "" {
		return fmt.Errorf("sources.relational_dsn is required for the postgres driver")
	}
	if c.Sources.EmbeddingDimensions < 16 {
		return fmt.Errorf("sources.embedding_dimensions must be at least 16, got %d", c.Sources.EmbeddingDimensions)
	}
	if c.Sources.Breaker.MaxFailures < 0 {
		return fmt.Errorf("sources.breaker.max_failures must be non-negative, got %d", c.Sources.Breaker.MaxFailures)
	}

	switch strings.ToLower(c.Server.Transport) {
	case "stdio", "http":
	default:
		return fmt.Errorf("server.transport must be 'stdio' or 'http', got %s", c.Server.Transport)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// Duration parses a validated duration field, falling back to def.
func Duration(value string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
