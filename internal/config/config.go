package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the full server configuration. Every field has a working
// default; a missing config file is not an error.
type Config struct {
	DBPath string `toml:"db_path"`

	Archive   ArchiveConfig   `toml:"archive"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Cache     CacheConfig     `toml:"cache"`
	Search    SearchConfig    `toml:"search"`
}

// ArchiveConfig configures the remote archive client.
type ArchiveConfig struct {
	Endpoint         string `toml:"endpoint"`
	FetchConcurrency int    `toml:"fetch_concurrency"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider  string `toml:"provider"` // workersai, openai, local; empty auto-detects
	AccountID string `toml:"account_id"`
	APIKey    string `toml:"api_key"`
	CacheSize int    `toml:"cache_size"`
}

// CacheConfig configures the data cache.
type CacheConfig struct {
	// MaxAgeHours is the default freshness bound for reads that do not
	// specify one. Zero means no bound.
	MaxAgeHours float64 `toml:"max_age_hours"`
	// RebuildTimeoutSeconds bounds one remote rebuild attempt.
	RebuildTimeoutSeconds int `toml:"rebuild_timeout_seconds"`
}

// SearchConfig configures the search pipelines.
type SearchConfig struct {
	// CacheTTLSeconds bounds the hybrid response cache. Zero disables it.
	CacheTTLSeconds int `toml:"cache_ttl_seconds"`
}

// Environment override names.
const (
	EnvConfigPath      = "REGSEARCH_CONFIG"
	EnvDBPath          = "REGSEARCH_DB_PATH"
	EnvArchiveEndpoint = "REGSEARCH_ARCHIVE_ENDPOINT"
	EnvMaxAgeHours     = "REGSEARCH_MAX_CACHE_AGE_HOURS"
)

// Default returns the built-in configuration.
func Default() Config {
	dbPath := "regsearch.db"
	if home, err := os.UserHomeDir(); err == nil {
		dbPath = filepath.Join(home, ".regsearch", "regsearch.db")
	}
	return Config{
		DBPath: dbPath,
		Archive: ArchiveConfig{
			FetchConcurrency: 8,
		},
		Embedding: EmbeddingConfig{
			CacheSize: 10000,
		},
		Cache: CacheConfig{
			RebuildTimeoutSeconds: 300,
		},
		Search: SearchConfig{
			CacheTTLSeconds: 900,
		},
	}
}

// Load reads the config file at path, falling back to REGSEARCH_CONFIG and
// then ~/.regsearch/config.toml, and applies environment overrides on top.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".regsearch", "config.toml")
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Defaults apply.
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv layers environment overrides over file values.
func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvArchiveEndpoint); v != "" {
		cfg.Archive.Endpoint = v
	}
	if v := os.Getenv(EnvMaxAgeHours); v != "" {
		if hours, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Cache.MaxAgeHours = hours
		}
	}
}

// RebuildTimeout returns the rebuild timeout as a duration.
func (c CacheConfig) RebuildTimeout() time.Duration {
	return time.Duration(c.RebuildTimeoutSeconds) * time.Second
}

// CacheTTL returns the search response cache TTL as a duration.
func (c SearchConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
