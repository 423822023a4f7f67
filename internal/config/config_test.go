package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvConfigPath, "")
	t.Setenv(EnvDBPath, "")
	t.Setenv(EnvArchiveEndpoint, "")
	t.Setenv(EnvMaxAgeHours, "")
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.DBPath)
	assert.Equal(t, 8, cfg.Archive.FetchConcurrency)
	assert.Equal(t, 5*time.Minute, cfg.Cache.RebuildTimeout())
	assert.Equal(t, 15*time.Minute, cfg.Search.CacheTTL())
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_path = "/data/regs.db"

[archive]
endpoint = "https://mirror.example.com"
fetch_concurrency = 4

[embedding]
provider = "workersai"
account_id = "acct"

[cache]
max_age_hours = 24.0

[search]
cache_ttl_seconds = 60
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/regs.db", cfg.DBPath)
	assert.Equal(t, "https://mirror.example.com", cfg.Archive.Endpoint)
	assert.Equal(t, 4, cfg.Archive.FetchConcurrency)
	assert.Equal(t, "workersai", cfg.Embedding.Provider)
	assert.Equal(t, 24.0, cfg.Cache.MaxAgeHours)
	assert.Equal(t, time.Minute, cfg.Search.CacheTTL())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`db_path = "/from/file.db"`), 0o600))

	t.Setenv(EnvDBPath, "/from/env.db")
	t.Setenv(EnvArchiveEndpoint, "http://localhost:9000")
	t.Setenv(EnvMaxAgeHours, "12.5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env.db", cfg.DBPath)
	assert.Equal(t, "http://localhost:9000", cfg.Archive.Endpoint)
	assert.Equal(t, 12.5, cfg.Cache.MaxAgeHours)
}

func TestLoad_MalformedFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`db_path = [not toml`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
