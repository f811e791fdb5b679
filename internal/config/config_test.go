package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Graph.Backend)
	assert.Equal(t, 30, cfg.Market.Window)
	assert.Equal(t, 3, cfg.Embedding.MaxAttempts)
	assert.Equal(t, cfg.TimeSeries.Path, cfg.Embeddings.Path)
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[timeseries]
path = "/tmp/ts.db"
namespace = "weather"

[embedding]
provider = "openai"
timeout = "3s"
max_attempts = 5

[market]
window = 14
[market.aliases]
jowar = "sorghum"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/ts.db", cfg.TimeSeries.Path)
	assert.Equal(t, "weather", cfg.TimeSeries.Namespace)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 3*time.Second, cfg.Embedding.Timeout.Duration)
	assert.Equal(t, 5, cfg.Embedding.MaxAttempts)
	assert.Equal(t, 14, cfg.Market.Window)
	assert.Equal(t, "sorghum", cfg.Market.Aliases["jowar"])
	// untouched sections keep their defaults
	assert.Equal(t, 4, cfg.Ingest.Workers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KISAN_DB", "/data/k.db")
	t.Setenv("NEO4J_URI", "bolt://localhost:7687")
	t.Setenv("EMBED_DIMS", "384")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/data/k.db", cfg.Graph.Path)
	assert.Equal(t, "/data/k.db", cfg.TimeSeries.Path)
	assert.Equal(t, "neo4j", cfg.Graph.Backend)
	assert.Equal(t, 384, cfg.Embedding.Dims)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := Default()
	cfg.Graph.Backend = "dynamo"
	assert.Error(t, cfg.Validate())
}

func TestGraphStore(t *testing.T) {
	g := GraphConfig{Backend: "sqlite", Path: "/data/g.db", Namespace: "graph", URI: "bolt://x"}
	assert.Equal(t, StoreConfig{Path: "/data/g.db", Namespace: "graph"}, g.Store())
}
