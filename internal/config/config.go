// Package config loads the TOML configuration and applies environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration written as a string ("10s", "250ms") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// StoreConfig locates one logical store on the key-value substrate.
// Stores sharing a Path share one database; Namespace keeps their keys apart.
type StoreConfig struct {
	Path      string `toml:"path"`
	Namespace string `toml:"namespace"`
}

type GraphConfig struct {
	Backend   string `toml:"backend"` // sqlite | neo4j
	Path      string `toml:"path"`
	Namespace string `toml:"namespace"`
	URI       string `toml:"uri"`
	User      string `toml:"user"`
	Password  string `toml:"password"`
	Database  string `toml:"database"`
}

func (g GraphConfig) Store() StoreConfig {
	return StoreConfig{Path: g.Path, Namespace: g.Namespace}
}

type EmbeddingConfig struct {
	Provider    string   `toml:"provider"` // ollama | openai
	Model       string   `toml:"model"`
	BaseURL     string   `toml:"base_url"`
	APIKey      string   `toml:"api_key"`
	Dims        int      `toml:"dims"`
	Timeout     Duration `toml:"timeout"`
	MaxAttempts int      `toml:"max_attempts"`
	BaseDelay   Duration `toml:"base_delay"`
	MaxDelay    Duration `toml:"max_delay"`
}

type FeedsConfig struct {
	WeatherURL  string   `toml:"weather_url"`
	MarketURL   string   `toml:"market_url"`
	Timeout     Duration `toml:"timeout"`
	MaxAttempts int      `toml:"max_attempts"`
	BaseDelay   Duration `toml:"base_delay"`
}

type IngestConfig struct {
	Workers int `toml:"workers"`
}

type RecommendConfig struct {
	WeatherWindow  int     `toml:"weather_window"`
	DryRainfallMM  float64 `toml:"dry_rainfall_mm"`
	SoilExact      float64 `toml:"soil_exact"`
	SoilMedium     float64 `toml:"soil_medium"`
	DroughtPenalty float64 `toml:"drought_penalty"`
	DroughtBonus   float64 `toml:"drought_bonus"`
	PestPenalty    float64 `toml:"pest_penalty"`
	PestPenaltyCap float64 `toml:"pest_penalty_cap"`
}

type MarketConfig struct {
	Window     int               `toml:"window"`
	StableBand float64           `toml:"stable_band"`
	Aliases    map[string]string `toml:"aliases"`
}

type ServerConfig struct {
	Addr      string `toml:"addr"`
	Transport string `toml:"transport"` // stdio | http | rest
}

type LogConfig struct {
	Mode string `toml:"mode"`
}

type Config struct {
	Log        LogConfig       `toml:"log"`
	TimeSeries StoreConfig     `toml:"timeseries"`
	Graph      GraphConfig     `toml:"graph"`
	Embeddings StoreConfig     `toml:"embeddings"`
	Embedding  EmbeddingConfig `toml:"embedding"`
	Feeds      FeedsConfig     `toml:"feeds"`
	Ingest     IngestConfig    `toml:"ingest"`
	Recommend  RecommendConfig `toml:"recommend"`
	Market     MarketConfig    `toml:"market"`
	Server     ServerConfig    `toml:"server"`
}

// DefaultDBPath is ~/.kisan-mitra/knowledge.db.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".kisan-mitra", "knowledge.db")
}

// Default returns a complete configuration usable without a file.
func Default() *Config {
	db := DefaultDBPath()
	return &Config{
		Log:        LogConfig{Mode: "dev"},
		TimeSeries: StoreConfig{Path: db, Namespace: "ts"},
		Graph:      GraphConfig{Backend: "sqlite", Path: db, Namespace: "g", User: "neo4j"},
		Embeddings: StoreConfig{Path: db, Namespace: "emb"},
		Embedding: EmbeddingConfig{
			Provider:    "ollama",
			Model:       "nomic-embed-text",
			Timeout:     Duration{15 * time.Second},
			MaxAttempts: 3,
			BaseDelay:   Duration{500 * time.Millisecond},
			MaxDelay:    Duration{10 * time.Second},
		},
		Feeds: FeedsConfig{
			Timeout:     Duration{20 * time.Second},
			MaxAttempts: 3,
			BaseDelay:   Duration{time.Second},
		},
		Ingest: IngestConfig{Workers: 4},
		Recommend: RecommendConfig{
			WeatherWindow:  5,
			DryRainfallMM:  2.5,
			SoilExact:      0.5,
			SoilMedium:     0.25,
			DroughtPenalty: 0.6,
			DroughtBonus:   0.1,
			PestPenalty:    0.05,
			PestPenaltyCap: 0.2,
		},
		Market: MarketConfig{Window: 30, StableBand: 1.0},
		Server: ServerConfig{Addr: ":8080", Transport: "stdio"},
	}
}

// Load reads path (if non-empty) over the defaults, then applies environment
// overrides. A missing file at an explicit path is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables when they are set.
func (c *Config) ApplyEnv() {
	if v := env("KISAN_DB"); v != "" {
		c.SetDBPath(v)
	}
	if v := env("KISAN_LOG_MODE"); v != "" {
		c.Log.Mode = v
	}
	if v := env("EMBED_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := env("EMBED_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := env("EMBED_URL"); v != "" {
		c.Embedding.BaseURL = v
	}
	if v := env("EMBED_API_KEY"); v != "" {
		c.Embedding.APIKey = v
	}
	if v := env("EMBED_DIMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Embedding.Dims = n
		}
	}
	if v := env("NEO4J_URI"); v != "" {
		c.Graph.URI = v
		c.Graph.Backend = "neo4j"
	}
	if v := env("NEO4J_USER"); v != "" {
		c.Graph.User = v
	}
	if v := env("NEO4J_PASSWORD"); v != "" {
		c.Graph.Password = v
	}
	if v := env("WEATHER_FEED_URL"); v != "" {
		c.Feeds.WeatherURL = v
	}
	if v := env("MARKET_FEED_URL"); v != "" {
		c.Feeds.MarketURL = v
	}
	if v := env("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
}

// SetDBPath points every SQLite-backed store at path.
func (c *Config) SetDBPath(path string) {
	c.TimeSeries.Path = path
	c.Graph.Path = path
	c.Embeddings.Path = path
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.Graph.Backend) {
	case "", "sqlite":
	case "neo4j", "memgraph":
		if c.Graph.URI == "" {
			return fmt.Errorf("graph backend %q requires uri", c.Graph.Backend)
		}
	default:
		return fmt.Errorf("unsupported graph backend: %s", c.Graph.Backend)
	}
	if c.Ingest.Workers < 1 {
		c.Ingest.Workers = 1
	}
	if c.Market.Window < 2 {
		return fmt.Errorf("market window must be at least 2, got %d", c.Market.Window)
	}
	if c.Embedding.MaxAttempts < 1 {
		c.Embedding.MaxAttempts = 1
	}
	if c.Feeds.MaxAttempts < 1 {
		c.Feeds.MaxAttempts = 1
	}
	return nil
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}
